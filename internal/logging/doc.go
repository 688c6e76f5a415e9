// Package logging provides the structured logging interface used by the
// monitor, the HTTP server and the application runner. It abstracts the
// underlying implementation (zerolog by default, the standard log package as
// a fallback) so components log consistently and tests can swap the sink.
package logging
