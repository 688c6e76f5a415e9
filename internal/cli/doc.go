// Package cli renders the terminal side of a monitoring session.
//
// # Naming Conventions
//
//   - Display* functions write formatted output to an [io.Writer].
//     Examples: [DisplaySummary].
//
//   - Format* functions return a formatted string without performing I/O.
//     Examples: [FormatSummary], [FormatStatusLine], [FormatDuration].
//
//   - Generate* functions emit scripts for other programs.
//     Examples: [GenerateCompletion].
package cli
