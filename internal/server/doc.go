// Package server exposes a running monitoring session over HTTP:
// Prometheus metrics on /metrics, a liveness probe on /health and the
// session status as JSON on /status.
package server
