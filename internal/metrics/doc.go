// Package metrics exposes the latest process sample as Prometheus metrics.
// Each Exporter owns a private registry, so several exporters can coexist in
// one process (tests, multiple sessions) without colliding on the default
// registerer.
package metrics
