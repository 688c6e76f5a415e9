package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agbru/procmon/internal/sysmon"
)

const namespace = "procmon"

// Exporter mirrors every persisted sample into a set of gauges.
// It satisfies monitor.Observer.
type Exporter struct {
	registry *prometheus.Registry

	cpuPercent    prometheus.Gauge
	memoryPercent prometheus.Gauge
	rssBytes      prometheus.Gauge
	vmsBytes      prometheus.Gauge
	lastSample    prometheus.Gauge
	samplesTotal  prometheus.Counter
}

// NewExporter creates an exporter for the process pid. The process name and
// pid are attached as constant labels.
func NewExporter(pid int, process string) *Exporter {
	labels := prometheus.Labels{"pid": strconv.Itoa(pid), "process": process}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	e := &Exporter{
		registry:      prometheus.NewRegistry(),
		cpuPercent:    gauge("cpu_percent", "CPU utilization of the target, normalized across logical CPUs."),
		memoryPercent: gauge("memory_percent", "Resident memory of the target as a share of total system memory."),
		rssBytes:      gauge("memory_rss_bytes", "Resident set size of the target in bytes."),
		vmsBytes:      gauge("memory_vms_bytes", "Virtual memory size of the target in bytes."),
		lastSample:    gauge("last_sample_timestamp_seconds", "Unix time of the last persisted sample."),
		samplesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "samples_total",
			Help:        "Number of samples written to the log.",
			ConstLabels: labels,
		}),
	}

	e.registry.MustRegister(
		e.cpuPercent,
		e.memoryPercent,
		e.rssBytes,
		e.vmsBytes,
		e.lastSample,
		e.samplesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// Observe records s.
func (e *Exporter) Observe(s sysmon.Sample) {
	e.cpuPercent.Set(s.CPUPercent)
	e.memoryPercent.Set(s.MemoryPercent)
	e.rssBytes.Set(float64(s.RSSBytes))
	e.vmsBytes.Set(float64(s.VMSBytes))
	if !s.Timestamp.IsZero() {
		e.lastSample.Set(float64(s.Timestamp.UnixNano()) / 1e9)
	}
	e.samplesTotal.Inc()
}

// Registry returns the exporter's private registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		Registry:          e.registry,
		EnableOpenMetrics: false,
	})
}
