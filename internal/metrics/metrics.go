// Package metrics drží Prometheus metriky celé služby.
// Registrujeme je do vlastního registru (ne do globálního DefaultRegisterer),
// aby si každý test mohl vytvořit čistou instanci.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "templine"

// Metrics obsahuje všechny metriky sensor-ingestoru.
type Metrics struct {
	// Zprávy z MQTT
	MessagesReceived *prometheus.CounterVec // label: kind
	MessagesDropped  *prometheus.CounterVec // label: reason
	HighTemperature  prometheus.Counter     // bez labelu node, uzel je jen v logu

	// Úložiště
	ReadingsStored    prometheus.Counter
	PersistenceErrors *prometheus.CounterVec // label: op
	StoreQueueDepth   prometheus.Gauge

	// Registr a monitor
	KnownNodes prometheus.Gauge
	StaleNodes prometheus.Gauge

	// Hostitel (gateway)
	HostCPUPercent   prometheus.Gauge
	HostRAMUsedMB    prometheus.Gauge
	HostDiskUsedGB   prometheus.Gauge
	HostAppRAMUsedMB prometheus.Gauge

	registry *prometheus.Registry
}

// New vytvoří metriky a zaregistruje je do nového registru.
func New() *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "received_total",
			Help:      "Total number of MQTT messages received by event kind",
		}, []string{"kind"}),

		MessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "dropped_total",
			Help:      "Total number of messages dropped by reason",
		}, []string{"reason"}),

		HighTemperature: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "readings",
			Name:      "high_temperature_total",
			Help:      "Readings above the high temperature threshold",
		}),

		ReadingsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "readings_stored_total",
			Help:      "Readings successfully written to the durable store",
		}),

		PersistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Durable store failures by operation",
		}, []string{"op"}),

		StoreQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "queue_depth",
			Help:      "Readings waiting for the durable write",
		}),

		KnownNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "nodes",
			Help:      "Number of known sensor nodes",
		}),

		StaleNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "stale_nodes",
			Help:      "Nodes whose last update is older than the freshness threshold",
		}),

		HostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "cpu_percent",
			Help:      "Host CPU usage percent (0-100)",
		}),

		HostRAMUsedMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "ram_used_megabytes",
			Help:      "Host RAM used by applications (total - available)",
		}),

		HostDiskUsedGB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "disk_used_gigabytes",
			Help:      "Used space on the root filesystem",
		}),

		HostAppRAMUsedMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "app_ram_megabytes",
			Help:      "RSS of the IoT stack processes",
		}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.MessagesReceived,
		m.MessagesDropped,
		m.HighTemperature,
		m.ReadingsStored,
		m.PersistenceErrors,
		m.StoreQueueDepth,
		m.KnownNodes,
		m.StaleNodes,
		m.HostCPUPercent,
		m.HostRAMUsedMB,
		m.HostDiskUsedGB,
		m.HostAppRAMUsedMB,
	)
	return m
}

// Registry vrací podkladový Prometheus registr.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler vrací HTTP handler pro endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
