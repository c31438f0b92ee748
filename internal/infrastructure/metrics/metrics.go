// Package metrics exposes the bridge's Prometheus instruments.
//
// All recording methods are safe on a nil *Metrics so components can run
// without instrumentation in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tuyabridge"

// Per-device failure stages within a poll cycle.
const (
	StageRegistry = "registry"
	StagePublish  = "publish"
	StageSink     = "sink"
)

// Command outcomes.
const (
	CommandSuccess        = "success"
	CommandAPIError       = "api_error"
	CommandTransportError = "transport_error"
	CommandMalformed      = "malformed"
	CommandNoCodes        = "no_codes"
)

// Metrics holds every instrument the bridge records.
type Metrics struct {
	registry *prometheus.Registry

	cycles         prometheus.Counter
	cycleDuration  prometheus.Histogram
	deviceErrors   *prometheus.CounterVec
	publishFailed  prometheus.Counter
	commands       *prometheus.CounterVec
	records        *prometheus.CounterVec
	governanceOn   *prometheus.GaugeVec
	devicesTracked prometheus.Gauge
}

// New creates the instruments on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of one poll cycle across all devices.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		deviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_errors_total",
			Help:      "Per-device failures during a poll cycle, by stage.",
		}, []string{"stage"}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "MQTT publishes that failed and were dropped.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound command messages by outcome.",
		}, []string{"result"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Snapshots persisted or suppressed by the governance gate.",
		}, []string{"outcome"}),
		governanceOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "governance_on",
			Help:      "1 while a governing device is reported on, 0 while off.",
		}, []string{"device_id"}),
		devicesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices loaded from the registry at startup.",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.deviceErrors,
		m.publishFailed,
		m.commands,
		m.records,
		m.governanceOn,
		m.devicesTracked,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// CycleCompleted records one finished poll cycle.
func (m *Metrics) CycleCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// DeviceError counts a per-device failure at the given stage.
func (m *Metrics) DeviceError(stage string) {
	if m == nil {
		return
	}
	m.deviceErrors.WithLabelValues(stage).Inc()
}

// PublishFailed counts a dropped publish.
func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailed.Inc()
}

// Command counts an inbound command by outcome.
func (m *Metrics) Command(result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(result).Inc()
}

// Record counts a snapshot as persisted or suppressed.
func (m *Metrics) Record(persisted bool) {
	if m == nil {
		return
	}
	outcome := "suppressed"
	if persisted {
		outcome = "persisted"
	}
	m.records.WithLabelValues(outcome).Inc()
}

// SetGovernance publishes the current state of a governing device.
func (m *Metrics) SetGovernance(deviceID string, on bool) {
	if m == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	m.governanceOn.WithLabelValues(deviceID).Set(v)
}

// SetDevices records how many devices the bridge is tracking.
func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.devicesTracked.Set(float64(n))
}
