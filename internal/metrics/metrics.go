// Package metrics implements the Prometheus export: request counts,
// verdict actions, scan/ACL latency, and per-component gauges,
// registered against a collector registry. cmd/shieldd exposes it at
// /metrics; Hive and the Agent do not serve metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sentinel/edr/internal/domain"
)

// latencyBuckets are the histogram bounds, in milliseconds.
var latencyBuckets = []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000}

// Collector holds every Prometheus metric the Shield daemon exports.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	VerdictsTotal   *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
	ScanLatency     *prometheus.HistogramVec
	SessionsActive  prometheus.Gauge
	QueueDepth      *prometheus.GaugeVec
	CircuitState    *prometheus.GaugeVec
	SignatureVersion prometheus.Gauge
}

// New creates and registers a Collector against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer) keeps
// test runs and multiple daemon instances from colliding on metric names.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shield_requests_total",
				Help: "Total number of requests evaluated by the Shield pipeline.",
			},
			[]string{"zone", "direction"},
		),
		VerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shield_verdicts_total",
				Help: "Total number of pipeline verdicts by zone and action.",
			},
			[]string{"zone", "action"},
		),
		RequestLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shield_request_duration_ms",
				Help:    "End-to-end pipeline evaluation latency in milliseconds.",
				Buckets: latencyBuckets,
			},
			[]string{"zone"},
		),
		ScanLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shield_scan_duration_ms",
				Help:    "Innate/cognitive scanner latency in milliseconds.",
				Buckets: latencyBuckets,
			},
			[]string{"scanner"},
		),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shield_sessions_active",
			Help: "Number of sessions currently tracked by the session manager.",
		}),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shield_queue_depth",
				Help: "Current depth of an async message queue.",
			},
			[]string{"queue"},
		),
		CircuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shield_circuit_breaker_state",
				Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open.",
			},
			[]string{"name"},
		),
		SignatureVersion: factory.NewGauge(prometheus.GaugeOpts{
			Name: "shield_signature_version",
			Help: "Currently active signature set version.",
		}),
	}
}

// ObserveRequest implements shield.Metrics, recording one pipeline
// evaluation's outcome and latency.
func (c *Collector) ObserveRequest(zoneName string, action domain.Action, elapsed time.Duration) {
	c.RequestsTotal.WithLabelValues(zoneName, "").Inc()
	c.VerdictsTotal.WithLabelValues(zoneName, action.String()).Inc()
	c.RequestLatency.WithLabelValues(zoneName).Observe(float64(elapsed.Milliseconds()))
}

// ObserveScan records one scanner's latency, independent of the overall
// pipeline observation above.
func (c *Collector) ObserveScan(scannerName string, elapsed time.Duration) {
	c.ScanLatency.WithLabelValues(scannerName).Observe(float64(elapsed.Milliseconds()))
}

// SetSessionsActive updates the live session-count gauge.
func (c *Collector) SetSessionsActive(n int) {
	c.SessionsActive.Set(float64(n))
}

// SetQueueDepth updates the named queue's depth gauge.
func (c *Collector) SetQueueDepth(queueName string, depth int) {
	c.QueueDepth.WithLabelValues(queueName).Set(float64(depth))
}

// SetCircuitState updates the named breaker's state gauge using the
// 0/1/2 encoding documented on CircuitState's Help text.
func (c *Collector) SetCircuitState(name string, state int) {
	c.CircuitState.WithLabelValues(name).Set(float64(state))
}

// SetSignatureVersion updates the active signature-set version gauge.
func (c *Collector) SetSignatureVersion(version uint64) {
	c.SignatureVersion.Set(float64(version))
}
