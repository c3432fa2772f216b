// Package metrics tracks runtime statistics of the relay in a private
// Prometheus registry.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gpsrelay"

// Forward outcomes used as the "result" label.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Collector tracks runtime metrics for one relay process.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	acceptErrors      prometheus.Counter
	setupErrors       prometheus.Counter
	readErrors        prometheus.Counter
	emptyMessages     prometheus.Counter
	oversizeMessages  prometheus.Counter
	messageBytes      prometheus.Histogram
	forwards          *prometheus.CounterVec
	forwardDuration   prometheus.Histogram
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Tracker connections currently being handled",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Tracker connections accepted",
		}),
		acceptErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Failed accept calls on the listener",
		}),
		setupErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "setup_errors_total",
			Help:      "Connections torn down because transport setup failed",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Connections whose read ended with an I/O error",
		}),
		emptyMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_messages_total",
			Help:      "Connections closed without sending any data",
		}),
		oversizeMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversize_messages_total",
			Help:      "Messages dropped for exceeding the size limit",
		}),
		messageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_bytes",
			Help:      "Size of assembled tracker messages",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forwards_total",
			Help:      "POSTs to the web server by result",
		}, []string{"result"}),
		forwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forward_duration_seconds",
			Help:      "Duration of POSTs to the web server",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.connectionsActive,
		c.connectionsTotal,
		c.acceptErrors,
		c.setupErrors,
		c.readErrors,
		c.emptyMessages,
		c.oversizeMessages,
		c.messageBytes,
		c.forwards,
		c.forwardDuration,
	)
	return c
}

// ── Connection metrics ───────────────────────────────────────────────

// ConnectionOpened increments both the active and total counters.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

// ConnectionClosed decrements the active connection gauge.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.connectionsActive.Dec()
}

// AcceptError records a failed accept.
func (c *Collector) AcceptError() {
	if c == nil {
		return
	}
	c.acceptErrors.Inc()
}

// SetupError records a connection whose transport setup failed.
func (c *Collector) SetupError() {
	if c == nil {
		return
	}
	c.setupErrors.Inc()
}

// ── Message metrics ──────────────────────────────────────────────────

// ReadError records a read that ended with an I/O failure.
func (c *Collector) ReadError() {
	if c == nil {
		return
	}
	c.readErrors.Inc()
}

// MessageReceived records the size of an assembled message.
func (c *Collector) MessageReceived(n int) {
	if c == nil {
		return
	}
	c.messageBytes.Observe(float64(n))
}

// EmptyMessage records a connection that sent nothing.
func (c *Collector) EmptyMessage() {
	if c == nil {
		return
	}
	c.emptyMessages.Inc()
}

// OversizeMessage records a message dropped for its size.
func (c *Collector) OversizeMessage() {
	if c == nil {
		return
	}
	c.oversizeMessages.Inc()
}

// ── Forward metrics ──────────────────────────────────────────────────

// Forwarded records one POST attempt, its outcome and duration.
func (c *Collector) Forwarded(err error, d time.Duration) {
	if c == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	c.forwards.WithLabelValues(result).Inc()
	c.forwardDuration.Observe(d.Seconds())
}

// ── Exposition ───────────────────────────────────────────────────────

// Registry returns the underlying registry, or nil for a nil Collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
