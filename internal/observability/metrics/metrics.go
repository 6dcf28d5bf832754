package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes the ledger's Prometheus instruments.
type Metrics struct {
	ledgerOps       *prometheus.CounterVec
	updateConflicts prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New registers the instruments against the given registerer. Tests pass
// a fresh registry to avoid duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdvault_ledger_operations_total",
			Help: "Ledger operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		updateConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdvault_update_conflicts_total",
			Help: "Optimistic compare-and-update conflicts that triggered a retry.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdvault_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crowdvault_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.ledgerOps, m.updateConflicts, m.httpRequests, m.httpDuration)
	return m
}

func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// RecordLedgerOp increments per-operation outcome counts.
func (m *Metrics) RecordLedgerOp(operation, outcome string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(operation, outcome).Inc()
}

// RecordUpdateConflict counts one compare-and-update retry.
func (m *Metrics) RecordUpdateConflict() {
	if m == nil {
		return
	}
	m.updateConflicts.Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

var Module = fx.Module("observability.metrics",
	fx.Provide(Default),
)
