// Package promstats adapts the session store's metrics hooks onto
// Prometheus. It lives outside the core packages so stdio deployments and
// tests can run with the no-op sink and no registry.
package promstats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/casedock/casedock-mcp-go/sessions"
)

// Sink implements sessions.MetricsSink on Prometheus collectors. All metrics
// carry the casedock_sessions_ prefix.
type Sink struct {
	created *prometheus.CounterVec
	updated prometheus.Counter
	deleted prometheus.Counter
	gets    *prometheus.CounterVec
	evicted *prometheus.CounterVec
	sweep   prometheus.Histogram
}

var _ sessions.MetricsSink = (*Sink)(nil)

// New registers the session metrics with reg and returns the sink.
func New(reg prometheus.Registerer) *Sink {
	f := promauto.With(reg)
	return &Sink{
		created: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedock_sessions_created_total",
			Help: "Sessions created, by auth mode.",
		}, []string{"mode"}),
		updated: f.NewCounter(prometheus.CounterOpts{
			Name: "casedock_sessions_updated_total",
			Help: "Session credential replacements.",
		}),
		deleted: f.NewCounter(prometheus.CounterOpts{
			Name: "casedock_sessions_deleted_total",
			Help: "Explicit session closes.",
		}),
		gets: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedock_sessions_get_total",
			Help: "Session lookups, by result.",
		}, []string{"result"}),
		evicted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "casedock_sessions_evicted_total",
			Help: "Expired sessions reclaimed, by eviction trigger.",
		}, []string{"trigger"}),
		sweep: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "casedock_sessions_sweep_duration_seconds",
			Help:    "Wall time of full sweep passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// NewDefault registers with the process-wide default registry.
func NewDefault() *Sink {
	return New(prometheus.DefaultRegisterer)
}

// IncCounter maps the store's abstract counter names onto the registered
// collectors. Unknown names are dropped rather than registered on the fly.
func (s *Sink) IncCounter(name string, tags map[string]string) {
	switch name {
	case "sessions_created":
		s.created.WithLabelValues(tags["mode"]).Inc()
	case "sessions_updated":
		s.updated.Inc()
	case "sessions_deleted":
		s.deleted.Inc()
	case "sessions_get":
		s.gets.WithLabelValues(tags["result"]).Inc()
	case "sessions_evicted":
		s.evicted.WithLabelValues(tags["trigger"]).Inc()
	}
}

// ObserveHistogram records sweep durations; other names are dropped.
func (s *Sink) ObserveHistogram(name string, value float64, tags map[string]string) {
	if name == "sessions_sweep_duration_seconds" {
		s.sweep.Observe(value)
	}
}
