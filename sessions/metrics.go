package sessions

// MetricsSink allows optional instrumentation without a hard dependency on
// any metrics library. A nil sink disables reporting.
//
// Counter names emitted by the store: "sessions_created" (tag "mode"),
// "sessions_updated", "sessions_deleted", "sessions_get" (tag "result":
// hit|miss), "sessions_evicted" (tag "trigger": lazy|sweep). Histogram names:
// "sessions_sweep_duration_seconds".
type MetricsSink interface {
	IncCounter(name string, tags map[string]string)
	ObserveHistogram(name string, value float64, tags map[string]string)
}
