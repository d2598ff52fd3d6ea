package telemetry

// SLI names used for span attributes and dashboards.
const (
	// Latency
	MetricAPILatencyP95 = "api.latency.p95"
	MetricRefreshTime   = "dispatch.refresh_seconds"

	// Data freshness
	MetricSnapshotAge = "dispatch.snapshot_age_seconds"

	// Business
	MetricTrainsTracked   = "dispatch.trains_tracked"
	MetricTrainsOffline   = "dispatch.trains_offline"
	MetricTimetableMissed = "dispatch.timetables_missing"
)
