package sessionkit

import "time"

// MetricsCollector provides hooks for observability.
type MetricsCollector interface {
	// RecordFlushDuration records how long a flush attempt took
	RecordFlushDuration(trigger string, d time.Duration)

	// RecordFlushErrors records failed flush attempts
	RecordFlushErrors(trigger, reason string)

	// RecordCacheOutcome records a draft cache save or load attempt
	RecordCacheOutcome(op string, ok bool)

	// RecordPresence records the size of the active collaborator set
	RecordPresence(active int)

	// RecordComments records comment store activity
	RecordComments(op string)
}

// NoOpMetricsCollector is a stub implementation that discards metrics.
type NoOpMetricsCollector struct{}

func (*NoOpMetricsCollector) RecordFlushDuration(trigger string, d time.Duration) {}
func (*NoOpMetricsCollector) RecordFlushErrors(trigger, reason string)            {}
func (*NoOpMetricsCollector) RecordCacheOutcome(op string, ok bool)               {}
func (*NoOpMetricsCollector) RecordPresence(active int)                           {}
func (*NoOpMetricsCollector) RecordComments(op string)                            {}
