package report

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for one run, registered on a
// private registry so multiple engines (and tests) never collide.
type Metrics struct {
	Registry *prometheus.Registry

	RecordsIn         prometheus.Counter
	RecordsReleased   prometheus.Counter
	RecordsSuppressed prometheus.Counter
	RecordsPerLevel   *prometheus.CounterVec
	SinkFailures      *prometheus.CounterVec
	SkippedWindows    prometheus.Counter
	BatchDuration     prometheus.Histogram
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RecordsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anonvitals_records_in_total",
			Help: "Raw samples fetched into processed windows.",
		}),
		RecordsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anonvitals_records_released_total",
			Help: "Anonymized samples released to sinks.",
		}),
		RecordsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anonvitals_records_suppressed_total",
			Help: "Samples suppressed for failing k-anonymity at the top level.",
		}),
		RecordsPerLevel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anonvitals_records_per_level_total",
			Help: "Released samples by generalization level.",
		}, []string{"level"}),
		SinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "anonvitals_sink_failures_total",
			Help: "Sink writes that exhausted their retry budget.",
		}, []string{"sink"}),
		SkippedWindows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anonvitals_skipped_windows_total",
			Help: "Windows skipped after source failures or overload.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "anonvitals_batch_duration_seconds",
			Help:    "End-to-end processing time per window.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
	}

	m.Registry.MustRegister(
		m.RecordsIn,
		m.RecordsReleased,
		m.RecordsSuppressed,
		m.RecordsPerLevel,
		m.SinkFailures,
		m.SkippedWindows,
		m.BatchDuration,
	)
	return m
}
