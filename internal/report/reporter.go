// Package report aggregates per-batch statistics in memory and exposes them
// through a pull interface: a Snapshot call, an HTTP stats endpoint and
// Prometheus collectors. It performs no persistence of its own.
package report

import (
	"strconv"
	"sync"
	"time"

	"AnonVitals/internal/model"
)

// RunStatus is the terminal status of one engine run.
type RunStatus string

const (
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	// RunFatal marks configuration/hierarchy failures before any batch ran.
	// It is produced by the caller, never by the reporter itself.
	RunFatal RunStatus = "fatal"
)

// SinkOutcome is the JSON-safe view of one model.SinkResult.
type SinkOutcome struct {
	SinkName       string `json:"sink_name"`
	Success        bool   `json:"success"`
	RecordsWritten int    `json:"records_written"`
	Error          string `json:"error,omitempty"`
}

// BatchReport holds the statistics of one processed (or skipped) window.
type BatchReport struct {
	WindowStart     time.Time         `json:"window_start"`
	WindowEnd       time.Time         `json:"window_end"`
	InputCount      int               `json:"input_count"`
	ReleasedCount   int               `json:"released_count"`
	SuppressedCount int               `json:"suppressed_count"`
	ClampedCount    int               `json:"clamped_count"`
	LevelCounts     map[int]int       `json:"level_counts,omitempty"`
	Sinks           []SinkOutcome     `json:"sinks,omitempty"`
	Duration        time.Duration     `json:"duration_ns"`
	Status          model.BatchStatus `json:"status"`
	Skipped         bool              `json:"skipped,omitempty"`
	SkipReason      string            `json:"skip_reason,omitempty"`
}

// RunReport is the aggregated view of a run so far.
type RunReport struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Status          RunStatus     `json:"status"`
	TotalInput      int           `json:"total_input"`
	TotalReleased   int           `json:"total_released"`
	TotalSuppressed int           `json:"total_suppressed"`
	SkippedWindows  int           `json:"skipped_windows"`
	LevelCounts     map[int]int   `json:"level_counts"`
	Batches         []BatchReport `json:"batches"`
}

// Reporter aggregates batch reports for one run. Safe for concurrent use.
type Reporter struct {
	mu        sync.Mutex
	runID     string
	startedAt time.Time
	batches   []BatchReport
	metrics   *Metrics
}

// NewReporter creates a Reporter for the given run ID.
func NewReporter(runID string) *Reporter {
	return &Reporter{
		runID:     runID,
		startedAt: time.Now().UTC(),
		metrics:   NewMetrics(),
	}
}

// MetricsHandle returns the reporter's Prometheus collectors.
func (r *Reporter) MetricsHandle() *Metrics { return r.metrics }

// RecordBatch stores one batch report and updates the metrics.
func (r *Reporter) RecordBatch(br BatchReport) {
	r.mu.Lock()
	r.batches = append(r.batches, br)
	r.mu.Unlock()

	r.metrics.RecordsIn.Add(float64(br.InputCount))
	r.metrics.RecordsReleased.Add(float64(br.ReleasedCount))
	r.metrics.RecordsSuppressed.Add(float64(br.SuppressedCount))
	r.metrics.BatchDuration.Observe(br.Duration.Seconds())
	for level, count := range br.LevelCounts {
		r.metrics.RecordsPerLevel.WithLabelValues(strconv.Itoa(level)).Add(float64(count))
	}
	for _, sink := range br.Sinks {
		if !sink.Success {
			r.metrics.SinkFailures.WithLabelValues(sink.SinkName).Inc()
		}
	}
}

// RecordSkippedWindow stores a window that was rejected or whose source
// fetch retries were exhausted.
func (r *Reporter) RecordSkippedWindow(start, end time.Time, reason error) {
	r.mu.Lock()
	r.batches = append(r.batches, BatchReport{
		WindowStart: start,
		WindowEnd:   end,
		Skipped:     true,
		SkipReason:  reason.Error(),
		Status:      model.BatchFailed,
	})
	r.mu.Unlock()

	r.metrics.SkippedWindows.Inc()
}

// SinkOutcomes converts dispatcher results into their JSON-safe form.
func SinkOutcomes(results []model.SinkResult) []SinkOutcome {
	if len(results) == 0 {
		return nil
	}
	out := make([]SinkOutcome, len(results))
	for i, res := range results {
		out[i] = SinkOutcome{
			SinkName:       res.SinkName,
			Success:        res.Success,
			RecordsWritten: res.RecordsWritten,
		}
		if res.Err != nil {
			out[i].Error = res.Err.Error()
		}
	}
	return out
}

// Snapshot returns a copy of the aggregated run report. The run status is
// completed unless any batch was skipped, partial or failed.
func (r *Reporter) Snapshot() RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep := RunReport{
		RunID:       r.runID,
		StartedAt:   r.startedAt,
		Status:      RunCompleted,
		LevelCounts: make(map[int]int),
		Batches:     make([]BatchReport, len(r.batches)),
	}
	copy(rep.Batches, r.batches)

	for _, br := range r.batches {
		rep.TotalInput += br.InputCount
		rep.TotalReleased += br.ReleasedCount
		rep.TotalSuppressed += br.SuppressedCount
		for level, count := range br.LevelCounts {
			rep.LevelCounts[level] += count
		}
		if br.Skipped {
			rep.SkippedWindows++
			rep.Status = RunCompletedWithErrors
			continue
		}
		if br.Status == model.BatchPartial || br.Status == model.BatchFailed {
			rep.Status = RunCompletedWithErrors
		}
	}

	return rep
}
