// Package engine wires the hierarchy, generalizer, imputer and dispatcher
// into one processing cycle per window. The scheduler drives it; the engine
// itself holds no window cadence logic.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"AnonVitals/internal/config"
	"AnonVitals/internal/dispatcher"
	"AnonVitals/internal/engine/generalizer"
	"AnonVitals/internal/engine/imputer"
	"AnonVitals/internal/hierarchy"
	"AnonVitals/internal/model"
	"AnonVitals/internal/report"
)

// Engine processes one batch at a time: clamp, generalize, impute, dispatch.
type Engine struct {
	gen      *generalizer.Generalizer
	imp      *imputer.Imputer
	disp     *dispatcher.Dispatcher
	reporter *report.Reporter
	clamp    []config.ClampRule

	// pending carries stats between Anonymize and Dispatch. The scheduler
	// guarantees a single batch in flight, so no locking is needed.
	pending batchStats
}

type batchStats struct {
	windowStart time.Time
	windowEnd   time.Time
	input       int
	released    int
	suppressed  int
	clamped     int
	levelCounts map[int]int
	startedAt   time.Time
}

// New builds an Engine from a validated configuration, a loaded hierarchy
// table and the constructed sinks.
func New(cfg *config.Config, table *hierarchy.Table, sinks []model.Sink, reporter *report.Reporter) (*Engine, error) {
	gen, err := generalizer.New(table, cfg.Anonymizer.QuasiIdentifiers, cfg.Anonymizer.KValue)
	if err != nil {
		return nil, err
	}
	imp, err := imputer.New(
		cfg.Anonymizer.QuasiIdentifiers,
		imputer.Policy(cfg.Anonymizer.SuppressedPolicy),
		cfg.Anonymizer.ImputeIdentityGroups,
		cfg.Anonymizer.RedactSourceID,
	)
	if err != nil {
		return nil, err
	}
	disp, err := dispatcher.New(sinks, cfg.WriteTimeout(), cfg.Dispatcher.MaxAttempts, cfg.RetryBackoff())
	if err != nil {
		return nil, err
	}
	return &Engine{
		gen:      gen,
		imp:      imp,
		disp:     disp,
		reporter: reporter,
		clamp:    cfg.Anonymizer.Clamp,
	}, nil
}

// Anonymize runs one window's samples through clamping, generalization and
// imputation, and stages the batch statistics for Dispatch.
func (e *Engine) Anonymize(batch *model.Batch) (*model.AnonymizedBatch, error) {
	e.pending = batchStats{
		windowStart: batch.WindowStart,
		windowEnd:   batch.WindowEnd,
		input:       len(batch.Samples),
		levelCounts: make(map[int]int),
		startedAt:   time.Now(),
	}

	samples, clamped := applyClamp(batch.Samples, e.clamp)
	e.pending.clamped = clamped

	groups, err := e.gen.Groups(&model.Batch{
		WindowStart: batch.WindowStart,
		WindowEnd:   batch.WindowEnd,
		Samples:     samples,
	})
	if err != nil {
		return nil, fmt.Errorf("generalization failed for window [%s, %s): %w",
			batch.WindowStart.Format(time.RFC3339), batch.WindowEnd.Format(time.RFC3339), err)
	}

	for _, grp := range groups {
		if grp.Suppressed {
			e.pending.suppressed += len(grp.Members)
			continue
		}
		e.pending.released += len(grp.Members)
		e.pending.levelCounts[grp.Level] += len(grp.Members)
	}

	anon := &model.AnonymizedBatch{
		WindowStart: batch.WindowStart,
		WindowEnd:   batch.WindowEnd,
		KValue:      e.gen.K(),
		Samples:     e.imp.Apply(groups),
	}

	log.Printf("Window [%s, %s): %d in, %d released, %d suppressed, %d clamped, levels=%v",
		batch.WindowStart.Format(time.RFC3339), batch.WindowEnd.Format(time.RFC3339),
		e.pending.input, e.pending.released, e.pending.suppressed, e.pending.clamped,
		e.pending.levelCounts)

	return anon, nil
}

// Dispatch fans the anonymized batch out to every sink and records the batch
// report. Sink failures degrade the batch status but never fail the run.
func (e *Engine) Dispatch(ctx context.Context, batch *model.AnonymizedBatch) error {
	results, status := e.disp.Dispatch(ctx, batch)

	e.reporter.RecordBatch(report.BatchReport{
		WindowStart:     e.pending.windowStart,
		WindowEnd:       e.pending.windowEnd,
		InputCount:      e.pending.input,
		ReleasedCount:   e.pending.released,
		SuppressedCount: e.pending.suppressed,
		ClampedCount:    e.pending.clamped,
		LevelCounts:     e.pending.levelCounts,
		Sinks:           report.SinkOutcomes(results),
		Duration:        time.Since(e.pending.startedAt),
		Status:          status,
	})
	return nil
}
