// Package scheduler slides strictly increasing, gap-free batch windows over
// the source and drives each window through anonymization and dispatch. One
// batch is in flight at a time; cancellation takes effect at window
// boundaries only, so an in-flight batch always finishes dispatch.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"AnonVitals/internal/config"
	"AnonVitals/internal/model"
	"AnonVitals/internal/report"

	"github.com/cenkalti/backoff/v4"
)

// State is the scheduler's current phase, exposed for logging and tests.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateAnonymizing State = "anonymizing"
	StateDispatching State = "dispatching"
	StateSleeping    State = "sleeping"
	StateAdvancing   State = "advancing"
	StateStopped     State = "stopped"
)

// Cycle is what the scheduler drives for every window: the engine's
// anonymization pass followed by the fan-out to sinks. Errors from either
// phase are fatal to the run; per-sink failures are not errors here.
type Cycle interface {
	Anonymize(batch *model.Batch) (*model.AnonymizedBatch, error)
	Dispatch(ctx context.Context, batch *model.AnonymizedBatch) error
}

// Scheduler owns the window lifetime for one run.
type Scheduler struct {
	source   model.Source
	cycle    Cycle
	reporter *report.Reporter

	mode          string
	window        time.Duration
	start         time.Time
	end           time.Time
	pollInterval  time.Duration
	maxRecords    int
	fetchAttempts int
	fetchBackoff  time.Duration

	// now is swapped out by streaming-mode tests.
	now func() time.Time

	mu    sync.Mutex
	state State
}

// New creates a Scheduler from a validated configuration.
func New(cfg *config.Config, source model.Source, cycle Cycle, reporter *report.Reporter) (*Scheduler, error) {
	if source == nil || cycle == nil || reporter == nil {
		return nil, model.NewConfigurationError("scheduler requires a source, a cycle and a reporter")
	}
	if cfg.Scheduler.FetchAttempts < 1 {
		return nil, model.NewConfigurationError("fetch_attempts must be >= 1, got %d", cfg.Scheduler.FetchAttempts)
	}
	s := &Scheduler{
		source:        source,
		cycle:         cycle,
		reporter:      reporter,
		mode:          cfg.Scheduler.Mode,
		window:        cfg.BatchWindow(),
		pollInterval:  cfg.PollInterval(),
		maxRecords:    cfg.Scheduler.MaxRecordsPerWindow,
		fetchAttempts: cfg.Scheduler.FetchAttempts,
		fetchBackoff:  cfg.FetchBackoff(),
		now:           time.Now,
		state:         StateIdle,
	}
	if s.mode == "historical" {
		s.start, s.end = cfg.HistoricalRange()
	}
	return s, nil
}

// State returns the scheduler's current phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run processes windows until the range is exhausted (historical), the
// context is cancelled, or a fatal error occurs. Skipped windows are not
// fatal; they are recorded and the scheduler advances.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	if s.mode == "historical" {
		return s.runHistorical(ctx)
	}
	return s.runStreaming(ctx)
}

func (s *Scheduler) runHistorical(ctx context.Context) error {
	log.Printf("Scheduler starting historical run: [%s, %s) window=%s",
		s.start.Format(time.RFC3339), s.end.Format(time.RFC3339), s.window)

	for ws := s.start; ws.Before(s.end); ws = ws.Add(s.window) {
		if err := ctx.Err(); err != nil {
			log.Printf("Scheduler cancelled at window boundary %s", ws.Format(time.RFC3339))
			return err
		}
		if err := s.processWindow(ctx, ws, ws.Add(s.window)); err != nil {
			return err
		}
		s.setState(StateAdvancing)
	}

	log.Printf("Scheduler finished historical range")
	return nil
}

func (s *Scheduler) runStreaming(ctx context.Context) error {
	ws := s.now().UTC().Truncate(s.window)
	log.Printf("Scheduler starting streaming run from %s window=%s poll=%s",
		ws.Format(time.RFC3339), s.window, s.pollInterval)

	for {
		if err := ctx.Err(); err != nil {
			log.Printf("Scheduler cancelled at window boundary %s", ws.Format(time.RFC3339))
			return err
		}

		we := ws.Add(s.window)
		if we.After(s.now().UTC()) {
			s.setState(StateSleeping)
			timer := time.NewTimer(s.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			continue
		}

		if err := s.processWindow(ctx, ws, we); err != nil {
			return err
		}
		s.setState(StateAdvancing)
		ws = we
	}
}

// processWindow runs one window through fetch, anonymize and dispatch. A
// window whose fetch retries are exhausted or whose record count exceeds the
// cap is skipped, never retried across windows.
func (s *Scheduler) processWindow(ctx context.Context, ws, we time.Time) error {
	s.setState(StateFetching)
	samples, err := s.fetchWithRetry(ctx, ws, we)
	if err != nil {
		log.Printf("Window [%s, %s) skipped: %v", ws.Format(time.RFC3339), we.Format(time.RFC3339), err)
		s.reporter.RecordSkippedWindow(ws, we, err)
		return nil
	}

	if s.maxRecords > 0 && len(samples) > s.maxRecords {
		err := &model.OverloadError{Records: len(samples), Limit: s.maxRecords}
		log.Printf("Window [%s, %s) skipped: %v", ws.Format(time.RFC3339), we.Format(time.RFC3339), err)
		s.reporter.RecordSkippedWindow(ws, we, err)
		return nil
	}

	batch := &model.Batch{WindowStart: ws, WindowEnd: we, Samples: samples}

	s.setState(StateAnonymizing)
	anon, err := s.cycle.Anonymize(batch)
	if err != nil {
		return err
	}

	s.setState(StateDispatching)
	return s.cycle.Dispatch(ctx, anon)
}

// fetchWithRetry retries source failures with bounded exponential backoff.
// Only SourceUnavailableError is retryable; anything else fails immediately.
func (s *Scheduler) fetchWithRetry(ctx context.Context, ws, we time.Time) ([]model.RawSample, error) {
	var samples []model.RawSample

	op := func() error {
		var err error
		samples, err = s.source.Fetch(ctx, ws, we)
		if err != nil {
			var unavailable *model.SourceUnavailableError
			if errors.As(err, &unavailable) {
				log.Printf("Source fetch for [%s, %s) failed (will retry if budget remains): %v",
					ws.Format(time.RFC3339), we.Format(time.RFC3339), err)
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.fetchBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.fetchAttempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return samples, nil
}
