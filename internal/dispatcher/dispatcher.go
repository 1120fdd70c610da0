// Package dispatcher fans an anonymized batch out to every configured sink
// concurrently. Sinks are independent side effects: each write gets its own
// retry budget and timeout, and one sink's failure never blocks or rolls
// back the others.
package dispatcher

import (
	"context"
	"log"
	"sync"
	"time"

	"AnonVitals/internal/model"

	"github.com/cenkalti/backoff/v4"
)

// Dispatcher writes batches to N sinks with independent failure accounting.
type Dispatcher struct {
	sinks          []model.Sink
	writeTimeout   time.Duration
	maxAttempts    int
	initialBackoff time.Duration
}

// New creates a Dispatcher. At least one sink is required; maxAttempts is
// the total number of tries per sink per batch (first attempt included).
func New(sinks []model.Sink, writeTimeout time.Duration, maxAttempts int, initialBackoff time.Duration) (*Dispatcher, error) {
	if len(sinks) == 0 {
		return nil, model.NewConfigurationError("dispatcher requires at least one sink")
	}
	if maxAttempts < 1 {
		return nil, model.NewConfigurationError("max_attempts must be >= 1, got %d", maxAttempts)
	}
	return &Dispatcher{
		sinks:          sinks,
		writeTimeout:   writeTimeout,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
	}, nil
}

// Dispatch writes the batch to all sinks in parallel and blocks until every
// sink has succeeded or exhausted its retries. An empty batch performs no
// writes and reports success with no results.
func (d *Dispatcher) Dispatch(ctx context.Context, batch *model.AnonymizedBatch) ([]model.SinkResult, model.BatchStatus) {
	if batch == nil || len(batch.Samples) == 0 {
		return nil, model.BatchSuccess
	}

	// A batch in flight always finishes dispatch: run cancellation applies
	// at window boundaries only, so writes run on a detached context and
	// are bounded by the per-attempt timeout alone.
	writeCtx := context.WithoutCancel(ctx)

	results := make([]model.SinkResult, len(d.sinks))
	var wg sync.WaitGroup
	wg.Add(len(d.sinks))

	for i, sink := range d.sinks {
		go func(i int, sink model.Sink) {
			defer wg.Done()
			results[i] = d.writeWithRetry(writeCtx, sink, batch)
		}(i, sink)
	}

	wg.Wait()

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}

	switch {
	case succeeded == len(results):
		return results, model.BatchSuccess
	case succeeded > 0:
		return results, model.BatchPartial
	default:
		return results, model.BatchFailed
	}
}

// writeWithRetry drives one sink through bounded exponential backoff. The
// timeout applies per write attempt, not to the batch as a whole.
func (d *Dispatcher) writeWithRetry(ctx context.Context, sink model.Sink, batch *model.AnonymizedBatch) model.SinkResult {
	var written int

	op := func() error {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if d.writeTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, d.writeTimeout)
			defer cancel()
		}

		n, err := sink.Write(attemptCtx, batch)
		if err != nil {
			log.Printf("Sink '%s' write failed (will retry if budget remains): %v", sink.Name(), err)
			return err
		}
		written = n
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.initialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(d.maxAttempts-1)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		log.Printf("Sink '%s' failed after %d attempts: %v", sink.Name(), d.maxAttempts, err)
		return model.SinkResult{SinkName: sink.Name(), Success: false, Err: err}
	}

	return model.SinkResult{SinkName: sink.Name(), Success: true, RecordsWritten: written}
}
