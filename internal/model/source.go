package model

import (
	"context"
	"time"
)

// Source supplies raw samples for a time window. Implementations fetch from
// an external store; the engine only consumes this pull interface.
//
// Fetch returns the samples with timestamps in [start, end). An empty
// result is valid and not an error. A failed fetch is reported as a
// *SourceUnavailableError so the scheduler can retry it.
type Source interface {
	Fetch(ctx context.Context, start, end time.Time) ([]RawSample, error)
	Close() error
}
