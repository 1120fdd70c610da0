package source

import (
	"context"
	"time"

	"AnonVitals/internal/model"
)

// MemorySource serves samples from a fixed in-memory slice, for tests and
// for replaying exported data without a live store.
type MemorySource struct {
	samples []model.RawSample
}

// NewMemorySource creates a source over the given samples.
func NewMemorySource(samples []model.RawSample) *MemorySource {
	return &MemorySource{samples: samples}
}

// Fetch returns the samples falling inside [start, end).
func (s *MemorySource) Fetch(ctx context.Context, start, end time.Time) ([]model.RawSample, error) {
	var out []model.RawSample
	for _, sample := range s.samples {
		if !sample.Timestamp.Before(start) && sample.Timestamp.Before(end) {
			out = append(out, sample)
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemorySource) Close() error { return nil }
