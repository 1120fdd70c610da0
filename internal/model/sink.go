package model

import "context"

// Sink receives one anonymized batch per window. Sinks are independent
// side effects: the dispatcher invokes them concurrently and a failure of
// one never blocks or rolls back the others.
//
// Write returns the number of records written. It must be safe to call
// again with the same batch after a failure (the dispatcher retries).
type Sink interface {
	Name() string
	Write(ctx context.Context, batch *AnonymizedBatch) (int, error)
	Close() error
}
