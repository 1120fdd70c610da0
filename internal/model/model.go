package model

import "time"

// RawSample is a single device reading at one instant: a timestamp, the
// emitting device, and one numeric value per measured field (e.g. hr, spo2).
// Samples are immutable once fetched.
type RawSample struct {
	Timestamp time.Time          `json:"timestamp"`
	SourceID  string             `json:"source_id"`
	Fields    map[string]float64 `json:"fields"`
}

// Batch holds the raw samples of one time window [WindowStart, WindowEnd).
// A batch is created by the scheduler, consumed by one processing cycle and
// discarded after dispatch; it is never mutated once closed.
type Batch struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Samples     []RawSample
}

// EquivalenceGroup is a set of samples whose generalized tuples are
// identical at the given level. A released (non-suppressed) group always
// has at least k members.
type EquivalenceGroup struct {
	Level      int
	Key        string
	Tokens     map[string]string
	Members    []RawSample
	Suppressed bool
}

// AnonymizedSample is produced one-to-one from each member of a released
// group. Fields carry the imputed values; Tokens carry the generalization
// token per quasi-identifier at the level the group was finalized at.
// Suppressed marker records carry no field values.
type AnonymizedSample struct {
	Timestamp  time.Time          `json:"timestamp"`
	SourceID   string             `json:"source_id,omitempty"`
	Fields     map[string]float64 `json:"fields,omitempty"`
	Tokens     map[string]string  `json:"tokens,omitempty"`
	Level      int                `json:"level"`
	Suppressed bool               `json:"suppressed"`
}

// AnonymizedBatch is the unit handed to the output dispatcher.
type AnonymizedBatch struct {
	WindowStart time.Time          `json:"window_start"`
	WindowEnd   time.Time          `json:"window_end"`
	KValue      int                `json:"k_value"`
	Samples     []AnonymizedSample `json:"samples"`
}

// SinkResult is the per-sink outcome of dispatching one batch. Results are
// never shared across batches.
type SinkResult struct {
	SinkName       string
	Success        bool
	RecordsWritten int
	Err            error
}

// BatchStatus is the tri-state dispatch outcome of one batch.
type BatchStatus string

const (
	BatchSuccess BatchStatus = "success" // every sink succeeded
	BatchPartial BatchStatus = "partial" // some, but not all, sinks succeeded
	BatchFailed  BatchStatus = "failed"  // no sink succeeded
)
