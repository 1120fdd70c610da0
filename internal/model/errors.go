package model

import "fmt"

// ConfigurationError marks an invalid engine configuration (bad k, unknown
// sink kind, malformed option). It is fatal at startup: the engine never
// begins processing.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// HierarchyInvalidError marks a hierarchy definition that fails the
// monotonic-coarsening check. Fatal at startup.
type HierarchyInvalidError struct {
	Field  string
	Reason string
}

func (e *HierarchyInvalidError) Error() string {
	return fmt.Sprintf("invalid hierarchy for field %q: %s", e.Field, e.Reason)
}

// SourceUnavailableError wraps a failed batch source fetch. Recoverable per
// window: the scheduler retries with backoff and skips the window once the
// attempt budget is exhausted.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("batch source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// OverloadError marks a window whose record count exceeds the configured
// cap. The window is rejected and logged; processing continues with the
// next window.
type OverloadError struct {
	Records int
	Limit   int
}

func (e *OverloadError) Error() string {
	return fmt.Sprintf("window holds %d records, exceeding the cap of %d", e.Records, e.Limit)
}
