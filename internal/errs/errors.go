package errs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrInvalid  = errors.New("invalid")
	ErrConflict = errors.New("conflict")
	// ErrBatchTooLarge rejects a batch before any validation runs.
	ErrBatchTooLarge = errors.New("batch_too_large")
)

// ValidationError is a caller-fixable rejection detected before any write.
// Reason is a single human-readable message; the first failing check wins.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validation builds a ValidationError from a format string.
func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigError reports a missing fixed account row. It signals an operational
// setup defect, not something the caller can fix by retrying.
type ConfigError struct {
	AccountID uuid.UUID
}

func (e *ConfigError) Error() string {
	return "account " + e.AccountID.String() + " not configured"
}

// BatchItemError tags a failure with the batch index it occurred at.
type BatchItemError struct {
	Index int
	Err   error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("invoice at index %d: %v", e.Index, e.Err)
}

func (e *BatchItemError) Unwrap() error { return e.Err }
