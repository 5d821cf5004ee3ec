// Package store persists plan submissions.
package store

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNotFound means no submission has the requested handle.
	ErrNotFound = errors.New("submission not found")

	// ErrDuplicateID means a submission with the handle already exists.
	ErrDuplicateID = errors.New("submission already exists")

	ErrConnectionFailed = errors.New("database connection failed")
	ErrMigrationFailed  = errors.New("database migration failed")

	// ErrInvalidData means the order or warnings columns could not be
	// encoded or decoded.
	ErrInvalidData = errors.New("invalid submission data")

	ErrTxFailed = errors.New("transaction failed")

	// ErrInvalidStatus is returned when filtering by an unknown status.
	ErrInvalidStatus = errors.New("unknown submission status")
)

// IsNotFound reports whether err means the submission does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError carries the failing operation and submission handle. Err is
// one of the sentinels above so callers can use errors.Is.
type StoreError struct {
	Op      string
	Entity  string
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.Entity, e.ID, e.Message)
	}
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}
