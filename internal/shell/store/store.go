package store

import (
	"context"

	"github.com/artpar/topoplan/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for plan submissions.
type Store interface {
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)
	UpdateSubmission(ctx context.Context, sub *domain.Submission) error
	DeleteSubmission(ctx context.Context, id string) error
	ListSubmissions(ctx context.Context, opts ListOptions) ([]domain.Submission, error)

	// CountSubmissions counts submissions in status, or all of them when
	// status is empty.
	CountSubmissions(ctx context.Context, status domain.ProvisioningState) (int, error)

	// ListSubmissionsByStatus returns submissions in any of the given states,
	// oldest first.
	ListSubmissionsByStatus(ctx context.Context, statuses ...domain.ProvisioningState) ([]domain.Submission, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options.
type ListOptions struct {
	Limit  int
	Offset int
	Status domain.ProvisioningState // empty means any
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{Limit: 100}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
