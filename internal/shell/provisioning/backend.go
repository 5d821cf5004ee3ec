// Package provisioning is the boundary between emitted plans and whatever
// creates the resources they describe.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artpar/topoplan/internal/core/domain"
	"github.com/artpar/topoplan/internal/core/topology"
	"github.com/artpar/topoplan/internal/shell/store"
)

var (
	// ErrUnknownHandle is returned when a handle names no submission.
	ErrUnknownHandle = errors.New("unknown provisioning handle")

	// ErrStillActive is returned when discarding a submission that has not
	// reached a terminal state.
	ErrStillActive = errors.New("submission is still active")
)

// Handle identifies a submitted plan.
type Handle string

// Backend accepts plans for provisioning and reports their state.
// Unknown handles yield errors wrapping ErrUnknownHandle.
type Backend interface {
	SubmitPlan(ctx context.Context, name string, plan *topology.Plan) (Handle, error)
	QueryStatus(ctx context.Context, h Handle) (domain.ProvisioningState, error)

	// Submission returns the full record behind h.
	Submission(ctx context.Context, h Handle) (*domain.Submission, error)

	// Discard forgets a failed or succeeded submission.
	Discard(ctx context.Context, h Handle) error
}

// StoreBackend records submissions in a store. A rollout worker picks them
// up from there and drives them to a terminal state.
type StoreBackend struct {
	store  store.Store
	logger *slog.Logger
}

// NewStoreBackend creates a backend persisting to s.
func NewStoreBackend(s store.Store, logger *slog.Logger) *StoreBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreBackend{
		store:  s,
		logger: logger.With("component", "provisioning"),
	}
}

// SubmitPlan stores plan as a pending submission and returns its handle.
func (b *StoreBackend) SubmitPlan(ctx context.Context, name string, plan *topology.Plan) (Handle, error) {
	sub, err := domain.NewSubmission(name, plan)
	if err != nil {
		return "", err
	}
	if err := b.store.CreateSubmission(ctx, sub); err != nil {
		return "", fmt.Errorf("submit plan: %w", err)
	}

	b.logger.Info("plan submitted",
		"submission_id", sub.ID,
		"name", sub.Name,
		"units", len(sub.Order),
		"warnings", len(sub.Warnings),
	)
	return Handle(sub.ID), nil
}

// QueryStatus returns the current state of the submission behind h.
func (b *StoreBackend) QueryStatus(ctx context.Context, h Handle) (domain.ProvisioningState, error) {
	sub, err := b.Submission(ctx, h)
	if err != nil {
		return "", err
	}
	return sub.Status, nil
}

// Submission returns the full record behind h.
func (b *StoreBackend) Submission(ctx context.Context, h Handle) (*domain.Submission, error) {
	if h == "" {
		return nil, fmt.Errorf("%w: empty handle", ErrUnknownHandle)
	}
	sub, err := b.store.GetSubmission(ctx, string(h))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
		}
		return nil, fmt.Errorf("query status: %w", err)
	}
	return sub, nil
}

// Discard deletes the submission behind h once it is terminal. The check and
// the delete run in one transaction so a rollout cannot pick it up between.
func (b *StoreBackend) Discard(ctx context.Context, h Handle) error {
	if h == "" {
		return fmt.Errorf("%w: empty handle", ErrUnknownHandle)
	}
	err := b.store.WithTx(ctx, func(tx store.Store) error {
		sub, err := tx.GetSubmission(ctx, string(h))
		if err != nil {
			return err
		}
		if !sub.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrStillActive, h, sub.Status)
		}
		return tx.DeleteSubmission(ctx, string(h))
	})
	if err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
		}
		if errors.Is(err, ErrStillActive) {
			return err
		}
		return fmt.Errorf("discard submission: %w", err)
	}

	b.logger.Info("submission discarded", "submission_id", string(h))
	return nil
}
