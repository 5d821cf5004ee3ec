package domain

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/topoplan/internal/core/topology"
)

// =============================================================================
// Submission Errors
// =============================================================================

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyPlan         = errors.New("plan has no units")
	ErrProgressOverflow  = errors.New("progress beyond end of plan")
)

// =============================================================================
// Provisioning State
// =============================================================================

// ProvisioningState is the lifecycle state of a submitted plan.
type ProvisioningState string

const (
	StatePending   ProvisioningState = "pending"
	StateRunning   ProvisioningState = "running"
	StateFailed    ProvisioningState = "failed"
	StateSucceeded ProvisioningState = "succeeded"
)

// Terminal reports whether no further transitions are possible.
func (s ProvisioningState) Terminal() bool {
	return s == StateFailed || s == StateSucceeded
}

// Valid reports whether s is a known state.
func (s ProvisioningState) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// =============================================================================
// Submission
// =============================================================================

// Submission is a plan handed to the provisioning backend.
// Progress counts the units of Order already applied.
type Submission struct {
	ID           string             `json:"id" db:"id"`
	Name         string             `json:"name" db:"name"`
	Order        []string           `json:"order" db:"-"`
	Warnings     []topology.Warning `json:"warnings" db:"-"`
	Status       ProvisioningState  `json:"status" db:"status"`
	Progress     int                `json:"progress" db:"progress"`
	ErrorMessage string             `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty" db:"started_at"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty" db:"finished_at"`
}

// NewSubmission creates a pending submission for plan. The stack name is
// derived from name with a random suffix.
func NewSubmission(name string, plan *topology.Plan) (*Submission, error) {
	if plan == nil || len(plan.Order) == 0 {
		return nil, ErrEmptyPlan
	}
	now := time.Now().UTC()
	return &Submission{
		ID:        uuid.New().String(),
		Name:      GenerateSubmissionName(name),
		Order:     slices.Clone(plan.Order),
		Warnings:  slices.Clone(plan.Warnings),
		Status:    StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Transition attempts to move the submission to a new state.
func (s *Submission) Transition(to ProvisioningState) error {
	if err := ValidateTransition(s.Status, to); err != nil {
		return err
	}

	now := time.Now().UTC()
	s.Status = to
	s.UpdatedAt = now

	if to == StateRunning {
		s.StartedAt = &now
	}
	if to.Terminal() {
		s.FinishedAt = &now
	}
	return nil
}

// Fail moves the submission to failed with a message.
func (s *Submission) Fail(message string) error {
	if err := s.Transition(StateFailed); err != nil {
		return err
	}
	s.ErrorMessage = message
	return nil
}

// Advance records that the next unit of the plan was applied.
func (s *Submission) Advance() error {
	if s.Status != StateRunning {
		return fmt.Errorf("%w: cannot advance a %s submission", ErrInvalidTransition, s.Status)
	}
	if s.Progress >= len(s.Order) {
		return ErrProgressOverflow
	}
	s.Progress++
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Remaining returns the units not yet applied, in plan order.
func (s *Submission) Remaining() []string {
	if s.Progress >= len(s.Order) {
		return nil
	}
	return slices.Clone(s.Order[s.Progress:])
}

// Done reports whether every unit of the plan was applied.
func (s *Submission) Done() bool {
	return s.Progress >= len(s.Order)
}

// =============================================================================
// State Machine
// =============================================================================

// validTransitions defines the allowed state transitions.
var validTransitions = map[ProvisioningState][]ProvisioningState{
	StatePending:   {StateRunning, StateFailed},
	StateRunning:   {StateSucceeded, StateFailed},
	StateFailed:    {}, // Terminal state
	StateSucceeded: {}, // Terminal state
}

// ValidateTransition checks if a state transition is valid.
func ValidateTransition(from, to ProvisioningState) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	if slices.Contains(allowed, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// =============================================================================
// Name Generation
// =============================================================================

// GenerateSubmissionName generates a unique stack name from a topology name.
func GenerateSubmissionName(topologyName string) string {
	slug := Slugify(topologyName)
	if slug == "" {
		slug = "topology"
	}
	suffix := make([]byte, 3)
	rand.Read(suffix)
	return fmt.Sprintf("%s-%s", slug, hex.EncodeToString(suffix))
}
