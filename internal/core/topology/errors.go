package topology

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrDuplicateUnit  = errors.New("duplicate unit")
	ErrUnknownUnit    = errors.New("unknown unit")
	ErrSelfDependency = errors.New("self dependency")
	ErrCycle          = errors.New("dependency cycle detected")
	ErrMalformedInput = errors.New("malformed input")
)

// DuplicateUnitError is returned when a unit name is registered twice.
type DuplicateUnitError struct {
	Name string
}

func (e *DuplicateUnitError) Error() string {
	return fmt.Sprintf("duplicate unit %q: a unit with this name is already registered", e.Name)
}

func (e *DuplicateUnitError) Unwrap() error { return ErrDuplicateUnit }

// UnknownUnitError is returned when an edge references an unregistered unit.
type UnknownUnitError struct {
	Name string
	Edge Edge
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("unknown unit %q in dependency %s -> %s", e.Name, e.Edge.Dependent, e.Edge.Dependency)
}

func (e *UnknownUnitError) Unwrap() error { return ErrUnknownUnit }

// SelfDependencyError is returned when a unit is declared to depend on itself.
type SelfDependencyError struct {
	Name string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("unit %q cannot depend on itself", e.Name)
}

func (e *SelfDependencyError) Unwrap() error { return ErrSelfDependency }

// CycleError is returned when the dependency graph is not acyclic.
// Cycle is a closed path along depends-on edges: the first and last
// elements are the same unit.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle.Error(), strings.Join(e.Cycle, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// MalformedInputError is returned when the description is structurally invalid.
type MalformedInputError struct {
	Field   string // e.g. "units[1].ports[0]"
	Message string
}

func (e *MalformedInputError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Message)
	}
	return "malformed input: " + e.Message
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// NewMalformedInputError creates a new MalformedInputError.
func NewMalformedInputError(field, message string) *MalformedInputError {
	return &MalformedInputError{Field: field, Message: message}
}

// ErrorCode maps a topology error to a stable machine-readable code.
// Errors outside this package map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateUnit):
		return "duplicate_unit"
	case errors.Is(err, ErrUnknownUnit):
		return "unknown_unit"
	case errors.Is(err, ErrSelfDependency):
		return "self_dependency"
	case errors.Is(err, ErrCycle):
		return "cycle"
	case errors.Is(err, ErrMalformedInput):
		return "malformed_input"
	default:
		return "internal_error"
	}
}
