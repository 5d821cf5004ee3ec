package topology

import (
	"fmt"
	"maps"
)

// =============================================================================
// Unit Registry
// =============================================================================

// Registry holds the units of one topology in insertion order.
// A Registry is not safe for concurrent use; each run owns its own.
type Registry struct {
	units     []Unit
	index     map[string]int
	variables map[string]string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithVariables injects the configuration used to resolve ${VAR}
// placeholders in environment values at registration time.
func WithVariables(vars map[string]string) RegistryOption {
	return func(r *Registry) {
		r.variables = maps.Clone(vars)
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{index: make(map[string]int)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds u to the registry. It fails with *DuplicateUnitError when a
// unit with the same name exists, leaving the registry unchanged.
func (r *Registry) Register(u Unit) error {
	if _, exists := r.index[u.Name]; exists {
		return &DuplicateUnitError{Name: u.Name}
	}

	stored := u.clone()
	for i, e := range stored.Environment {
		value, injected := Substitute(e.Value, r.variables)
		stored.Environment[i].Value = value
		stored.Environment[i].Injected = e.Injected || injected
	}

	r.index[u.Name] = len(r.units)
	r.units = append(r.units, stored)
	return nil
}

// Get returns a copy of the named unit.
func (r *Registry) Get(name string) (Unit, bool) {
	i, ok := r.index[name]
	if !ok {
		return Unit{}, false
	}
	return r.units[i].clone(), true
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Index returns the insertion index of name.
func (r *Registry) Index(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// All returns copies of every unit in insertion order.
func (r *Registry) All() []Unit {
	out := make([]Unit, len(r.units))
	for i, u := range r.units {
		out[i] = u.clone()
	}
	return out
}

// Names returns the unit names in insertion order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.units))
	for i, u := range r.units {
		names[i] = u.Name
	}
	return names
}

// Len returns the number of registered units.
func (r *Registry) Len() int {
	return len(r.units)
}

// =============================================================================
// Structural Validation
// =============================================================================

// ValidateUnit checks the structural invariants of a unit before it is
// registered. Field paths are relative to the unit at position idx.
func ValidateUnit(idx int, u Unit) error {
	field := fmt.Sprintf("units[%d]", idx)

	if u.Name == "" {
		return NewMalformedInputError(field+".name", "name is required")
	}
	if u.Image == "" {
		return NewMalformedInputError(field+".image", "image is required")
	}
	if u.Resources.CPU < 0 {
		return NewMalformedInputError(field+".cpu", "cpu cannot be negative")
	}
	if u.Resources.MemoryMiB < 0 {
		return NewMalformedInputError(field+".memory", "memory cannot be negative")
	}

	seen := make(map[string]bool, len(u.Environment))
	for i, e := range u.Environment {
		if e.Key == "" {
			return NewMalformedInputError(fmt.Sprintf("%s.environment[%d]", field, i), "key is required")
		}
		if seen[e.Key] {
			return NewMalformedInputError(fmt.Sprintf("%s.environment.%s", field, e.Key), "duplicate environment key")
		}
		seen[e.Key] = true
	}

	for i, p := range u.Ports {
		portField := fmt.Sprintf("%s.ports[%d]", field, i)
		if p.Port < 1 || p.Port > 65535 {
			return NewMalformedInputError(portField, fmt.Sprintf("port %d out of range 1-65535", p.Port))
		}
		if !p.Protocol.Valid() {
			return NewMalformedInputError(portField, fmt.Sprintf("unknown protocol %q", p.Protocol))
		}
	}

	return nil
}

// ValidateTarget checks the structural invariants of a load-balancer target.
func ValidateTarget(idx int, t Target) error {
	field := fmt.Sprintf("targets[%d]", idx)

	if t.Unit == "" {
		return NewMalformedInputError(field+".unit", "unit is required")
	}
	if t.Port < 1 || t.Port > 65535 {
		return NewMalformedInputError(field+".port", fmt.Sprintf("port %d out of range 1-65535", t.Port))
	}
	if t.ListenerPort < 1 || t.ListenerPort > 65535 {
		return NewMalformedInputError(field+".listener_port", fmt.Sprintf("port %d out of range 1-65535", t.ListenerPort))
	}
	if !t.Protocol.Valid() {
		return NewMalformedInputError(field+".protocol", fmt.Sprintf("unknown listener protocol %q", t.Protocol))
	}
	return nil
}
