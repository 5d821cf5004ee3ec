package topology

import "slices"

// =============================================================================
// Protocols
// =============================================================================

// Protocol is the transport protocol of a unit port binding.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Valid reports whether p is a known binding protocol.
func (p Protocol) Valid() bool {
	return p == ProtocolTCP || p == ProtocolUDP
}

// ListenerProtocol is the protocol a load-balancer listener speaks.
type ListenerProtocol string

const (
	ListenerHTTP  ListenerProtocol = "http"
	ListenerHTTPS ListenerProtocol = "https"
	ListenerTCP   ListenerProtocol = "tcp"
	ListenerUDP   ListenerProtocol = "udp"
)

// Valid reports whether p is a known listener protocol.
func (p ListenerProtocol) Valid() bool {
	switch p {
	case ListenerHTTP, ListenerHTTPS, ListenerTCP, ListenerUDP:
		return true
	}
	return false
}

// Transport returns the binding protocol traffic from this listener is
// forwarded over. HTTP and HTTPS listeners forward to TCP bindings.
func (p ListenerProtocol) Transport() Protocol {
	if p == ListenerUDP {
		return ProtocolUDP
	}
	return ProtocolTCP
}

// =============================================================================
// Units
// =============================================================================

// Resources is the cpu/memory reservation of a unit.
// CPU is expressed in cpu units (1024 = one vCPU).
type Resources struct {
	CPU       int `json:"cpu"`
	MemoryMiB int `json:"memory_mib"`
}

// EnvVar is one environment entry of a unit.
// Injected is true when the value came from injected configuration rather
// than a literal in the description.
type EnvVar struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Injected bool   `json:"injected,omitempty"`
}

// PortBinding is a port a unit listens on.
type PortBinding struct {
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// LogConfig describes where a unit's output is shipped.
type LogConfig struct {
	StreamPrefix  string `json:"stream_prefix"`
	RetentionDays int    `json:"retention_days,omitempty"`
}

// HealthCheck is the load-balancer health check of a unit.
type HealthCheck struct {
	Path string `json:"path"`
	Port int    `json:"port,omitempty"`
}

// Unit is a deployable compute unit.
type Unit struct {
	Name               string        `json:"name"`
	Image              string        `json:"image"`
	Resources          Resources     `json:"resources"`
	ContainerMemoryMiB int           `json:"container_memory_mib,omitempty"`
	Environment        []EnvVar      `json:"environment,omitempty"`
	Ports              []PortBinding `json:"ports,omitempty"`
	ServiceName        string        `json:"service_name,omitempty"`
	Logging            *LogConfig    `json:"logging,omitempty"`
	HealthCheck        *HealthCheck  `json:"health_check,omitempty"`
}

// Env returns the value of key and whether it is set.
func (u Unit) Env(key string) (string, bool) {
	for _, e := range u.Environment {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// HasBinding reports whether the unit declares port with protocol.
func (u Unit) HasBinding(port int, proto Protocol) bool {
	for _, b := range u.Ports {
		if b.Port == port && b.Protocol == proto {
			return true
		}
	}
	return false
}

// clone returns a deep copy so registered units cannot be mutated through
// slices or pointers held by the caller.
func (u Unit) clone() Unit {
	c := u
	c.Environment = slices.Clone(u.Environment)
	c.Ports = slices.Clone(u.Ports)
	if u.Logging != nil {
		l := *u.Logging
		c.Logging = &l
	}
	if u.HealthCheck != nil {
		h := *u.HealthCheck
		c.HealthCheck = &h
	}
	return c
}

// =============================================================================
// Edges and Targets
// =============================================================================

// Edge states that Dependent must be started after Dependency.
type Edge struct {
	Dependent  string `json:"dependent"`
	Dependency string `json:"dependency"`
}

// Target routes a load-balancer listener to a unit port.
type Target struct {
	Unit         string           `json:"unit"`
	Port         int              `json:"port"`
	ListenerPort int              `json:"listener_port"`
	Protocol     ListenerProtocol `json:"protocol"`
}

// =============================================================================
// Warnings and Plans
// =============================================================================

// WarningKind classifies a non-fatal finding.
type WarningKind string

const (
	// WarningDuplicatePort is raised when two units share a service-discovery name.
	WarningDuplicatePort WarningKind = "duplicate_port"
	// WarningUnboundTarget is raised when a target points at an undeclared port.
	WarningUnboundTarget WarningKind = "unbound_target"
	// WarningConflictingPort is raised when a unit binds the same port and protocol twice.
	WarningConflictingPort WarningKind = "conflicting_port"

	WarningInvalidSizing       WarningKind = "invalid_sizing"
	WarningContainerMemory     WarningKind = "container_memory"
	WarningUndeclaredReference WarningKind = "undeclared_reference"
	WarningPlaintextSecret     WarningKind = "plaintext_secret"
	WarningUnresolvedVariable  WarningKind = "unresolved_variable"
	WarningHealthCheck         WarningKind = "health_check"
	WarningLogging             WarningKind = "logging"
)

// Warning is a non-fatal validation finding.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	Units   []string    `json:"units,omitempty"`
}

func (w Warning) String() string {
	return string(w.Kind) + ": " + w.Message
}

// Plan is the ordered rollout of a validated topology.
type Plan struct {
	Order    []string  `json:"order"`
	Warnings []Warning `json:"warnings"`
}

// Position returns the index of name in the order, or -1.
func (p *Plan) Position(name string) int {
	return slices.Index(p.Order, name)
}

// Input is a complete topology description ready for validation.
type Input struct {
	Units   []Unit   `json:"units"`
	Edges   []Edge   `json:"edges,omitempty"`
	Targets []Target `json:"targets,omitempty"`
}
