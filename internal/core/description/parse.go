package description

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/topoplan/internal/core/fargate"
	"github.com/artpar/topoplan/internal/core/topology"
)

// DefaultListenerProtocol is used for targets that do not name a protocol.
const DefaultListenerProtocol = topology.ListenerHTTP

// =============================================================================
// Parser Functions
// =============================================================================

// Parse decodes a YAML or JSON description and checks its required fields.
// Unknown fields are ignored. Every failure is a *topology.MalformedInputError.
func Parse(data []byte) (*Document, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, topology.NewMalformedInputError("", "description is empty")
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		var malformed *topology.MalformedInputError
		if errors.As(err, &malformed) {
			return nil, malformed
		}
		return nil, topology.NewMalformedInputError("", yamlMessage(err))
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// yamlMessage strips the "yaml: " prefix from decoder errors.
func yamlMessage(err error) string {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return strings.Join(typeErr.Errors, "; ")
	}
	return strings.TrimPrefix(err.Error(), "yaml: ")
}

// Validate checks that required fields are present.
func (d *Document) Validate() error {
	if len(d.Units) == 0 {
		return topology.NewMalformedInputError("units", "at least one unit is required")
	}

	for i, u := range d.Units {
		field := fmt.Sprintf("units[%d]", i)
		if u.Name == "" {
			return topology.NewMalformedInputError(field+".name", "name is required")
		}
		if u.Image == "" {
			return topology.NewMalformedInputError(field+".image", "image is required")
		}
		for j, dep := range u.DependsOn {
			if dep == "" {
				return topology.NewMalformedInputError(fmt.Sprintf("%s.depends_on[%d]", field, j), "dependency name is required")
			}
		}
	}

	for i, dep := range d.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		if dep.Dependent == "" {
			return topology.NewMalformedInputError(field+".dependent", "dependent is required")
		}
		if dep.Dependency == "" {
			return topology.NewMalformedInputError(field+".dependency", "dependency is required")
		}
	}

	for i, t := range d.Targets {
		field := fmt.Sprintf("targets[%d]", i)
		if t.Unit == "" {
			return topology.NewMalformedInputError(field+".unit", "unit is required")
		}
		if t.Port == 0 {
			return topology.NewMalformedInputError(field+".port", "port is required")
		}
		if t.ListenerPort == 0 {
			return topology.NewMalformedInputError(field+".listener_port", "listener_port is required")
		}
	}

	return nil
}

// =============================================================================
// Conversion
// =============================================================================

// Input converts the document to a topology input, applying defaults:
// cpu 256, memory 512 MiB, tcp bindings and http listeners.
//
// Explicit dependencies come first, followed by each unit's depends_on in
// unit order.
func (d *Document) Input() topology.Input {
	in := topology.Input{
		Units:   make([]topology.Unit, 0, len(d.Units)),
		Targets: make([]topology.Target, 0, len(d.Targets)),
	}

	for _, u := range d.Units {
		in.Units = append(in.Units, u.unit())
	}

	for _, dep := range d.Dependencies {
		in.Edges = append(in.Edges, topology.Edge{Dependent: dep.Dependent, Dependency: dep.Dependency})
	}
	for _, u := range d.Units {
		for _, dep := range u.DependsOn {
			in.Edges = append(in.Edges, topology.Edge{Dependent: u.Name, Dependency: dep})
		}
	}

	for _, t := range d.Targets {
		proto := topology.ListenerProtocol(strings.ToLower(t.Protocol))
		if proto == "" {
			proto = DefaultListenerProtocol
		}
		in.Targets = append(in.Targets, topology.Target{
			Unit:         t.Unit,
			Port:         t.Port,
			ListenerPort: t.ListenerPort,
			Protocol:     proto,
		})
	}

	return in
}

func (u UnitSpec) unit() topology.Unit {
	out := topology.Unit{
		Name:  u.Name,
		Image: u.Image,
		Resources: topology.Resources{
			CPU:       u.CPU,
			MemoryMiB: u.Memory,
		},
		ContainerMemoryMiB: u.ContainerMemory,
		ServiceName:        u.ServiceName,
	}
	if out.Resources.CPU == 0 {
		out.Resources.CPU = fargate.DefaultCPU
	}
	if out.Resources.MemoryMiB == 0 {
		out.Resources.MemoryMiB = fargate.DefaultMemoryMiB
	}

	for _, e := range u.Environment {
		out.Environment = append(out.Environment, topology.EnvVar{Key: e.Key, Value: e.Value})
	}
	for _, p := range u.Ports {
		proto := topology.Protocol(p.Protocol)
		if proto == "" {
			proto = topology.ProtocolTCP
		}
		out.Ports = append(out.Ports, topology.PortBinding{Port: p.Port, Protocol: proto})
	}
	if u.Logging != nil {
		out.Logging = &topology.LogConfig{StreamPrefix: u.Logging.StreamPrefix, RetentionDays: u.Logging.RetentionDays}
	}
	if u.HealthCheck != nil {
		out.HealthCheck = &topology.HealthCheck{Path: u.HealthCheck.Path, Port: u.HealthCheck.Port}
	}
	return out
}

// Marshal encodes the document as YAML.
func Marshal(d *Document) ([]byte, error) {
	return yaml.Marshal(d)
}

// Load parses data as a native description or, when compose is set, as a
// docker-compose file.
func Load(data []byte, compose bool) (*Document, error) {
	if compose {
		return FromCompose(string(data))
	}
	return Parse(data)
}
