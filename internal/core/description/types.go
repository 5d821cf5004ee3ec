// Package description parses structured topology descriptions.
// This is part of the Functional Core - all functions are pure with no I/O.
//
// A description is a YAML (or JSON) document listing units, dependencies and
// load-balancer targets:
//
//	name: rpa
//	units:
//	  - name: db
//	    image: postgres:10
//	    service_name: postgres-service
//	    ports: ["5432/tcp"]
//	  - name: mc
//	    image: kapowsoftware/managementconsole:10.3.0.1
//	    ports: [8080]
//	    depends_on: [db]
//	targets:
//	  - unit: mc
//	    port: 8080
//	    listener_port: 80
//	    protocol: http
package description

import (
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"

	"github.com/artpar/topoplan/internal/core/topology"
)

// =============================================================================
// Document
// =============================================================================

// Document is a parsed topology description.
type Document struct {
	Name         string           `yaml:"name,omitempty" json:"name,omitempty"`
	Units        []UnitSpec       `yaml:"units" json:"units"`
	Dependencies []DependencySpec `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Targets      []TargetSpec     `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// UnitSpec describes one compute unit.
type UnitSpec struct {
	Name            string           `yaml:"name" json:"name"`
	Image           string           `yaml:"image" json:"image"`
	CPU             int              `yaml:"cpu,omitempty" json:"cpu,omitempty"`
	Memory          int              `yaml:"memory,omitempty" json:"memory,omitempty"`
	ContainerMemory int              `yaml:"container_memory,omitempty" json:"container_memory,omitempty"`
	ServiceName     string           `yaml:"service_name,omitempty" json:"service_name,omitempty"`
	Environment     EnvList          `yaml:"environment,omitempty" json:"environment,omitempty"`
	Ports           []PortSpec       `yaml:"ports,omitempty" json:"ports,omitempty"`
	DependsOn       []string         `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Logging         *LoggingSpec     `yaml:"logging,omitempty" json:"logging,omitempty"`
	HealthCheck     *HealthCheckSpec `yaml:"health_check,omitempty" json:"health_check,omitempty"`
}

// LoggingSpec configures log shipping for a unit.
type LoggingSpec struct {
	StreamPrefix  string `yaml:"stream_prefix" json:"stream_prefix"`
	RetentionDays int    `yaml:"retention_days,omitempty" json:"retention_days,omitempty"`
}

// HealthCheckSpec configures the load-balancer health check of a unit.
type HealthCheckSpec struct {
	Path string `yaml:"path" json:"path"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty"`
}

// DependencySpec is an explicit depends-on edge.
type DependencySpec struct {
	Dependent  string `yaml:"dependent" json:"dependent"`
	Dependency string `yaml:"dependency" json:"dependency"`
}

// TargetSpec routes a load-balancer listener to a unit port.
type TargetSpec struct {
	Unit         string `yaml:"unit" json:"unit"`
	Port         int    `yaml:"port" json:"port"`
	ListenerPort int    `yaml:"listener_port" json:"listener_port"`
	Protocol     string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
}

// =============================================================================
// Environment
// =============================================================================

// EnvEntry is one environment variable.
type EnvEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EnvList is an ordered environment. It decodes from a mapping
// (KEY: value) or a sequence of KEY=value strings.
type EnvList []EnvEntry

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *EnvList) UnmarshalYAML(node *yaml.Node) error {
	var out EnvList
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return lineError(val, "environment values must be scalars")
			}
			value := val.Value
			if val.Tag == "!!null" {
				value = ""
			}
			out = append(out, EnvEntry{Key: key.Value, Value: value})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return lineError(item, "environment entries must be KEY=value strings")
			}
			key, value, _ := strings.Cut(item.Value, "=")
			out = append(out, EnvEntry{Key: key, Value: value})
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return lineError(node, "environment must be a mapping or a list")
		}
	default:
		return lineError(node, "environment must be a mapping or a list")
	}
	*l = out
	return nil
}

// MarshalYAML implements yaml.Marshaler, emitting an ordered mapping.
func (l EnvList) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range l {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Value},
		)
	}
	return node, nil
}

// =============================================================================
// Ports
// =============================================================================

// PortSpec is a port a unit binds. It decodes from "8080", "8080/udp",
// a bare integer, or a {port, protocol} mapping.
type PortSpec struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
}

// ParsePortSpec parses the "port[/proto]" short syntax.
// Port ranges are rejected.
func ParsePortSpec(raw string) (PortSpec, error) {
	proto, port := nat.SplitProtoPort(strings.TrimSpace(raw))
	if port == "" {
		return PortSpec{}, fmt.Errorf("empty port")
	}
	start, end, err := nat.ParsePortRangeToInt(port)
	if err != nil {
		return PortSpec{}, fmt.Errorf("invalid port %q: %w", raw, err)
	}
	if start != end {
		return PortSpec{}, fmt.Errorf("port ranges are not supported: %q", raw)
	}
	return PortSpec{Port: start, Protocol: strings.ToLower(proto)}, nil
}

// String returns the short syntax, e.g. "8080/tcp".
func (p PortSpec) String() string {
	proto := p.Protocol
	if proto == "" {
		proto = string(topology.ProtocolTCP)
	}
	return string(nat.Port(fmt.Sprintf("%d/%s", p.Port, proto)))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *PortSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		spec, err := ParsePortSpec(node.Value)
		if err != nil {
			return lineError(node, err.Error())
		}
		*p = spec
		return nil
	case yaml.MappingNode:
		var aux struct {
			Port     int    `yaml:"port"`
			Protocol string `yaml:"protocol"`
		}
		if err := node.Decode(&aux); err != nil {
			return lineError(node, "invalid port mapping")
		}
		*p = PortSpec{Port: aux.Port, Protocol: strings.ToLower(aux.Protocol)}
		return nil
	default:
		return lineError(node, "port must be a string, number or mapping")
	}
}

// MarshalYAML implements yaml.Marshaler.
func (p PortSpec) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

func lineError(node *yaml.Node, message string) error {
	return topology.NewMalformedInputError(fmt.Sprintf("line %d", node.Line), message)
}
