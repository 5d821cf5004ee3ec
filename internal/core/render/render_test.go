package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/topoplan/internal/core/topology"
)

func rpaResult(t *testing.T) *topology.Result {
	t.Helper()
	res, err := topology.RunWithGraph(topology.Input{
		Units: []topology.Unit{
			{Name: "db", Image: "postgres:10", Ports: []topology.PortBinding{{Port: 5432, Protocol: topology.ProtocolTCP}}},
			{Name: "mc", Image: "managementconsole", Ports: []topology.PortBinding{{Port: 8080, Protocol: topology.ProtocolTCP}}},
			{Name: "rs", Image: "roboserver"},
		},
		Edges: []topology.Edge{
			{Dependent: "mc", Dependency: "db"},
			{Dependent: "rs", Dependency: "mc"},
		},
		Targets: []topology.Target{{Unit: "mc", Port: 8080, ListenerPort: 443, Protocol: topology.ListenerHTTPS}},
	})
	require.NoError(t, err)
	return res
}

func TestRender_DOT(t *testing.T) {
	res := rpaResult(t)

	out, err := String(res.Graph, res.Targets, Options{})
	require.NoError(t, err)

	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "postgres:10")
	assert.Contains(t, out, "managementconsole")
	assert.Contains(t, out, "https :443")
	assert.Contains(t, out, `label="load balancer"`)
	assert.Contains(t, out, "dashed")
	assert.Equal(t, 3, strings.Count(out, "->"), "two dependency edges and one listener edge")
}

func TestRender_PlanAndPorts(t *testing.T) {
	res := rpaResult(t)

	out, err := String(res.Graph, nil, Options{Plan: res.Plan, ShowPorts: true})
	require.NoError(t, err)

	assert.Contains(t, out, "1. db")
	assert.Contains(t, out, "3. rs")
	assert.Contains(t, out, "5432/tcp")
	assert.NotContains(t, out, "load balancer", "no listeners without targets")
}

func TestRender_Mermaid(t *testing.T) {
	res := rpaResult(t)

	out, err := String(res.Graph, res.Targets, Options{Format: FormatMermaid})
	require.NoError(t, err)

	assert.True(t, strings.Contains(out, "flowchart") || strings.Contains(out, "graph"), out)
	assert.Contains(t, out, "mc")
	assert.NotContains(t, out, "digraph")
	assert.NotContains(t, out, " dashed", "mermaid rejects graphviz style names")
	assert.Contains(t, out, "stroke-dasharray")
}

func TestRender_UnknownTargetUnitHighlighted(t *testing.T) {
	res := rpaResult(t)
	targets := []topology.Target{{Unit: "ghost", Port: 80, ListenerPort: 80, Protocol: topology.ListenerHTTP}}

	out, err := String(res.Graph, targets, Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "ghost")
	assert.Contains(t, out, "red")
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatDOT, f)

	f, err = ParseFormat("Mermaid")
	require.NoError(t, err)
	assert.Equal(t, FormatMermaid, f)

	_, err = ParseFormat("svg")
	assert.Error(t, err)
}
