package description

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/topoplan/internal/core/topology"
)

const rpaYAML = `
name: rpa
units:
  - name: db
    image: postgres:10
    service_name: postgres-service
    ports: ["5432/tcp"]
    environment:
      POSTGRES_USER: postgres
      POSTGRES_PASSWORD: ${POSTGRES_PASSWORD}
    logging:
      stream_prefix: postgres
      retention_days: 3
  - name: mc
    image: kapowsoftware/managementconsole:10.3.0.1
    service_name: managementconsole-service
    container_memory: 256
    ports: [8080]
    environment:
      CONTEXT_RESOURCE_VALIDATIONQUERY: SELECT 1
      CONTEXT_RESOURCE_URL: jdbc:postgresql://postgres-service:5432/postgres
    depends_on: [db]
    health_check:
      path: /api/status
      port: 8080
  - name: rs
    image: kapowsoftware/roboserver:10.3.0.1
    cpu: 512
    memory: 1024
    environment:
      - ROBOSERVER_MC_URL=http://managementconsole-service:8080/
      - ROBOSERVER_ENABLE_MC_REGISTRATION=true
dependencies:
  - dependent: rs
    dependency: mc
targets:
  - unit: mc
    port: 8080
    listener_port: 80
`

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_YAML(t *testing.T) {
	doc, err := Parse([]byte(rpaYAML))
	require.NoError(t, err)

	assert.Equal(t, "rpa", doc.Name)
	require.Len(t, doc.Units, 3)

	db := doc.Units[0]
	assert.Equal(t, []PortSpec{{Port: 5432, Protocol: "tcp"}}, db.Ports)
	assert.Equal(t, EnvList{
		{Key: "POSTGRES_USER", Value: "postgres"},
		{Key: "POSTGRES_PASSWORD", Value: "${POSTGRES_PASSWORD}"},
	}, db.Environment)
	assert.Equal(t, &LoggingSpec{StreamPrefix: "postgres", RetentionDays: 3}, db.Logging)

	mc := doc.Units[1]
	assert.Equal(t, []PortSpec{{Port: 8080, Protocol: "tcp"}}, mc.Ports)
	assert.Equal(t, "CONTEXT_RESOURCE_VALIDATIONQUERY", mc.Environment[0].Key)
	assert.Equal(t, "SELECT 1", mc.Environment[0].Value)
	assert.Equal(t, []string{"db"}, mc.DependsOn)

	rs := doc.Units[2]
	assert.Equal(t, EnvEntry{Key: "ROBOSERVER_MC_URL", Value: "http://managementconsole-service:8080/"}, rs.Environment[0])
}

func TestParse_JSON(t *testing.T) {
	doc, err := Parse([]byte(`{
    "units": [
      {"name": "db", "image": "postgres", "ports": [{"port": 5432, "protocol": "TCP"}], "extra": true},
      {"name": "api", "image": "api", "ports": ["53/udp"], "environment": {"B": "2", "A": "1"}}
    ],
    "dependencies": [{"dependent": "api", "dependency": "db"}]
  }`))
	require.NoError(t, err)

	assert.Equal(t, []PortSpec{{Port: 5432, Protocol: "tcp"}}, doc.Units[0].Ports)
	assert.Equal(t, []PortSpec{{Port: 53, Protocol: "udp"}}, doc.Units[1].Ports)
	assert.Equal(t, EnvList{{Key: "B", Value: "2"}, {Key: "A", Value: "1"}}, doc.Units[1].Environment)
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{name: "empty", input: "  \n", wantField: ""},
		{name: "syntax", input: "units: [", wantField: ""},
		{name: "no units", input: "name: x", wantField: "units"},
		{name: "missing image", input: "units:\n  - name: a\n", wantField: "units[0].image"},
		{name: "missing name", input: "units:\n  - image: a\n", wantField: "units[0].name"},
		{
			name:      "dependency without dependent",
			input:     "units:\n  - {name: a, image: a}\ndependencies:\n  - dependency: a\n",
			wantField: "dependencies[0].dependent",
		},
		{
			name:      "target without listener",
			input:     "units:\n  - {name: a, image: a}\ntargets:\n  - {unit: a, port: 80}\n",
			wantField: "targets[0].listener_port",
		},
		{name: "bad port", input: "units:\n  - name: a\n    image: a\n    ports: [\"http\"]\n", wantField: "line 4"},
		{name: "port range", input: "units:\n  - name: a\n    image: a\n    ports: [\"80-90\"]\n", wantField: "line 4"},
		{name: "wrong type", input: "units:\n  - name: a\n    image: a\n    cpu: lots\n", wantField: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)

			var malformed *topology.MalformedInputError
			require.True(t, errors.As(err, &malformed), "got %T: %v", err, err)
			assert.Equal(t, tt.wantField, malformed.Field)
			assert.ErrorIs(t, err, topology.ErrMalformedInput)
		})
	}
}

// =============================================================================
// Conversion Tests
// =============================================================================

func TestDocument_Input(t *testing.T) {
	doc, err := Parse([]byte(rpaYAML))
	require.NoError(t, err)

	in := doc.Input()
	require.Len(t, in.Units, 3)

	assert.Equal(t, topology.Resources{CPU: 256, MemoryMiB: 512}, in.Units[0].Resources)
	assert.Equal(t, topology.Resources{CPU: 512, MemoryMiB: 1024}, in.Units[2].Resources)
	assert.Equal(t, 256, in.Units[1].ContainerMemoryMiB)
	assert.Equal(t, &topology.HealthCheck{Path: "/api/status", Port: 8080}, in.Units[1].HealthCheck)
	assert.Equal(t, []topology.PortBinding{{Port: 8080, Protocol: topology.ProtocolTCP}}, in.Units[1].Ports)

	assert.Equal(t, []topology.Edge{
		{Dependent: "rs", Dependency: "mc"},
		{Dependent: "mc", Dependency: "db"},
	}, in.Edges)

	assert.Equal(t, []topology.Target{
		{Unit: "mc", Port: 8080, ListenerPort: 80, Protocol: topology.ListenerHTTP},
	}, in.Targets)
}

func TestDocument_PlanEndToEnd(t *testing.T) {
	doc, err := Parse([]byte(rpaYAML))
	require.NoError(t, err)

	plan, err := topology.Run(doc.Input(), topology.WithVariables(map[string]string{"POSTGRES_PASSWORD": "injected"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "mc", "rs"}, plan.Order)
	assert.Empty(t, plan.Warnings)
}

func TestDocument_PlanWarnsWithoutInjection(t *testing.T) {
	doc, err := Parse([]byte(rpaYAML))
	require.NoError(t, err)

	plan, err := topology.Run(doc.Input())
	require.NoError(t, err)
	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, topology.WarningUnresolvedVariable, plan.Warnings[0].Kind)
}

func TestMarshal_RoundTripsShortSyntax(t *testing.T) {
	doc := &Document{Units: []UnitSpec{{
		Name:        "dns",
		Image:       "coredns",
		Ports:       []PortSpec{{Port: 53, Protocol: "udp"}, {Port: 8080}},
		Environment: EnvList{{Key: "Z", Value: "1"}, {Key: "A", Value: "2"}},
	}}}

	out, err := Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "- 53/udp")
	assert.Contains(t, string(out), "- 8080/tcp")

	back, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, doc.Units[0].Environment, back.Units[0].Environment)
	assert.Equal(t, "tcp", back.Units[0].Ports[1].Protocol)
}
