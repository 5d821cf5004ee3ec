package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/topoplan/internal/core/topology"
)

// runCLI executes the command line and returns the exit code and output.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	clearEnv(t)
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// Plan Command Tests
// =============================================================================

func TestPlan_Text(t *testing.T) {
	code, out, _ := runCLI(t, "plan", "testdata/rpa.yaml", "--var", "POSTGRES_PASSWORD=s3cret")

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "Plan for rpa:\n  1. db\n  2. mc\n  3. rs\n", out)
}

func TestPlan_TextWithWarnings(t *testing.T) {
	code, out, _ := runCLI(t, "plan", "testdata/rpa.yaml")

	assert.Equal(t, ExitSuccess, code, "warnings do not fail the plan")
	assert.Contains(t, out, "Warnings (1):")
	assert.Contains(t, out, string(topology.WarningUnresolvedVariable))
	assert.Contains(t, out, "POSTGRES_PASSWORD")
}

func TestPlan_Strict(t *testing.T) {
	code, _, errOut := runCLI(t, "plan", "testdata/rpa.yaml", "--strict")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "plan has warnings")

	code, _, _ = runCLI(t, "plan", "testdata/rpa.yaml", "--strict", "--var", "POSTGRES_PASSWORD=x")
	assert.Equal(t, ExitSuccess, code)
}

func TestPlan_ConfigVariables(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "topoplan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("variables:\n  POSTGRES_PASSWORD: from-config\n"), 0644))

	code, out, _ := runCLI(t, "plan", "testdata/rpa.yaml", "--config", cfgPath, "--strict")

	assert.Equal(t, ExitSuccess, code)
	assert.NotContains(t, out, "Warnings")
}

func TestPlan_JSON(t *testing.T) {
	code, out, _ := runCLI(t, "plan", "testdata/rpa.yaml", "-f", "json")
	require.Equal(t, ExitSuccess, code)

	var got struct {
		Name     string             `json:"name"`
		Order    []string           `json:"order"`
		Warnings []topology.Warning `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "rpa", got.Name)
	assert.Equal(t, []string{"db", "mc", "rs"}, got.Order)
	assert.Len(t, got.Warnings, 1)
}

func TestPlan_Cycle(t *testing.T) {
	code, out, errOut := runCLI(t, "plan", "testdata/cycle.yaml")

	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "dependency cycle detected")
	assert.Contains(t, errOut, "api")
	assert.Contains(t, errOut, "worker")
}

func TestPlan_Compose(t *testing.T) {
	code, out, _ := runCLI(t, "plan", "-c", "testdata/compose.yml", "--var", "POSTGRES_PASSWORD=x")

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "1. db\n  2. mc\n")
}

func TestPlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"plan", "testdata/nope.yaml"}, "read description"},
		{"bad format", []string{"plan", "testdata/rpa.yaml", "-f", "xml"}, "unknown format"},
		{"no args", []string{"plan"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, ExitFailure, code)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestPlan_Stdin(t *testing.T) {
	clearEnv(t)
	root := newRootCmd()
	root.SetArgs([]string{"plan", "-"})
	root.SetIn(strings.NewReader("units:\n  - {name: solo, image: busybox}\n"))
	var out bytes.Buffer
	root.SetOut(&out)

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "1. solo")
}

// =============================================================================
// Graph Command Tests
// =============================================================================

func TestGraph_DOT(t *testing.T) {
	code, out, _ := runCLI(t, "graph", "testdata/rpa.yaml", "--ports", "--steps")

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "postgres:10")
	assert.Contains(t, out, "1. db")
}

func TestGraph_Mermaid(t *testing.T) {
	code, out, _ := runCLI(t, "graph", "testdata/rpa.yaml", "-f", "mermaid")

	assert.Equal(t, ExitSuccess, code)
	assert.True(t, strings.Contains(out, "flowchart") || strings.Contains(out, "graph"), out)
}

func TestGraph_BadFormat(t *testing.T) {
	code, _, errOut := runCLI(t, "graph", "testdata/rpa.yaml", "-f", "png")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "unknown graph format")
}

// =============================================================================
// Convert Command Tests
// =============================================================================

func TestConvert_Compose(t *testing.T) {
	code, out, _ := runCLI(t, "convert", "-c", "testdata/compose.yml")
	require.Equal(t, ExitSuccess, code)

	assert.Contains(t, out, "units:")
	assert.Contains(t, out, "postgres-service")
	assert.Contains(t, out, "${POSTGRES_PASSWORD}")

	converted := filepath.Join(t.TempDir(), "stack.yaml")
	require.NoError(t, os.WriteFile(converted, []byte(out), 0644))

	code, plan, _ := runCLI(t, "plan", converted, "--var", "POSTGRES_PASSWORD=x")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, plan, "1. db\n  2. mc\n")
}

func TestConvert_InvalidInput(t *testing.T) {
	code, _, errOut := runCLI(t, "convert", "testdata/nope.yaml")

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, errOut, "read description")
}

// =============================================================================
// Version Tests
// =============================================================================

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "version")

	assert.Equal(t, ExitSuccess, code)
	assert.True(t, strings.HasPrefix(out, "topoplan "), out)
}

func TestGetVersion(t *testing.T) {
	v := getVersion()
	assert.NotEmpty(t, v)
	assert.True(t, v == "dev" || strings.HasPrefix(v, "v"), v)
}
