package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T, names []string, edges ...Edge) *Graph {
	t.Helper()
	b := NewGraphBuilder(registryOf(t, names...))
	for _, e := range edges {
		require.NoError(t, b.AddEdge(e.Dependent, e.Dependency))
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

// =============================================================================
// Emit Tests
// =============================================================================

func TestEmit_Empty(t *testing.T) {
	plan, err := Emit(buildGraph(t, nil), nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Order)
	assert.NotNil(t, plan.Warnings)
}

func TestEmit_LinearChain(t *testing.T) {
	g := buildGraph(t, []string{"db", "mc", "rs"},
		Edge{Dependent: "mc", Dependency: "db"},
		Edge{Dependent: "rs", Dependency: "mc"},
	)

	plan, err := Emit(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "mc", "rs"}, plan.Order)
}

func TestEmit_ChainDeclaredInReverse(t *testing.T) {
	g := buildGraph(t, []string{"rs", "mc", "db"},
		Edge{Dependent: "mc", Dependency: "db"},
		Edge{Dependent: "rs", Dependency: "mc"},
	)

	plan, err := Emit(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "mc", "rs"}, plan.Order)
}

func TestEmit_NoDependenciesKeepsInsertionOrder(t *testing.T) {
	plan, err := Emit(buildGraph(t, []string{"web", "api", "db"}), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"web", "api", "db"}, plan.Order)
}

func TestEmit_TieBreakBySmallestInsertionIndex(t *testing.T) {
	// c becomes ready only after a; b is ready from the start but has a
	// larger index than a, and a smaller one than c.
	g := buildGraph(t, []string{"c", "a", "b", "d"},
		Edge{Dependent: "c", Dependency: "a"},
		Edge{Dependent: "d", Dependency: "b"},
	)

	plan, err := Emit(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b", "d"}, plan.Order)
}

func TestEmit_Diamond(t *testing.T) {
	g := buildGraph(t, []string{"web", "cache", "api", "db"},
		Edge{Dependent: "web", Dependency: "api"},
		Edge{Dependent: "web", Dependency: "cache"},
		Edge{Dependent: "api", Dependency: "db"},
		Edge{Dependent: "cache", Dependency: "db"},
	)

	plan, err := Emit(g, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "cache", "api", "web"}, plan.Order)

	for _, e := range g.Edges() {
		assert.Less(t, plan.Position(e.Dependency), plan.Position(e.Dependent), "%s before %s", e.Dependency, e.Dependent)
	}
}

func TestEmit_AttachesWarningsVerbatim(t *testing.T) {
	warnings := []Warning{
		{Kind: WarningUnboundTarget, Message: "first", Units: []string{"mc"}},
		{Kind: WarningUnboundTarget, Message: "first", Units: []string{"mc"}},
		{Kind: WarningConflictingPort, Message: "second"},
	}

	plan, err := Emit(buildGraph(t, []string{"mc"}), warnings)
	require.NoError(t, err)
	assert.Equal(t, warnings, plan.Warnings)
}

func TestEmit_Deterministic(t *testing.T) {
	emit := func() []string {
		g := buildGraph(t, []string{"e", "d", "c", "b", "a"},
			Edge{Dependent: "a", Dependency: "c"},
			Edge{Dependent: "b", Dependency: "c"},
			Edge{Dependent: "e", Dependency: "d"},
		)
		plan, err := Emit(g, nil)
		require.NoError(t, err)
		return plan.Order
	}

	first := emit()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, emit())
	}
	assert.Equal(t, []string{"d", "e", "c", "b", "a"}, first)
}

func TestEmit_CycleInUnbuiltGraph(t *testing.T) {
	// Emit guards against graphs assembled without Build.
	reg := registryOf(t, "a", "b")
	g := &Graph{
		reg:        reg,
		edges:      []Edge{{"a", "b"}, {"b", "a"}},
		deps:       map[string][]string{"a": {"b"}, "b": {"a"}},
		dependents: map[string][]string{"a": {"b"}, "b": {"a"}},
	}

	_, err := Emit(g, nil)
	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b", "a"}, cycle.Cycle)
}
