package topology

import (
	"slices"
)

// =============================================================================
// Dependency Graph Builder
// =============================================================================

// GraphBuilder accumulates depends-on edges over a registry.
type GraphBuilder struct {
	reg   *Registry
	edges []Edge
	seen  map[Edge]bool
}

// NewGraphBuilder creates a builder over reg. Units registered after the
// builder is created are visible to it.
func NewGraphBuilder(reg *Registry) *GraphBuilder {
	return &GraphBuilder{reg: reg, seen: make(map[Edge]bool)}
}

// AddEdge declares that dependent must start after dependency.
// A repeated identical edge is recorded once.
func (b *GraphBuilder) AddEdge(dependent, dependency string) error {
	edge := Edge{Dependent: dependent, Dependency: dependency}

	if !b.reg.Has(dependent) {
		return &UnknownUnitError{Name: dependent, Edge: edge}
	}
	if !b.reg.Has(dependency) {
		return &UnknownUnitError{Name: dependency, Edge: edge}
	}
	if dependent == dependency {
		return &SelfDependencyError{Name: dependent}
	}

	if b.seen[edge] {
		return nil
	}
	b.seen[edge] = true
	b.edges = append(b.edges, edge)
	return nil
}

// Build checks the declared edges for cycles and returns the graph.
//
// The search is a depth-first traversal that starts from units in insertion
// order and visits dependencies in insertion order, so the reported cycle is
// deterministic for a given input.
func (b *GraphBuilder) Build() (*Graph, error) {
	g := &Graph{
		reg:        b.reg,
		edges:      slices.Clone(b.edges),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
	for _, e := range g.edges {
		g.deps[e.Dependent] = append(g.deps[e.Dependent], e.Dependency)
		g.dependents[e.Dependency] = append(g.dependents[e.Dependency], e.Dependent)
	}
	byIndex := func(a, c string) int {
		ia, _ := b.reg.Index(a)
		ic, _ := b.reg.Index(c)
		return ia - ic
	}
	for name := range g.deps {
		slices.SortFunc(g.deps[name], byIndex)
	}
	for name := range g.dependents {
		slices.SortFunc(g.dependents[name], byIndex)
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}
	return g, nil
}

// Graph is a validated, acyclic dependency graph.
type Graph struct {
	reg        *Registry
	edges      []Edge
	deps       map[string][]string
	dependents map[string][]string
}

// findCycle returns the first cycle found as a closed path, or nil.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(node string) []string
	visit = func(node string) []string {
		visited[node] = true
		onStack[node] = true
		stack = append(stack, node)

		for _, dep := range g.deps[node] {
			if onStack[dep] {
				start := slices.Index(stack, dep)
				cycle := slices.Clone(stack[start:])
				return append(cycle, dep)
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		onStack[node] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, name := range g.reg.Names() {
		if !visited[name] {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Units returns the units in insertion order.
func (g *Graph) Units() []Unit {
	return g.reg.All()
}

// Edges returns the distinct edges in declaration order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// DependenciesOf returns the direct dependencies of name.
func (g *Graph) DependenciesOf(name string) []string {
	return slices.Clone(g.deps[name])
}

// DependentsOf returns the units that directly depend on name.
func (g *Graph) DependentsOf(name string) []string {
	return slices.Clone(g.dependents[name])
}

// DependsTransitively reports whether dependent reaches dependency by
// following depends-on edges.
func (g *Graph) DependsTransitively(dependent, dependency string) bool {
	seen := make(map[string]bool)
	queue := []string{dependent}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, dep := range g.deps[node] {
			if dep == dependency {
				return true
			}
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return false
}
