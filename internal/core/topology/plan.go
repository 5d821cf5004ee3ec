package topology

import (
	"slices"
)

// =============================================================================
// Plan Emission
// =============================================================================

// Emit orders the units of g so that every dependency precedes its
// dependents, using Kahn's algorithm:
//  1. Count the dependencies (in-degree) of every unit
//  2. Start with the units that have none
//  3. Repeatedly take the ready unit with the smallest insertion index and
//     release its dependents
//
// Taking the smallest insertion index makes the order deterministic. The
// warnings are attached to the plan unchanged. If units remain once no unit
// is ready, the graph has a cycle and *CycleError is returned.
//
// Example:
//
//	// Units: db, mc, rs with mc -> db and rs -> mc
//	plan, _ := Emit(g, nil)
//	// plan.Order: [db mc rs]
func Emit(g *Graph, warnings []Warning) (*Plan, error) {
	names := g.reg.Names()

	inDegree := make([]int, len(names))
	var ready []int
	for i, name := range names {
		inDegree[i] = len(g.deps[name])
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(names))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, names[next])

		for _, dependent := range g.dependents[names[next]] {
			idx, _ := g.reg.Index(dependent)
			inDegree[idx]--
			if inDegree[idx] == 0 {
				pos, _ := slices.BinarySearch(ready, idx)
				ready = slices.Insert(ready, pos, idx)
			}
		}
	}

	if len(order) < len(names) {
		if cycle := g.findCycle(); cycle != nil {
			return nil, &CycleError{Cycle: cycle}
		}
		var rest []string
		for i, name := range names {
			if inDegree[i] > 0 {
				rest = append(rest, name)
			}
		}
		return nil, &CycleError{Cycle: rest}
	}

	if warnings == nil {
		warnings = []Warning{}
	}
	return &Plan{Order: order, Warnings: slices.Clone(warnings)}, nil
}
