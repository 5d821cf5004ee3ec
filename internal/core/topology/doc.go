// Package topology validates infrastructure topologies and plans their rollout.
//
// This package is part of the functional core: every function is pure and
// every run owns its own state, so independent runs may proceed in parallel.
//
// # Components
//
//   - Registry: unique, immutable compute units in insertion order
//   - GraphBuilder: depends-on edges, rejected when unknown or self-referencing,
//     checked for cycles by Build
//   - ValidateBindings: non-fatal warnings about service names, load-balancer
//     targets and port bindings
//   - Advise: non-fatal warnings about sizing, env references and secrets
//   - Emit: deterministic dependency-respecting order (Kahn's algorithm)
//
// # Usage
//
//	plan, err := topology.Run(input, topology.WithVariables(vars))
//	if err != nil {
//	    var cycle *topology.CycleError
//	    if errors.As(err, &cycle) {
//	        // cycle.Cycle == [a b a]
//	    }
//	}
package topology
