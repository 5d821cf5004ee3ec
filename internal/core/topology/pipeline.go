package topology

import "fmt"

// =============================================================================
// Validation Pipeline
// =============================================================================

// Stage is a step of a validation run.
type Stage string

const (
	StageEmpty             Stage = "empty"
	StageUnitsRegistered   Stage = "units_registered"
	StageEdgesDeclared     Stage = "edges_declared"
	StageGraphBuilt        Stage = "graph_built"
	StageBindingsValidated Stage = "bindings_validated"
	StagePlanEmitted       Stage = "plan_emitted"
)

// Result is the outcome of a run.
type Result struct {
	Plan    *Plan
	Graph   *Graph
	Targets []Target
	Stage   Stage
}

// Run validates in and emits a plan. The stages run in order
// (units registered, edges declared, graph built, bindings validated, plan
// emitted) and the first error aborts the run and is returned as produced by
// the failing component. All state is local to the call.
func Run(in Input, opts ...RegistryOption) (*Plan, error) {
	res, err := RunWithGraph(in, opts...)
	if err != nil {
		return nil, err
	}
	return res.Plan, nil
}

// RunWithGraph is Run, also returning the validated graph. The result is
// never nil: when the run fails, Stage is the last stage that completed.
func RunWithGraph(in Input, opts ...RegistryOption) (*Result, error) {
	res := &Result{Targets: in.Targets, Stage: StageEmpty}

	reg := NewRegistry(opts...)
	for i, u := range in.Units {
		if err := ValidateUnit(i, u); err != nil {
			return res, err
		}
		if err := reg.Register(u); err != nil {
			return res, err
		}
	}
	for i, t := range in.Targets {
		if err := ValidateTarget(i, t); err != nil {
			return res, err
		}
	}
	res.Stage = StageUnitsRegistered

	builder := NewGraphBuilder(reg)
	for i, e := range in.Edges {
		if e.Dependent == "" || e.Dependency == "" {
			return res, NewMalformedInputError(fmt.Sprintf("edges[%d]", i), "dependent and dependency are required")
		}
		if err := builder.AddEdge(e.Dependent, e.Dependency); err != nil {
			return res, err
		}
	}
	res.Stage = StageEdgesDeclared

	g, err := builder.Build()
	if err != nil {
		return res, err
	}
	res.Graph = g
	res.Stage = StageGraphBuilt

	warnings := ValidateBindings(reg.All(), in.Targets)
	warnings = append(warnings, Advise(g)...)
	res.Stage = StageBindingsValidated

	plan, err := Emit(g, warnings)
	if err != nil {
		return res, err
	}
	res.Plan = plan
	res.Stage = StagePlanEmitted

	return res, nil
}
