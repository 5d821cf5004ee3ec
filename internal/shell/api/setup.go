package api

import (
	"log/slog"
	"net/http"

	"github.com/artpar/topoplan/internal/shell/api/middleware"
	"github.com/artpar/topoplan/internal/shell/api/openapi"
	"github.com/artpar/topoplan/internal/shell/provisioning"
	"github.com/artpar/topoplan/internal/shell/store"
)

// =============================================================================
// API Setup
// =============================================================================

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	Store   store.Store
	Backend provisioning.Backend // nil = StoreBackend over Store
	Logger  *slog.Logger

	// Variables are injected into every description.
	Variables map[string]string

	// APIToken, when set, is required on /api/v1 routes.
	APIToken string

	Version string
}

// SetupAPI creates the complete API router.
func SetupAPI(cfg APIConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	h := NewHandler(cfg.Store, cfg.Backend, cfg.Variables, cfg.Logger)
	router := h.Routes()

	authMW := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Token:  cfg.APIToken,
		Logger: cfg.Logger,
	})
	h.Mount(router, authMW.Handler)

	gen := openapi.NewGenerator(
		openapi.WithTitle("Topology Planner API"),
		openapi.WithVersion(cfg.Version),
		openapi.WithDescription("Validates container topologies and emits ordered deployment plans"),
	)
	gen.Register(Operations()...)
	router.Get("/openapi.json", gen.Handler())

	return router
}

// Operations documents the routes served by SetupAPI.
func Operations() []openapi.Operation {
	describeParams := []openapi.Param{
		{Name: "compose", In: "query", Type: "string", Enum: []string{"true", "false"}, Description: "treat the body as a docker-compose file"},
		{Name: "name", In: "query", Type: "string", Description: "topology name"},
	}
	topologyErrors := []openapi.Response{
		{Status: http.StatusUnprocessableEntity, Description: "topology rejected", Model: ErrorResponse{}},
	}

	return []openapi.Operation{
		{
			Method: http.MethodGet, Path: "/health", ID: "health", Summary: "Liveness check", Tag: "Health",
			Responses: []openapi.Response{{Status: http.StatusOK, Model: HealthResponse{}}},
		},
		{
			Method: http.MethodGet, Path: "/ready", ID: "ready", Summary: "Readiness check", Tag: "Health",
			Responses: []openapi.Response{
				{Status: http.StatusOK, Model: ReadyResponse{}},
				{Status: http.StatusServiceUnavailable, Model: ReadyResponse{}},
			},
		},
		{
			Method: http.MethodPost, Path: "/api/v1/validate", ID: "validateTopology",
			Summary: "Validate a topology and return its deployment order", Tag: "Plans",
			Params: describeParams, Request: DescribeRequest{},
			Responses: append([]openapi.Response{{Status: http.StatusOK, Model: PlanResponse{}}}, topologyErrors...),
		},
		{
			Method: http.MethodPost, Path: "/api/v1/graph", ID: "renderTopology",
			Summary: "Render the dependency graph", Tag: "Plans",
			Params: append([]openapi.Param{
				{Name: "format", In: "query", Type: "string", Enum: []string{"dot", "mermaid"}},
			}, describeParams...),
			Request: DescribeRequest{},
			Responses: append([]openapi.Response{
				{Status: http.StatusOK, ContentType: "text/plain"},
				{Status: http.StatusBadRequest, Model: ErrorResponse{}},
			}, topologyErrors...),
		},
		{
			Method: http.MethodPost, Path: "/api/v1/plans", ID: "submitPlan",
			Summary: "Validate a topology and submit its plan for provisioning", Tag: "Plans",
			Params: describeParams, Request: DescribeRequest{},
			Responses: append([]openapi.Response{{Status: http.StatusAccepted, Model: SubmissionResponse{}}}, topologyErrors...),
		},
		{
			Method: http.MethodGet, Path: "/api/v1/plans", ID: "listPlans", Summary: "List submitted plans", Tag: "Plans",
			Params: []openapi.Param{
				{Name: "limit", In: "query", Type: "integer"},
				{Name: "offset", In: "query", Type: "integer"},
				{Name: "status", In: "query", Type: "string", Enum: []string{"pending", "running", "failed", "succeeded"}},
			},
			Responses: []openapi.Response{
				{Status: http.StatusOK, Model: ListSubmissionsResponse{}},
				{Status: http.StatusBadRequest, Model: ErrorResponse{}},
			},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/plans/{id}", ID: "getPlan", Summary: "Get a submitted plan", Tag: "Plans",
			Params: []openapi.Param{{Name: "id", In: "path", Type: "string"}},
			Responses: []openapi.Response{
				{Status: http.StatusOK, Model: SubmissionResponse{}},
				{Status: http.StatusNotFound, Model: ErrorResponse{}},
			},
		},
		{
			Method: http.MethodGet, Path: "/api/v1/plans/{id}/status", ID: "getPlanStatus",
			Summary: "Get the provisioning state of a plan", Tag: "Plans",
			Params: []openapi.Param{{Name: "id", In: "path", Type: "string"}},
			Responses: []openapi.Response{
				{Status: http.StatusOK, Model: StatusResponse{}},
				{Status: http.StatusNotFound, Model: ErrorResponse{}},
			},
		},
		{
			Method: http.MethodDelete, Path: "/api/v1/plans/{id}", ID: "discardPlan",
			Summary: "Discard a failed or succeeded plan", Tag: "Plans",
			Params: []openapi.Param{{Name: "id", In: "path", Type: "string"}},
			Responses: []openapi.Response{
				{Status: http.StatusNoContent},
				{Status: http.StatusNotFound, Model: ErrorResponse{}},
				{Status: http.StatusConflict, Model: ErrorResponse{}},
			},
		},
	}
}
