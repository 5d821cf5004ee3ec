// Package api provides the HTTP surface of the topology planner.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/artpar/topoplan/internal/core/description"
	"github.com/artpar/topoplan/internal/core/domain"
	"github.com/artpar/topoplan/internal/core/render"
	"github.com/artpar/topoplan/internal/core/topology"
	"github.com/artpar/topoplan/internal/shell/provisioning"
	"github.com/artpar/topoplan/internal/shell/store"
)

// maxBodyBytes bounds description uploads.
const maxBodyBytes = 1 << 20

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store     store.Store
	backend   provisioning.Backend
	variables map[string]string
	logger    *slog.Logger
}

// NewHandler creates a new API handler. variables are injected into every
// description before validation; request variables take precedence.
func NewHandler(s store.Store, b provisioning.Backend, variables map[string]string, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if b == nil {
		b = provisioning.NewStoreBackend(s, l)
	}
	return &Handler{
		store:     s,
		backend:   b,
		variables: variables,
		logger:    l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	return r
}

// Mount registers the v1 routes on r behind the given middleware.
func (h *Handler) Mount(r chi.Router, mws ...func(http.Handler) http.Handler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mws...)

		r.Post("/validate", h.handleValidate)
		r.Post("/graph", h.handleGraph)

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", h.handleSubmitPlan)
			r.Get("/", h.handleListPlans)
			r.Get("/{id}", h.handleGetPlan)
			r.Get("/{id}/status", h.handleGetPlanStatus)
			r.Delete("/{id}", h.handleDeletePlan)
		})
	})
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}

	if _, err := h.store.ListSubmissions(r.Context(), store.ListOptions{Limit: 1}); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Planning Handlers
// =============================================================================

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	name, result, ok := h.plan(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, PlanResponse{
		Name:     name,
		Order:    result.Plan.Order,
		Warnings: result.Plan.Warnings,
	})
}

func (h *Handler) handleGraph(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_format")
		return
	}

	_, result, ok := h.plan(w, r)
	if !ok {
		return
	}

	out, err := render.String(result.Graph, result.Targets, render.Options{
		Format:    format,
		Plan:      result.Plan,
		ShowPorts: true,
	})
	if err != nil {
		h.logger.Error("failed to render graph", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to render graph", "internal_error")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out)
}

func (h *Handler) handleSubmitPlan(w http.ResponseWriter, r *http.Request) {
	name, result, ok := h.plan(w, r)
	if !ok {
		return
	}

	handle, err := h.backend.SubmitPlan(r.Context(), name, result.Plan)
	if err != nil {
		h.logger.Error("failed to submit plan", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to submit plan", "internal_error")
		return
	}

	sub, err := h.backend.Submission(r.Context(), handle)
	if err != nil {
		h.logger.Error("failed to load submission", "submission_id", handle, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load submission", "internal_error")
		return
	}

	w.Header().Set("Location", "/api/v1/plans/"+sub.ID)
	h.writeJSON(w, http.StatusAccepted, submissionToResponse(sub))
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	handle := provisioning.Handle(chi.URLParam(r, "id"))

	sub, err := h.backend.Submission(r.Context(), handle)
	if err != nil {
		if errors.Is(err, provisioning.ErrUnknownHandle) {
			h.writeError(w, http.StatusNotFound, "submission not found", "submission_not_found")
			return
		}
		h.logger.Error("failed to get submission", "submission_id", handle, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get submission", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, submissionToResponse(sub))
}

func (h *Handler) handleGetPlanStatus(w http.ResponseWriter, r *http.Request) {
	handle := provisioning.Handle(chi.URLParam(r, "id"))

	state, err := h.backend.QueryStatus(r.Context(), handle)
	if err != nil {
		if errors.Is(err, provisioning.ErrUnknownHandle) {
			h.writeError(w, http.StatusNotFound, "submission not found", "submission_not_found")
			return
		}
		h.logger.Error("failed to query status", "submission_id", handle, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to query status", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{ID: string(handle), Status: string(state)})
}

func (h *Handler) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	handle := provisioning.Handle(chi.URLParam(r, "id"))

	if err := h.backend.Discard(r.Context(), handle); err != nil {
		switch {
		case errors.Is(err, provisioning.ErrUnknownHandle):
			h.writeError(w, http.StatusNotFound, "submission not found", "submission_not_found")
		case errors.Is(err, provisioning.ErrStillActive):
			h.writeError(w, http.StatusConflict, err.Error(), "submission_active")
		default:
			h.logger.Error("failed to discard submission", "submission_id", handle, "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to discard submission", "internal_error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	opts.Status = domain.ProvisioningState(r.URL.Query().Get("status"))
	opts = opts.Normalize()

	subs, err := h.store.ListSubmissions(r.Context(), opts)
	if err != nil {
		if errors.Is(err, store.ErrInvalidStatus) {
			h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_status")
			return
		}
		h.logger.Error("failed to list submissions", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list submissions", "internal_error")
		return
	}

	total, err := h.store.CountSubmissions(r.Context(), opts.Status)
	if err != nil {
		h.logger.Error("failed to count submissions", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list submissions", "internal_error")
		return
	}

	resp := ListSubmissionsResponse{
		Submissions: make([]SubmissionResponse, 0, len(subs)),
		Total:       total,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	for i := range subs {
		resp.Submissions = append(resp.Submissions, submissionToResponse(&subs[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Request Decoding
// =============================================================================

// plan decodes the request description and runs the pipeline. On failure
// the response has already been written.
func (h *Handler) plan(w http.ResponseWriter, r *http.Request) (string, *topology.Result, bool) {
	req, err := h.decodeRequest(w, r)
	if err != nil {
		h.writeTopologyError(w, err)
		return "", nil, false
	}

	doc, err := description.Load([]byte(req.Description), req.Compose)
	if err != nil {
		h.writeTopologyError(w, err)
		return "", nil, false
	}

	vars := maps.Clone(h.variables)
	if vars == nil {
		vars = map[string]string{}
	}
	maps.Copy(vars, req.Variables)

	result, err := topology.RunWithGraph(doc.Input(), topology.WithVariables(vars))
	if err != nil {
		h.logger.Debug("topology rejected", "stage", result.Stage, "error", err)
		h.writeTopologyError(w, err)
		return "", nil, false
	}

	name := req.Name
	if name == "" {
		name = doc.Name
	}
	return name, result, true
}

// decodeRequest accepts a JSON DescribeRequest envelope or a raw YAML/JSON
// description body. Query parameters compose and name apply to raw bodies.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (DescribeRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return DescribeRequest{}, topology.NewMalformedInputError("", fmt.Sprintf("failed to read body: %v", err))
	}

	q := r.URL.Query()
	req := DescribeRequest{
		Name:        q.Get("name"),
		Description: string(body),
		Compose:     q.Get("compose") == "true",
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return req, nil
	}

	var envelope DescribeRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&envelope); err != nil || envelope.Description == "" {
		// Plain JSON description rather than an envelope.
		return req, nil
	}
	if envelope.Name == "" {
		envelope.Name = req.Name
	}
	if !envelope.Compose {
		envelope.Compose = req.Compose
	}
	return envelope, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeTopologyError maps pipeline errors to 422 with the message verbatim.
func (h *Handler) writeTopologyError(w http.ResponseWriter, err error) {
	code := topology.ErrorCode(err)
	if code == "internal_error" {
		h.logger.Error("planning failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error", code)
		return
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var cycleErr *topology.CycleError
	if errors.As(err, &cycleErr) {
		resp.Cycle = cycleErr.Cycle
	}
	h.writeJSON(w, http.StatusUnprocessableEntity, resp)
}
