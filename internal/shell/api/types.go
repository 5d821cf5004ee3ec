package api

import (
	"time"

	"github.com/artpar/topoplan/internal/core/domain"
	"github.com/artpar/topoplan/internal/core/topology"
)

// =============================================================================
// Request Types
// =============================================================================

// DescribeRequest wraps a topology description for JSON callers. Clients
// may also post the raw YAML/JSON description as the request body.
type DescribeRequest struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description"`
	Compose     bool              `json:"compose,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// PlanResponse is the result of a successful validation.
type PlanResponse struct {
	Name     string             `json:"name,omitempty"`
	Order    []string           `json:"order"`
	Warnings []topology.Warning `json:"warnings"`
}

// SubmissionResponse describes a submitted plan.
type SubmissionResponse struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Status       string             `json:"status"`
	Order        []string           `json:"order"`
	Warnings     []topology.Warning `json:"warnings"`
	Progress     int                `json:"progress"`
	Remaining    []string           `json:"remaining"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	FinishedAt   *time.Time         `json:"finished_at,omitempty"`
}

// ListSubmissionsResponse is the response for listing submissions. Total
// counts every submission matching the status filter, not just this page.
type ListSubmissionsResponse struct {
	Submissions []SubmissionResponse `json:"submissions"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// StatusResponse is the provisioning state of one submission.
type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is the error response format. Cycle is set for cyclic
// topologies.
type ErrorResponse struct {
	Error string   `json:"error"`
	Code  string   `json:"code"`
	Cycle []string `json:"cycle,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func submissionToResponse(s *domain.Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:           s.ID,
		Name:         s.Name,
		Status:       string(s.Status),
		Order:        s.Order,
		Warnings:     s.Warnings,
		Progress:     s.Progress,
		Remaining:    s.Remaining(),
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		StartedAt:    s.StartedAt,
		FinishedAt:   s.FinishedAt,
	}
	if resp.Order == nil {
		resp.Order = []string{}
	}
	if resp.Warnings == nil {
		resp.Warnings = []topology.Warning{}
	}
	if resp.Remaining == nil {
		resp.Remaining = []string{}
	}
	return resp
}
