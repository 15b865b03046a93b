// Package handler exposes approval-policy management over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"expensio/internal/directory"
	"expensio/internal/platform/middleware"
	"expensio/internal/policy"
	policyservice "expensio/internal/policy/service"
	"expensio/internal/transport/http/shared"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
	"expensio/pkg/requestcontext"
)

// Service defines the policy operations the handler needs.
type Service interface {
	Create(ctx context.Context, in policyservice.CreateInput) (*policy.ApprovalPolicy, error)
	List(ctx context.Context, companyID id.CompanyID) ([]*policy.ApprovalPolicy, error)
}

// Handler handles policy endpoints.
type Handler struct {
	logger    *slog.Logger
	policies  Service
	validator middleware.JWTValidator
}

func New(policies Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		policies:  policies,
		validator: validator,
	}
}

// Register mounts the policy routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/policies", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Get("/", h.handleList)
		r.With(middleware.RequireRole(string(directory.RoleAdmin))).Post("/", h.handleCreate)
	})
}

type stepRequest struct {
	Kind       string `json:"kind"`
	Order      int    `json:"order"`
	Role       string `json:"role"`
	ApproverID string `json:"approver_id"`
}

type createPolicyRequest struct {
	Mode      string        `json:"mode"`
	Threshold int           `json:"threshold"`
	Steps     []stepRequest `json:"steps"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	steps := make([]policy.PolicyStep, 0, len(req.Steps))
	for _, raw := range req.Steps {
		step := policy.PolicyStep{
			Kind:  policy.StepKind(raw.Kind),
			Order: raw.Order,
			Role:  directory.Role(raw.Role),
		}
		if raw.ApproverID != "" {
			approverID, err := id.ParseUserID(raw.ApproverID)
			if err != nil {
				shared.WriteError(w, err)
				return
			}
			step.ApproverID = &approverID
		}
		steps = append(steps, step)
	}

	pol, err := h.policies.Create(ctx, policyservice.CreateInput{
		CompanyID: requestcontext.CompanyID(ctx),
		Mode:      policy.Mode(req.Mode),
		Threshold: req.Threshold,
		Steps:     steps,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "policy creation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, pol)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policies, err := h.policies.List(ctx, requestcontext.CompanyID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, policies)
}
