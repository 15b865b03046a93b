// Package handler exposes signup, login, and user management over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"expensio/internal/directory"
	identityservice "expensio/internal/identity/service"
	"expensio/internal/platform/middleware"
	"expensio/internal/transport/http/shared"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
	"expensio/pkg/requestcontext"
)

// Service defines the identity operations the handler needs.
type Service interface {
	Signup(ctx context.Context, in identityservice.SignupInput) (*identityservice.AuthResult, error)
	Login(ctx context.Context, email, password string) (*identityservice.AuthResult, error)
	CreateUser(ctx context.Context, in identityservice.CreateUserInput) (*directory.User, error)
	ListUsers(ctx context.Context, companyID id.CompanyID) ([]identityservice.UserView, error)
}

// Handler handles authentication and user-directory endpoints.
type Handler struct {
	logger    *slog.Logger
	identity  Service
	validator middleware.JWTValidator
}

func New(identity Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		identity:  identity,
		validator: validator,
	}
}

// Register mounts the identity routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", h.handleSignup)
		r.Post("/login", h.handleLogin)
	})
	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Get("/", h.handleListUsers)
		r.With(middleware.RequireRole(string(directory.RoleAdmin))).Post("/", h.handleCreateUser)
	})
}

type signupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
	Currency    string `json:"currency"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  *directory.User `json:"user"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	result, err := h.identity.Signup(ctx, identityservice.SignupInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		CompanyName: req.CompanyName,
		Country:     req.Country,
		Currency:    req.Currency,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "signup failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, authResponse{Token: result.Token, User: result.User})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	result, err := h.identity.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"email", req.Email,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

type createUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	ManagerID  string `json:"manager_id"`
	IsApprover bool   `json:"is_approver"`
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	role, err := directory.ParseRole(req.Role)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var managerID *id.UserID
	if req.ManagerID != "" {
		parsed, err := id.ParseUserID(req.ManagerID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		managerID = &parsed
	}

	user, err := h.identity.CreateUser(ctx, identityservice.CreateUserInput{
		CompanyID:  requestcontext.CompanyID(ctx),
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		ManagerID:  managerID,
		IsApprover: req.IsApprover,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := h.identity.ListUsers(ctx, requestcontext.CompanyID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, users)
}
