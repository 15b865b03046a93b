// Package handler exposes the expense approval engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"expensio/internal/directory"
	"expensio/internal/expense"
	expenseservice "expensio/internal/expense/service"
	"expensio/internal/platform/middleware"
	"expensio/internal/transport/http/shared"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
	"expensio/pkg/requestcontext"
)

// Service defines the expense operations the handler needs.
type Service interface {
	Submit(ctx context.Context, in expenseservice.SubmitInput) (*expense.Expense, error)
	Act(ctx context.Context, expenseID id.ExpenseID, approverID id.UserID, decision expense.Decision, comment string) (*expense.Expense, error)
	Override(ctx context.Context, expenseID id.ExpenseID, actorID id.UserID, forced expense.Status, comment string) (*expense.Expense, error)
	ListMine(ctx context.Context, employeeID id.UserID) ([]*expense.Expense, error)
	ListPendingFor(ctx context.Context, approverID id.UserID) ([]*expense.Expense, error)
	ListVisible(ctx context.Context, role directory.Role, userID id.UserID, companyID id.CompanyID) ([]*expense.Expense, error)
	Get(ctx context.Context, expenseID id.ExpenseID) (*expense.Expense, error)
}

// Handler handles expense endpoints.
type Handler struct {
	logger    *slog.Logger
	expenses  Service
	validator middleware.JWTValidator
}

func New(expenses Service, validator middleware.JWTValidator, logger *slog.Logger) *Handler {
	return &Handler{
		logger:    logger,
		expenses:  expenses,
		validator: validator,
	}
}

// Register mounts the expense routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/expenses", func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.validator, h.logger))
		r.Post("/", h.handleSubmit)
		r.Get("/", h.handleListVisible)
		r.Get("/mine", h.handleListMine)
		r.Get("/pending", h.handleListPending)
		r.Get("/{expenseID}", h.handleGet)
		r.Post("/{expenseID}/act", h.handleAct)
		r.With(middleware.RequireRole(string(directory.RoleAdmin))).
			Post("/{expenseID}/override", h.handleOverride)
	})
}

type submitRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	date := requestcontext.Now(ctx)
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	exp, err := h.expenses.Submit(ctx, expenseservice.SubmitInput{
		EmployeeID:  requestcontext.UserID(ctx),
		CompanyID:   requestcontext.CompanyID(ctx),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Category:    req.Category,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "expense submission failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, exp)
}

type actRequest struct {
	Decision string `json:"decision"`
	Comment  string `json:"comment"`
}

func (h *Handler) handleAct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expenseID, err := id.ParseExpenseID(chi.URLParam(r, "expenseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req actRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	decision, err := expense.ParseDecision(req.Decision)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	exp, err := h.expenses.Act(ctx, expenseID, requestcontext.UserID(ctx), decision, req.Comment)
	if err != nil {
		h.logger.WarnContext(ctx, "expense decision failed",
			"error", err,
			"expense_id", expenseID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, exp)
}

type overrideRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expenseID, err := id.ParseExpenseID(chi.URLParam(r, "expenseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	forced, err := expense.ParseStatus(req.Status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	exp, err := h.expenses.Override(ctx, expenseID, requestcontext.UserID(ctx), forced, req.Comment)
	if err != nil {
		h.logger.WarnContext(ctx, "expense override failed",
			"error", err,
			"expense_id", expenseID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, exp)
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expenses, err := h.expenses.ListMine(ctx, requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, emptyAsList(expenses))
}

func (h *Handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expenses, err := h.expenses.ListPendingFor(ctx, requestcontext.UserID(ctx))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, emptyAsList(expenses))
}

func (h *Handler) handleListVisible(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expenses, err := h.expenses.ListVisible(ctx,
		directory.Role(requestcontext.Role(ctx)),
		requestcontext.UserID(ctx),
		requestcontext.CompanyID(ctx),
	)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, emptyAsList(expenses))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expenseID, err := id.ParseExpenseID(chi.URLParam(r, "expenseID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	exp, err := h.expenses.Get(ctx, expenseID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	// Cross-company reads are indistinguishable from absent expenses.
	if exp.CompanyID != requestcontext.CompanyID(ctx) {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "expense not found"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, exp)
}

// emptyAsList keeps empty results as [] rather than null in JSON.
func emptyAsList(expenses []*expense.Expense) []*expense.Expense {
	if expenses == nil {
		return []*expense.Expense{}
	}
	return expenses
}
