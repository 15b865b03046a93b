package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensio/internal/company"
	"expensio/internal/currency"
	"expensio/internal/directory"
	"expensio/internal/expense"
	expenseservice "expensio/internal/expense/service"
	"expensio/internal/identity/token"
	"expensio/internal/platform/logger"
	"expensio/internal/policy"
	id "expensio/pkg/domain"
)

type env struct {
	router   chi.Router
	tokens   *token.Service
	expenses *expense.InMemory

	admin    *directory.User
	manager  *directory.User
	employee *directory.User
}

func newEnv(t *testing.T) *env {
	t.Helper()

	users := directory.NewInMemory()
	companies := company.NewInMemory()
	policies := policy.NewInMemory()
	expenses := expense.NewInMemory()
	ctx := t.Context()

	comp := &company.Company{ID: id.NewCompanyID(), Name: "Acme", Currency: "USD", CreatedAt: time.Now()}
	require.NoError(t, companies.Create(ctx, comp))

	e := &env{
		tokens:   token.NewService("handler-test-key", time.Hour),
		expenses: expenses,
	}
	addUser := func(name string, role directory.Role, managerID *id.UserID, isApprover bool) *directory.User {
		user := &directory.User{
			ID:         id.NewUserID(),
			CompanyID:  comp.ID,
			Name:       name,
			Email:      name + "@example.com",
			Role:       role,
			ManagerID:  managerID,
			IsApprover: isApprover,
			CreatedAt:  time.Now(),
		}
		require.NoError(t, users.Create(ctx, user))
		return user
	}
	e.admin = addUser("admin", directory.RoleAdmin, nil, true)
	e.manager = addUser("manager", directory.RoleManager, nil, true)
	e.employee = addUser("employee", directory.RoleEmployee, &e.manager.ID, false)

	require.NoError(t, policies.Create(ctx, &policy.ApprovalPolicy{
		ID:        id.NewPolicyID(),
		CompanyID: comp.ID,
		Mode:      policy.ModeSequential,
		Steps:     []policy.PolicyStep{{Kind: policy.StepManager, Order: 1}},
		Active:    true,
		CreatedAt: time.Now(),
	}))

	service := expenseservice.New(expenses, users, companies, policies,
		currency.NewConverter(currency.NewStaticSource(currency.DefaultRates())))

	log := logger.New()
	e.router = chi.NewRouter()
	New(service, token.NewMiddlewareAdapter(e.tokens), log).Register(e.router)
	return e
}

func (e *env) do(t *testing.T, method, path string, as *directory.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != nil {
		signed, err := e.tokens.Generate(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+signed)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeExpense(t *testing.T, rec *httptest.ResponseRecorder) *expense.Expense {
	t.Helper()
	var exp expense.Expense
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
	return &exp
}

func TestExpenseRoutes(t *testing.T) {
	submitBody := map[string]any{
		"amount":      100,
		"currency":    "EUR",
		"category":    "travel",
		"description": "client visit",
		"date":        "2026-08-20",
	}

	t.Run("rejects missing bearer token", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(t, http.MethodPost, "/api/expenses", nil, submitBody)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("submit normalizes and routes to the manager", func(t *testing.T) {
		e := newEnv(t)
		rec := e.do(t, http.MethodPost, "/api/expenses", e.employee, submitBody)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		exp := decodeExpense(t, rec)
		assert.Equal(t, expense.StatusInReview, exp.Status)
		assert.Equal(t, 118.00, exp.NormalizedAmount)
		require.Len(t, exp.Steps, 1)
		assert.Equal(t, e.manager.ID, exp.Steps[0].ApproverID)
	})

	t.Run("manager approves their pending step", func(t *testing.T) {
		e := newEnv(t)
		created := decodeExpense(t, e.do(t, http.MethodPost, "/api/expenses", e.employee, submitBody))

		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/api/expenses/%s/act", created.ID), e.manager,
			map[string]string{"decision": "approve", "comment": "ok"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, expense.StatusApproved, decodeExpense(t, rec).Status)
	})

	t.Run("out-of-turn act is unauthorized", func(t *testing.T) {
		e := newEnv(t)
		created := decodeExpense(t, e.do(t, http.MethodPost, "/api/expenses", e.employee, submitBody))

		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/api/expenses/%s/act", created.ID), e.admin,
			map[string]string{"decision": "approve"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("override is admin-only", func(t *testing.T) {
		e := newEnv(t)
		created := decodeExpense(t, e.do(t, http.MethodPost, "/api/expenses", e.employee, submitBody))
		overrideBody := map[string]string{"status": "rejected", "comment": "fraud"}

		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/api/expenses/%s/override", created.ID), e.manager, overrideBody)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = e.do(t, http.MethodPost,
			fmt.Sprintf("/api/expenses/%s/override", created.ID), e.admin, overrideBody)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, expense.StatusRejected, decodeExpense(t, rec).Status)
	})

	t.Run("listings scope to the caller", func(t *testing.T) {
		e := newEnv(t)
		created := decodeExpense(t, e.do(t, http.MethodPost, "/api/expenses", e.employee, submitBody))

		rec := e.do(t, http.MethodGet, "/api/expenses/mine", e.employee, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var mine []*expense.Expense
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
		require.Len(t, mine, 1)
		assert.Equal(t, created.ID, mine[0].ID)

		rec = e.do(t, http.MethodGet, "/api/expenses/pending", e.manager, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var pending []*expense.Expense
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
		require.Len(t, pending, 1)

		rec = e.do(t, http.MethodGet, "/api/expenses/pending", e.admin, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("invalid decision is a bad request", func(t *testing.T) {
		e := newEnv(t)
		created := decodeExpense(t, e.do(t, http.MethodPost, "/api/expenses", e.employee, submitBody))

		rec := e.do(t, http.MethodPost,
			fmt.Sprintf("/api/expenses/%s/act", created.ID), e.manager,
			map[string]string{"decision": "maybe"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
