//go:build integration

package expense_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"expensio/internal/expense"
	"expensio/internal/policy"
	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
	"expensio/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *expense.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = expense.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "expenses"))
}

func (s *PostgresStoreSuite) newExpense(approvers ...id.UserID) *expense.Expense {
	now := time.Now().UTC().Truncate(time.Millisecond)
	exp := &expense.Expense{
		ID:               id.NewExpenseID(),
		EmployeeID:       id.NewUserID(),
		CompanyID:        id.NewCompanyID(),
		Amount:           100,
		Currency:         "EUR",
		NormalizedAmount: 118,
		Category:         "travel",
		Date:             now,
		Status:           expense.StatusSubmitted,
		Mode:             policy.ModeSequential,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	steps := make([]expense.ApprovalStep, len(approvers))
	for i, approverID := range approvers {
		steps[i] = expense.ApprovalStep{ApproverID: approverID, Order: i + 1, Status: expense.StepWaiting}
	}
	if len(steps) > 0 {
		steps[0].Status = expense.StepPending
	}
	exp.Initialize(steps)
	return exp
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	exp := s.newExpense(id.NewUserID(), id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, exp))

	found, err := s.store.FindByID(ctx, exp.ID)
	s.Require().NoError(err)
	s.Equal(exp.ID, found.ID)
	s.Equal(expense.StatusInReview, found.Status)
	s.Require().Len(found.Steps, 2)
	s.Equal(expense.StepPending, found.Steps[0].Status)
	s.Nil(found.Override)

	s.Require().ErrorIs(s.store.Create(ctx, exp), sentinel.ErrConflict)

	_, err = s.store.FindByID(ctx, id.NewExpenseID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecutePersistsMutation() {
	ctx := context.Background()
	approver := id.NewUserID()
	exp := s.newExpense(approver)
	s.Require().NoError(s.store.Create(ctx, exp))

	now := time.Now().UTC()
	updated, err := s.store.Execute(ctx, exp.ID,
		func(e *expense.Expense) error { return e.CanAct(approver) },
		func(e *expense.Expense) { e.ApplyAct(approver, expense.DecisionApprove, "ok", now) },
	)
	s.Require().NoError(err)
	s.Equal(expense.StatusApproved, updated.Status)

	found, err := s.store.FindByID(ctx, exp.ID)
	s.Require().NoError(err)
	s.Equal(expense.StatusApproved, found.Status)
	s.Equal("ok", found.Steps[0].Comment)
}

func (s *PostgresStoreSuite) TestExecuteRollsBackOnValidationError() {
	ctx := context.Background()
	approver := id.NewUserID()
	exp := s.newExpense(approver)
	s.Require().NoError(s.store.Create(ctx, exp))

	_, err := s.store.Execute(ctx, exp.ID,
		func(e *expense.Expense) error { return e.CanAct(id.NewUserID()) },
		func(e *expense.Expense) { e.ApplyAct(approver, expense.DecisionApprove, "", time.Now()) },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(ctx, exp.ID)
	s.Require().NoError(err)
	s.Equal(expense.StatusInReview, found.Status)
	s.Equal(expense.StepPending, found.Steps[0].Status)
}

// TestConcurrentDecisions verifies the FOR UPDATE lock admits exactly one
// winner on a single pending step.
func (s *PostgresStoreSuite) TestConcurrentDecisions() {
	ctx := context.Background()
	approver := id.NewUserID()
	exp := s.newExpense(approver)
	s.Require().NoError(s.store.Create(ctx, exp))

	const goroutines = 20
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.store.Execute(ctx, exp.ID,
				func(e *expense.Expense) error { return e.CanAct(approver) },
				func(e *expense.Expense) { e.ApplyAct(approver, expense.DecisionApprove, "", time.Now()) },
			)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	s.Equal(1, succeeded)
}

func (s *PostgresStoreSuite) TestApproverListings() {
	ctx := context.Background()
	first := id.NewUserID()
	second := id.NewUserID()

	expA := s.newExpense(first, second)
	expB := s.newExpense(second)
	s.Require().NoError(s.store.Create(ctx, expA))
	s.Require().NoError(s.store.Create(ctx, expB))

	byApprover, err := s.store.ListByApprover(ctx, second)
	s.Require().NoError(err)
	s.Len(byApprover, 2)

	pending, err := s.store.ListPendingFor(ctx, second)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(expB.ID, pending[0].ID)

	mine, err := s.store.ListByEmployee(ctx, expA.EmployeeID)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal(expA.ID, mine[0].ID)
}
