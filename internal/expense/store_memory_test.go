package expense

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"expensio/internal/policy"
	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

type ExpenseStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *ExpenseStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestExpenseStoreSuite(t *testing.T) {
	suite.Run(t, new(ExpenseStoreSuite))
}

func (s *ExpenseStoreSuite) seed(approvers ...id.UserID) *Expense {
	exp := newExpense(policy.ModeSequential, 0, approvers...)
	s.Require().NoError(s.store.Create(s.ctx, exp))
	return exp
}

func (s *ExpenseStoreSuite) TestCreateAndFind() {
	s.Run("stores and retrieves an aggregate", func() {
		exp := s.seed(id.NewUserID())

		found, err := s.store.FindByID(s.ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(exp.ID, found.ID)
		s.Equal(StatusInReview, found.Status)
	})

	s.Run("rejects duplicate ID", func() {
		exp := s.seed(id.NewUserID())
		s.Require().ErrorIs(s.store.Create(s.ctx, exp), sentinel.ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.NewExpenseID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned aggregate is a copy", func() {
		exp := s.seed(id.NewUserID())

		found, err := s.store.FindByID(s.ctx, exp.ID)
		s.Require().NoError(err)
		found.Steps[0].Status = StepApproved

		again, err := s.store.FindByID(s.ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(StepPending, again.Steps[0].Status)
	})
}

func (s *ExpenseStoreSuite) TestExecute() {
	now := time.Now()
	approver := id.NewUserID()

	s.Run("applies mutation and returns the updated aggregate", func() {
		exp := s.seed(approver)

		updated, err := s.store.Execute(s.ctx, exp.ID,
			func(e *Expense) error { return e.CanAct(approver) },
			func(e *Expense) { e.ApplyAct(approver, DecisionApprove, "", now) },
		)
		s.Require().NoError(err)
		s.Equal(StatusApproved, updated.Status)

		found, err := s.store.FindByID(s.ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(StatusApproved, found.Status)
	})

	s.Run("validation error leaves the aggregate untouched", func() {
		exp := s.seed(approver)
		stranger := id.NewUserID()

		_, err := s.store.Execute(s.ctx, exp.ID,
			func(e *Expense) error { return e.CanAct(stranger) },
			func(e *Expense) { e.ApplyAct(stranger, DecisionApprove, "", now) },
		)
		s.Require().Error(err)

		found, findErr := s.store.FindByID(s.ctx, exp.ID)
		s.Require().NoError(findErr)
		s.Equal(StatusInReview, found.Status)
		s.Equal(StepPending, found.Steps[0].Status)
	})

	s.Run("unknown expense yields ErrNotFound", func() {
		_, err := s.store.Execute(s.ctx, id.NewExpenseID(),
			func(*Expense) error { return nil },
			func(*Expense) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("concurrent decisions on one step admit exactly one winner", func() {
		exp := s.seed(approver)

		const attempts = 16
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.store.Execute(s.ctx, exp.ID,
					func(e *Expense) error { return e.CanAct(approver) },
					func(e *Expense) { e.ApplyAct(approver, DecisionApprove, "", now) },
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

		found, err := s.store.FindByID(s.ctx, exp.ID)
		s.Require().NoError(err)
		s.Equal(StatusApproved, found.Status)
	})
}

func (s *ExpenseStoreSuite) TestListings() {
	first := id.NewUserID()
	second := id.NewUserID()

	expA := s.seed(first, second)
	expB := s.seed(second)
	expC := newExpense(policy.ModeSequential, 0, first)
	expC.EmployeeID = expA.EmployeeID
	s.Require().NoError(s.store.Create(s.ctx, expC))

	s.Run("by employee preserves insertion order", func() {
		mine, err := s.store.ListByEmployee(s.ctx, expA.EmployeeID)
		s.Require().NoError(err)
		s.Require().Len(mine, 2)
		s.Equal(expA.ID, mine[0].ID)
		s.Equal(expC.ID, mine[1].ID)
	})

	s.Run("by approver matches any step", func() {
		got, err := s.store.ListByApprover(s.ctx, second)
		s.Require().NoError(err)
		s.Require().Len(got, 2)
		s.Equal(expA.ID, got[0].ID)
		s.Equal(expB.ID, got[1].ID)
	})

	s.Run("pending-for matches only the pending step", func() {
		got, err := s.store.ListPendingFor(s.ctx, second)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(expB.ID, got[0].ID)
	})

	s.Run("by company scopes to the aggregate's company", func() {
		got, err := s.store.ListByCompany(s.ctx, expB.CompanyID)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(expB.ID, got[0].ID)
	})
}
