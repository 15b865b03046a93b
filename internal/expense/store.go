package expense

import (
	"context"

	id "expensio/pkg/domain"
)

// Store is the persistence contract for expense aggregates.
//
// Execute is the per-expense serialization boundary: the store holds
// exclusive access to the aggregate (mutex or SELECT ... FOR UPDATE) for the
// whole validate-then-mutate window, so two concurrent decisions can never
// both observe the same step as pending. When validate returns an error the
// aggregate is left exactly as it was.
type Store interface {
	Create(ctx context.Context, exp *Expense) error
	FindByID(ctx context.Context, expenseID id.ExpenseID) (*Expense, error)
	Execute(ctx context.Context, expenseID id.ExpenseID,
		validate func(*Expense) error, mutate func(*Expense)) (*Expense, error)
	ListByEmployee(ctx context.Context, employeeID id.UserID) ([]*Expense, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*Expense, error)
	ListByApprover(ctx context.Context, approverID id.UserID) ([]*Expense, error)
	ListPendingFor(ctx context.Context, approverID id.UserID) ([]*Expense, error)
}
