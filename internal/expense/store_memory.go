package expense

import (
	"context"
	"sync"

	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded expense store. The store mutex doubles as the
// per-expense serialization boundary for Execute.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.ExpenseID]*Expense
	ordered []id.ExpenseID
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.ExpenseID]*Expense)}
}

func (s *InMemory) Create(_ context.Context, exp *Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[exp.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[exp.ID] = exp.Clone()
	s.ordered = append(s.ordered, exp.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, expenseID id.ExpenseID) (*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.byID[expenseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return exp.Clone(), nil
}

// Execute runs validate then mutate against the stored aggregate while
// holding the write lock, so decisions against the same expense cannot
// interleave. A validation error leaves the aggregate untouched.
func (s *InMemory) Execute(_ context.Context, expenseID id.ExpenseID,
	validate func(*Expense) error, mutate func(*Expense)) (*Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.byID[expenseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(exp); err != nil {
		return nil, err
	}
	mutate(exp)
	return exp.Clone(), nil
}

func (s *InMemory) ListByEmployee(_ context.Context, employeeID id.UserID) ([]*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(exp *Expense) bool { return exp.EmployeeID == employeeID }), nil
}

func (s *InMemory) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(exp *Expense) bool { return exp.CompanyID == companyID }), nil
}

func (s *InMemory) ListByApprover(_ context.Context, approverID id.UserID) ([]*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(exp *Expense) bool {
		for i := range exp.Steps {
			if exp.Steps[i].ApproverID == approverID {
				return true
			}
		}
		return false
	}), nil
}

func (s *InMemory) ListPendingFor(_ context.Context, approverID id.UserID) ([]*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(exp *Expense) bool {
		step := exp.PendingStep()
		return step != nil && step.ApproverID == approverID
	}), nil
}

// filter assumes the caller holds at least a read lock.
func (s *InMemory) filter(keep func(*Expense) bool) []*Expense {
	var expenses []*Expense
	for _, expenseID := range s.ordered {
		if keep(s.byID[expenseID]) {
			expenses = append(expenses, s.byID[expenseID].Clone())
		}
	}
	return expenses
}
