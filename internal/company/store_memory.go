package company

import (
	"context"
	"sync"

	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded company store.
type InMemory struct {
	mu        sync.RWMutex
	companies map[id.CompanyID]*Company
}

func NewInMemory() *InMemory {
	return &InMemory{companies: make(map[id.CompanyID]*Company)}
}

func (s *InMemory) Create(_ context.Context, company *Company) error {
	if err := company.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.companies[company.ID]; exists {
		return sentinel.ErrConflict
	}
	stored := *company
	s.companies[company.ID] = &stored
	return nil
}

func (s *InMemory) FindByID(_ context.Context, companyID id.CompanyID) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	company, ok := s.companies[companyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *company
	return &clone, nil
}
