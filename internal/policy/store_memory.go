package policy

import (
	"context"
	"sync"

	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded policy store. Insertion order is preserved for
// listing.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.PolicyID]*ApprovalPolicy
	ordered []id.PolicyID
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.PolicyID]*ApprovalPolicy)}
}

func (s *InMemory) Create(_ context.Context, pol *ApprovalPolicy) error {
	if err := pol.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[pol.ID]; exists {
		return sentinel.ErrConflict
	}
	// Last writer wins: the new policy supersedes any active predecessor.
	for _, policyID := range s.ordered {
		existing := s.byID[policyID]
		if existing.CompanyID == pol.CompanyID && existing.Active {
			existing.Active = false
		}
	}
	stored := clonePolicy(pol)
	stored.Active = true
	s.byID[pol.ID] = stored
	s.ordered = append(s.ordered, pol.ID)
	return nil
}

func (s *InMemory) ActiveFor(_ context.Context, companyID id.CompanyID) (*ApprovalPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, policyID := range s.ordered {
		pol := s.byID[policyID]
		if pol.CompanyID == companyID && pol.Active {
			return clonePolicy(pol), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*ApprovalPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var policies []*ApprovalPolicy
	for _, policyID := range s.ordered {
		if s.byID[policyID].CompanyID == companyID {
			policies = append(policies, clonePolicy(s.byID[policyID]))
		}
	}
	return policies, nil
}

func clonePolicy(pol *ApprovalPolicy) *ApprovalPolicy {
	clone := *pol
	clone.Steps = append([]PolicyStep(nil), pol.Steps...)
	return &clone
}
