package directory

import (
	"context"
	"strings"
	"sync"

	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded directory store. Insertion order is preserved
// so role lookups are deterministic.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*User
	ordered []id.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[id.UserID]*User)}
}

func (s *InMemory) Create(_ context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[user.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existingID := range s.ordered {
		if strings.EqualFold(s.byID[existingID].Email, user.Email) {
			return sentinel.ErrConflict
		}
	}
	stored := *user
	s.byID[user.ID] = &stored
	s.ordered = append(s.ordered, user.ID)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, userID := range s.ordered {
		if strings.EqualFold(s.byID[userID].Email, email) {
			clone := *s.byID[userID]
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ManagerOf resolves the direct manager of a user. Returns ErrNotFound when
// the user is unknown or has no manager on record.
func (s *InMemory) ManagerOf(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[userID]
	if !ok || user.ManagerID == nil {
		return nil, sentinel.ErrNotFound
	}
	manager, ok := s.byID[*user.ManagerID]
	if !ok {
		// Dangling manager reference: treat as absent.
		return nil, sentinel.ErrNotFound
	}
	clone := *manager
	return &clone, nil
}

func (s *InMemory) ListByCompany(_ context.Context, companyID id.CompanyID) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*User
	for _, userID := range s.ordered {
		if s.byID[userID].CompanyID == companyID {
			clone := *s.byID[userID]
			users = append(users, &clone)
		}
	}
	return users, nil
}

func (s *InMemory) ListByRole(_ context.Context, companyID id.CompanyID, role Role) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*User
	for _, userID := range s.ordered {
		user := s.byID[userID]
		if user.CompanyID == companyID && user.Role == role {
			clone := *user
			users = append(users, &clone)
		}
	}
	return users, nil
}

func (s *InMemory) ListDirectReports(_ context.Context, managerID id.UserID) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*User
	for _, userID := range s.ordered {
		user := s.byID[userID]
		if user.ManagerID != nil && *user.ManagerID == managerID {
			clone := *user
			users = append(users, &clone)
		}
	}
	return users, nil
}
