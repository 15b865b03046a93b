// Package memory provides an in-memory audit store for dev mode and tests.
package memory

import (
	"context"
	"sync"

	audit "expensio/pkg/platform/audit"
)

// Store collects events in order of appending.
type Store struct {
	mu     sync.Mutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of everything appended so far.
func (s *Store) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}
