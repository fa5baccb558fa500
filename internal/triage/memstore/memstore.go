// Package memstore provides an in-memory triage.Store for development and
// tests.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/railtriage/internal/triage"
)

// Store keeps records in memory, insertion-ordered.
type Store struct {
	mu      sync.RWMutex
	records map[string]*triage.Record
	order   []string
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*triage.Record)}
}

// Put implements triage.Store.
func (s *Store) Put(_ context.Context, rec *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = &cp
	return nil
}

// Get implements triage.Store.
func (s *Store) Get(_ context.Context, id string) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

// List implements triage.Store; newest first.
func (s *Store) List(_ context.Context, limit int) ([]*triage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*triage.Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		cp := *s.records[s.order[i]]
		out = append(out, &cp)
	}
	return out, nil
}
