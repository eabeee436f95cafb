// Package memory is an in-process TransactionExporter for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "finora/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.Row
	refs map[string]string
}

var _ ports.TransactionExporter = (*Store)(nil)

func New() *Store {
	return &Store{refs: make(map[string]string)}
}

// Export stores the row and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, r ports.Row) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[r.TransactionID]; ok {
		return ref, nil
	}
	s.rows = append(s.rows, r)
	ref := fmt.Sprintf("mem:%d", len(s.rows))
	s.refs[r.TransactionID] = ref
	return ref, nil
}

// Rows returns a copy of everything exported so far, in order.
func (s *Store) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Row(nil), s.rows...)
}
