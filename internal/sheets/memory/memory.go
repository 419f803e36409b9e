package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"maaser/internal/core"
	"maaser/internal/sheets"
)

// Store is an in-process sheet used for local runs and tests.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
	// refs maps entry IDs to row references so repeated appends are no-ops.
	refs map[string]string
}

func New() *Store {
	return &Store{refs: map[string]string{}}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.LedgerEntry) (string, error) {
	if strings.TrimSpace(e.ID) == "" {
		return "", fmt.Errorf("entry id is required")
	}
	if err := e.Payload.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref, ok := s.refs[e.ID]; ok {
		return ref, nil
	}
	s.rows = append(s.rows, sheets.RowFor(e))
	ref := fmt.Sprintf("mem:%d", len(s.rows))
	s.refs[e.ID] = ref
	return ref, nil
}

// ListEntries returns the rows whose date falls in year.
func (s *Store) ListEntries(_ context.Context, year int) ([]sheets.Row, error) {
	prefix := fmt.Sprintf("%04d-", year)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sheets.Row
	for _, r := range s.rows {
		if strings.HasPrefix(r.Date, prefix) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Len returns the number of stored rows.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
