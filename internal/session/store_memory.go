package session

import (
	"context"
	"fmt"
	"sync"

	"groundtruth/pkg/platform/sentinel"
)

// MemoryStore keeps records in process memory. It is the default for unit
// tests and for runs that should never reuse sessions across processes.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Get(_ context.Context, role string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[role]
	if !ok {
		return Record{}, fmt.Errorf("session for role %q: %w", role, sentinel.ErrNotFound)
	}
	return rec, nil
}

func (s *MemoryStore) Put(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Role] = record
	return nil
}

func (s *MemoryStore) Invalidate(_ context.Context, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, role)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
