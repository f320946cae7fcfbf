package catalog

import (
	"context"
	"sync"
)

// StaticLookup is an in-memory Lookup used by tests and local runs without
// a catalog service.
type StaticLookup struct {
	mu        sync.RWMutex
	medicines map[string]Medicine
}

func NewStaticLookup(medicines ...Medicine) *StaticLookup {
	byID := make(map[string]Medicine, len(medicines))
	for _, m := range medicines {
		byID[m.ID] = m
	}
	return &StaticLookup{medicines: byID}
}

func (s *StaticLookup) Put(m Medicine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.medicines[m.ID] = m
}

func (s *StaticLookup) ResolveMedicine(_ context.Context, medicineID string) (*Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.medicines[medicineID]
	if !ok {
		return nil, ErrMedicineNotFound
	}
	return &m, nil
}
