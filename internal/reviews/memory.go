package reviews

import (
	"context"
	"sync"

	"github.com/pharmakart/orderflow/pkg/models"
)

// MemoryStore is an in-memory Store used by tests. The uniqueness checks
// run under the same lock as the insert, mirroring what the Postgres
// partial unique indexes guarantee.
type MemoryStore struct {
	mu      sync.RWMutex
	reviews map[string]models.Review
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reviews: make(map[string]models.Review)}
}

func (m *MemoryStore) Create(_ context.Context, review *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.reviews {
		if review.ParentID == nil {
			if existing.ParentID == nil &&
				existing.AuthorID == review.AuthorID &&
				existing.OrderID == review.OrderID &&
				existing.MedicineID == review.MedicineID {
				return ErrDuplicateReview
			}
		} else {
			if existing.ParentID != nil && *existing.ParentID == *review.ParentID {
				return ErrDuplicateReply
			}
		}
	}

	m.reviews[review.ID] = *review
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	review, ok := m.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &review, nil
}

func (m *MemoryStore) FindTopLevel(_ context.Context, customerID, orderID, medicineID string) (*models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reviews {
		if r.ParentID == nil && r.AuthorID == customerID && r.OrderID == orderID && r.MedicineID == medicineID {
			review := r
			return &review, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindReply(_ context.Context, parentID string) (*models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reviews {
		if r.ParentID != nil && *r.ParentID == parentID {
			review := r
			return &review, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListByMedicine(_ context.Context, medicineID string) ([]models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var reviews []models.Review
	for _, r := range m.reviews {
		if r.MedicineID == medicineID {
			reviews = append(reviews, r)
		}
	}
	return reviews, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(m.reviews, id)
	return nil
}
