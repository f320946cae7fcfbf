package orders

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pharmakart/orderflow/pkg/models"
)

// MemoryStore is an in-memory Store used by tests. Its UpdateStatus applies
// the same compare-and-set semantics as the Postgres store, so transition
// races behave identically under both.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]models.Order)}
}

func (m *MemoryStore) Create(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = cloneOrder(*order)
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := cloneOrder(order)
	return &copied, nil
}

func (m *MemoryStore) List(_ context.Context, filter ListFilter) ([]models.Order, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []models.Order
	for _, order := range m.orders {
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.SellerID != "" && order.SellerID != filter.SellerID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(order.OrderNumber), strings.ToLower(filter.Search)) {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}

	asc := filter.SortOrder == "asc"
	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case "total_amount":
			less = matched[i].TotalAmount < matched[j].TotalAmount
		case "updated_at":
			less = matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if asc {
			return less
		}
		return !less
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if order.Status != from {
		return ErrStaleStatus
	}
	order.Status = to
	order.UpdatedAt = updatedAt
	m.orders[id] = order
	return nil
}

func cloneOrder(o models.Order) models.Order {
	items := make([]models.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
