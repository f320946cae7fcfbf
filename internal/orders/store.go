package orders

import (
	"context"
	"errors"
	"time"

	"github.com/pharmakart/orderflow/pkg/models"
)

var (
	// ErrNotFound is returned when no order exists for the given id.
	ErrNotFound = errors.New("order not found")

	// ErrStaleStatus is returned by UpdateStatus when the order's persisted
	// status no longer matches the expected one, i.e. a concurrent
	// transition won the race.
	ErrStaleStatus = errors.New("order status changed concurrently")
)

// ListFilter shapes dashboard queries. CustomerID/SellerID scope the result
// to one side of the marketplace; Search matches the order number.
type ListFilter struct {
	CustomerID string
	SellerID   string
	Status     models.OrderStatus
	Search     string
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
}

// Store persists the order aggregate. UpdateStatus is a conditional write:
// it only applies when the persisted status still equals from, which is
// what keeps concurrent transitions from silently overwriting each other.
type Store interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error
}
