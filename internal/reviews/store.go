package reviews

import (
	"context"
	"errors"

	"github.com/pharmakart/orderflow/pkg/models"
)

var (
	// ErrNotFound is returned when no review exists for the given key.
	ErrNotFound = errors.New("review not found")

	// ErrDuplicateReview means a top-level review already exists for the
	// (customer, order, medicine) triple.
	ErrDuplicateReview = errors.New("review already exists for this order item")

	// ErrDuplicateReply means the top-level review already has a reply.
	ErrDuplicateReply = errors.New("reply already exists for this review")
)

// Store persists the review thread. Uniqueness of top-level reviews and of
// replies is enforced at write time inside Create, so concurrent duplicate
// attempts leave exactly one winner.
type Store interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id string) (*models.Review, error)
	FindTopLevel(ctx context.Context, customerID, orderID, medicineID string) (*models.Review, error)
	FindReply(ctx context.Context, parentID string) (*models.Review, error)
	ListByMedicine(ctx context.Context, medicineID string) ([]models.Review, error)
	Delete(ctx context.Context, id string) error
}
