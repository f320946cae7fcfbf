// Package catalog resolves medicine ids against the catalog service. The
// order core treats the catalog as an external collaborator: it reads a
// price/stock snapshot at order-creation time and never writes back.
package catalog

import (
	"context"
	"errors"
)

// Medicine is the catalog snapshot the order core needs.
type Medicine struct {
	ID              string  `json:"id"`
	SellerID        string  `json:"seller_id"`
	BasePrice       float64 `json:"base_price"`
	DiscountPercent float64 `json:"discount_percent"`
	IsActive        bool    `json:"is_active"`
	Stock           int     `json:"stock"`
}

// ErrMedicineNotFound is returned when the catalog has no record for an id.
var ErrMedicineNotFound = errors.New("medicine not found")

// Lookup resolves a medicine id to its current catalog snapshot.
type Lookup interface {
	ResolveMedicine(ctx context.Context, medicineID string) (*Medicine, error)
}
