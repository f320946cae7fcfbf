// Package orders implements the order lifecycle: creation against a catalog
// snapshot, the seller-driven forward status machine, and customer
// cancellation.
package orders

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/catalog"
	"github.com/pharmakart/orderflow/internal/events"
	"github.com/pharmakart/orderflow/pkg/apperrors"
	"github.com/pharmakart/orderflow/pkg/models"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// CreateItem is one requested cart line. Prices are never accepted from the
// caller; they come from the catalog snapshot at creation time.
type CreateItem struct {
	MedicineID string `json:"medicine_id"`
	Quantity   int    `json:"quantity"`
}

type Service struct {
	store     Store
	catalog   catalog.Lookup
	publisher events.Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewService(store Store, lookup catalog.Lookup, publisher events.Publisher, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		catalog:   lookup,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOrder validates the cart against the catalog, snapshots discounted
// prices, and persists a new order in PLACED. Stock is checked but never
// decremented; inventory accounting belongs to the catalog side.
func (s *Service) CreateOrder(ctx context.Context, customerID, sellerID, shippingAddress string, items []CreateItem) (*models.Order, error) {
	if customerID == "" {
		return nil, &apperrors.AuthError{Reason: "missing customer identity"}
	}
	if len(items) == 0 {
		return nil, &apperrors.ValidationError{Field: "items", Reason: "order must contain at least one item"}
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:              uuid.New().String(),
		OrderNumber:     newOrderNumber(now),
		CustomerID:      customerID,
		SellerID:        sellerID,
		ShippingAddress: shippingAddress,
		PaymentMethod:   models.PaymentCashOnDelivery,
		Status:          models.StatusPlaced,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var total float64
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, &apperrors.ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: "quantity must be at least 1",
			}
		}

		med, err := s.catalog.ResolveMedicine(ctx, item.MedicineID)
		if err != nil {
			if err == catalog.ErrMedicineNotFound {
				return nil, &apperrors.ValidationError{
					Field:  fmt.Sprintf("items[%d].medicine_id", i),
					Reason: fmt.Sprintf("medicine %s not found", item.MedicineID),
				}
			}
			return nil, fmt.Errorf("catalog lookup for %s: %w", item.MedicineID, err)
		}
		if !med.IsActive {
			return nil, &apperrors.ValidationError{
				Field:  fmt.Sprintf("items[%d].medicine_id", i),
				Reason: fmt.Sprintf("medicine %s is not available", item.MedicineID),
			}
		}
		if med.SellerID != sellerID {
			return nil, &apperrors.ValidationError{
				Field:  fmt.Sprintf("items[%d].medicine_id", i),
				Reason: "an order cannot mix medicines from different sellers",
			}
		}
		if item.Quantity > med.Stock {
			return nil, &apperrors.ValidationError{
				Field:  fmt.Sprintf("items[%d].quantity", i),
				Reason: fmt.Sprintf("only %d units of %s in stock", med.Stock, item.MedicineID),
			}
		}

		price := round2(med.BasePrice * (1 - med.DiscountPercent/100))
		order.Items = append(order.Items, models.OrderItem{
			MedicineID: item.MedicineID,
			Quantity:   item.Quantity,
			UnitPrice:  price,
		})
		total += float64(item.Quantity) * price
	}
	order.TotalAmount = round2(total)

	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	if err := s.publisher.OrderCreated(order); err != nil {
		// Event loss is logged, never fatal to the request.
		s.logger.WithError(err).Error("Failed to publish order created event")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"seller_id":    order.SellerID,
		"total_amount": order.TotalAmount,
		"items_count":  len(order.Items),
	}).Info("Order created")

	return order, nil
}

// GetOrder returns an order to its customer, its seller, or an admin.
func (s *Service) GetOrder(ctx context.Context, orderID, requesterID string, requesterRole models.Role) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch requesterRole {
	case models.RoleAdmin:
	case models.RoleCustomer:
		if order.CustomerID != requesterID {
			return nil, &apperrors.AuthError{Reason: "order belongs to a different customer"}
		}
	case models.RoleSeller:
		if order.SellerID != requesterID {
			return nil, &apperrors.AuthError{Reason: "order belongs to a different seller"}
		}
	default:
		return nil, &apperrors.AuthError{Reason: "unknown role"}
	}
	return order, nil
}

// ListOrders returns a page of orders scoped to the requester's role.
func (s *Service) ListOrders(ctx context.Context, requesterID string, requesterRole models.Role, filter ListFilter) (*models.Page, error) {
	switch requesterRole {
	case models.RoleAdmin:
	case models.RoleCustomer:
		filter.CustomerID = requesterID
	case models.RoleSeller:
		filter.SellerID = requesterID
	default:
		return nil, &apperrors.AuthError{Reason: "unknown role"}
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	switch filter.SortBy {
	case "created_at", "updated_at", "total_amount":
	default:
		filter.SortBy = "created_at"
	}
	if !strings.EqualFold(filter.SortOrder, "asc") {
		filter.SortOrder = "desc"
	} else {
		filter.SortOrder = "asc"
	}

	orders, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	totalPages := (total + filter.Limit - 1) / filter.Limit
	return &models.Page{
		Orders:     orders,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

// UpdateStatus advances an order along PLACED -> PROCESSING -> SHIPPED ->
// DELIVERED. Only the order's seller may call it, and the write is
// conditional on the status the transition was validated against.
func (s *Service) UpdateStatus(ctx context.Context, orderID, requesterID string, newStatus models.OrderStatus) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != requesterID {
		return nil, &apperrors.AuthError{Reason: "only the order's seller may update its status"}
	}

	if !order.Status.CanAdvanceTo(newStatus) {
		return nil, &apperrors.InvalidTransitionError{
			From: string(order.Status),
			To:   string(newStatus),
		}
	}

	prev := order.Status
	now := s.now().UTC()
	if err := s.store.UpdateStatus(ctx, order.ID, prev, newStatus, now); err != nil {
		return nil, s.transitionWriteError(ctx, order.ID, newStatus, err)
	}
	order.Status = newStatus
	order.UpdatedAt = now

	if err := s.publisher.OrderStatusChanged(order, prev); err != nil {
		s.logger.WithError(err).Error("Failed to publish order status changed event")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"seller_id":   requesterID,
		"from_status": string(prev),
		"to_status":   string(newStatus),
	}).Info("Order status updated")

	return order, nil
}

// Cancel moves an order to CANCELLED. Only the order's customer may call
// it, and only while the order is still PLACED or PROCESSING.
func (s *Service) Cancel(ctx context.Context, orderID, requesterID string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != requesterID {
		return nil, &apperrors.AuthError{Reason: "only the order's customer may cancel it"}
	}

	if !order.Status.Cancellable() {
		return nil, &apperrors.InvalidTransitionError{
			From:   string(order.Status),
			To:     string(models.StatusCancelled),
			Reason: "order cannot be cancelled at this stage",
		}
	}

	prev := order.Status
	now := s.now().UTC()
	if err := s.store.UpdateStatus(ctx, order.ID, prev, models.StatusCancelled, now); err != nil {
		return nil, s.transitionWriteError(ctx, order.ID, models.StatusCancelled, err)
	}
	order.Status = models.StatusCancelled
	order.UpdatedAt = now

	if err := s.publisher.OrderCancelled(order); err != nil {
		s.logger.WithError(err).Error("Failed to publish order cancelled event")
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"customer_id": requesterID,
		"from_status": string(prev),
	}).Info("Order cancelled")

	return order, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetByID(ctx, orderID)
	if err != nil {
		if err == ErrNotFound {
			return nil, &apperrors.NotFoundError{Entity: "order", ID: orderID}
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}

// transitionWriteError converts a failed conditional write into the error
// the caller should see. A stale write means another transition landed
// first, so the race loser re-reads and reports against the fresh status.
func (s *Service) transitionWriteError(ctx context.Context, orderID string, attempted models.OrderStatus, err error) error {
	if err != ErrStaleStatus {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}

	current, readErr := s.store.GetByID(ctx, orderID)
	from := "unknown"
	if readErr == nil {
		from = string(current.Status)
	}
	return &apperrors.InvalidTransitionError{
		From:   from,
		To:     string(attempted),
		Reason: fmt.Sprintf("order status changed concurrently, now %s", from),
	}
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
