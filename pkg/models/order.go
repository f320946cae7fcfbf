package models

import (
	"fmt"
	"time"
)

// OrderStatus is the closed set of states an order moves through.
type OrderStatus string

const (
	StatusPlaced     OrderStatus = "PLACED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipped    OrderStatus = "SHIPPED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// transitions is the forward-only seller path. Cancellation is handled
// separately because it is customer-driven and only valid early on.
var transitions = map[OrderStatus]OrderStatus{
	StatusPlaced:     StatusProcessing,
	StatusProcessing: StatusShipped,
	StatusShipped:    StatusDelivered,
}

// ParseOrderStatus validates a wire value against the closed status set.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPlaced, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

// CanAdvanceTo reports whether a seller may move an order from s to next.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	return transitions[s] == next
}

// Cancellable reports whether a customer may still cancel an order in s.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPlaced || s == StatusProcessing
}

// Terminal reports whether no further status mutation is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentCashOnDelivery is the only payment method the storefront supports.
const PaymentCashOnDelivery = "CASH_ON_DELIVERY"

type OrderItem struct {
	MedicineID string  `json:"medicine_id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"` // discounted price snapshot taken at order time
}

type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"order_number"`
	CustomerID      string      `json:"customer_id"`
	SellerID        string      `json:"seller_id"`
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	Status          OrderStatus `json:"status"`
	ShippingAddress string      `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ContainsMedicine reports whether the order has a line item for medicineID.
func (o *Order) ContainsMedicine(medicineID string) bool {
	for _, it := range o.Items {
		if it.MedicineID == medicineID {
			return true
		}
	}
	return false
}

// Page is the envelope returned by list queries.
type Page struct {
	Orders     []Order `json:"orders"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"total_pages"`
}
