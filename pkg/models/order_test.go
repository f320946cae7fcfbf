package models

import (
	"testing"
	"time"
)

func timeNow() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func TestOrderStatusTransitionTable(t *testing.T) {
	all := []OrderStatus{StatusPlaced, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

	allowed := map[OrderStatus]OrderStatus{
		StatusPlaced:     StatusProcessing,
		StatusProcessing: StatusShipped,
		StatusShipped:    StatusDelivered,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from] == to
			if got := from.CanAdvanceTo(to); got != want {
				t.Errorf("CanAdvanceTo(%s -> %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestOrderStatusCancellable(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{StatusPlaced, true},
		{StatusProcessing, true},
		{StatusShipped, false},
		{StatusDelivered, false},
		{StatusCancelled, false},
	}
	for _, tt := range tests {
		if got := tt.status.Cancellable(); got != tt.want {
			t.Errorf("Cancellable(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, tt := range []struct {
		status OrderStatus
		want   bool
	}{
		{StatusPlaced, false},
		{StatusProcessing, false},
		{StatusShipped, false},
		{StatusDelivered, true},
		{StatusCancelled, true},
	} {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, err := ParseOrderStatus("PLACED"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseOrderStatus("placed"); err == nil {
		t.Error("expected error for lowercase status")
	}
	if _, err := ParseOrderStatus("REFUNDED"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestSellerReplyNeverHasRating(t *testing.T) {
	parent := NewCustomerReview("r1", "cust1", "o1", "medA", 5, "good", timeNow())
	reply := NewSellerReply("r2", "seller1", &parent, "thanks", timeNow())

	if reply.Rating != nil {
		t.Error("reply carries a rating")
	}
	if reply.AuthorRole != RoleSeller {
		t.Errorf("expected seller role, got %s", reply.AuthorRole)
	}
	if reply.TopLevel() {
		t.Error("reply reported as top-level")
	}
	if reply.OrderID != parent.OrderID || reply.MedicineID != parent.MedicineID {
		t.Error("reply not scoped to parent's order item")
	}
	if !parent.TopLevel() {
		t.Error("customer review reported as reply")
	}
}
