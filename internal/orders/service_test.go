package orders

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/catalog"
	"github.com/pharmakart/orderflow/internal/events"
	"github.com/pharmakart/orderflow/pkg/apperrors"
	"github.com/pharmakart/orderflow/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func newTestService(t *testing.T, medicines ...catalog.Medicine) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	lookup := catalog.NewStaticLookup(medicines...)
	svc := NewService(store, lookup, events.Nop{}, testLogger())
	return svc, store
}

func placeOrder(t *testing.T, svc *Service, customerID, sellerID string, items []CreateItem) *models.Order {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), customerID, sellerID, "12 High St", items)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

// advance walks an order to target through every intermediate status.
func advance(t *testing.T, svc *Service, order *models.Order, target models.OrderStatus) {
	t.Helper()
	path := []models.OrderStatus{models.StatusProcessing, models.StatusShipped, models.StatusDelivered}
	for _, next := range path {
		if _, err := svc.UpdateStatus(context.Background(), order.ID, order.SellerID, next); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if next == target {
			return
		}
	}
}

func TestCreateOrderComputesSnapshotTotal(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10.00, IsActive: true, Stock: 50},
		catalog.Medicine{ID: "medB", SellerID: "seller1", BasePrice: 5.00, IsActive: true, Stock: 50},
	)

	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{
		{MedicineID: "medA", Quantity: 2},
		{MedicineID: "medB", Quantity: 1},
	})

	if order.TotalAmount != 25.00 {
		t.Errorf("expected total 25.00, got %.2f", order.TotalAmount)
	}
	if order.Status != models.StatusPlaced {
		t.Errorf("expected status PLACED, got %s", order.Status)
	}
	if order.PaymentMethod != models.PaymentCashOnDelivery {
		t.Errorf("expected cash on delivery, got %s", order.PaymentMethod)
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Errorf("unexpected order number %q", order.OrderNumber)
	}
}

func TestCreateOrderAppliesDiscount(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 9.99, DiscountPercent: 15, IsActive: true, Stock: 10},
	)

	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 3}})

	// 9.99 * 0.85 = 8.4915, rounded per unit to 8.49
	if order.Items[0].UnitPrice != 8.49 {
		t.Errorf("expected unit price 8.49, got %.4f", order.Items[0].UnitPrice)
	}
	if order.TotalAmount != 25.47 {
		t.Errorf("expected total 25.47, got %.4f", order.TotalAmount)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 2},
		catalog.Medicine{ID: "medInactive", SellerID: "seller1", BasePrice: 10, IsActive: false, Stock: 5},
		catalog.Medicine{ID: "medOther", SellerID: "seller2", BasePrice: 10, IsActive: true, Stock: 5},
	)

	tests := []struct {
		name       string
		customerID string
		items      []CreateItem
		wantAuth   bool
	}{
		{name: "empty_items", customerID: "cust1", items: nil},
		{name: "zero_quantity", customerID: "cust1", items: []CreateItem{{MedicineID: "medA", Quantity: 0}}},
		{name: "unknown_medicine", customerID: "cust1", items: []CreateItem{{MedicineID: "nope", Quantity: 1}}},
		{name: "inactive_medicine", customerID: "cust1", items: []CreateItem{{MedicineID: "medInactive", Quantity: 1}}},
		{name: "foreign_seller", customerID: "cust1", items: []CreateItem{{MedicineID: "medOther", Quantity: 1}}},
		{name: "over_stock", customerID: "cust1", items: []CreateItem{{MedicineID: "medA", Quantity: 3}}},
		{name: "missing_customer", customerID: "", items: []CreateItem{{MedicineID: "medA", Quantity: 1}}, wantAuth: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tt.customerID, "seller1", "addr", tt.items)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantAuth && !apperrors.IsAuth(err) {
				t.Errorf("expected AuthError, got %v", err)
			}
			if !tt.wantAuth && !apperrors.IsValidation(err) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestUpdateStatusFollowsForwardPath(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})

	for _, next := range []models.OrderStatus{models.StatusProcessing, models.StatusShipped, models.StatusDelivered} {
		updated, err := svc.UpdateStatus(context.Background(), order.ID, "seller1", next)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Errorf("expected %s, got %s", next, updated.Status)
		}
		if !updated.UpdatedAt.After(order.CreatedAt) && !updated.UpdatedAt.Equal(order.CreatedAt) {
			t.Errorf("updated_at not bumped")
		}
	}
}

func TestUpdateStatusRejectsSkippedState(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})

	// PLACED -> SHIPPED skips PROCESSING.
	_, err := svc.UpdateStatus(context.Background(), order.ID, "seller1", models.StatusShipped)
	if !apperrors.IsInvalidTransition(err) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	// Status must be unchanged after the rejection.
	current, err := svc.GetOrder(context.Background(), order.ID, "seller1", models.RoleSeller)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if current.Status != models.StatusPlaced {
		t.Errorf("status changed to %s after rejected transition", current.Status)
	}
}

func TestUpdateStatusRejectsBackwardsAndTerminal(t *testing.T) {
	tests := []struct {
		name    string
		prepare models.OrderStatus
		attempt models.OrderStatus
	}{
		{name: "re_enter_prior_state", prepare: models.StatusShipped, attempt: models.StatusProcessing},
		{name: "from_delivered", prepare: models.StatusDelivered, attempt: models.StatusProcessing},
		{name: "same_state", prepare: models.StatusProcessing, attempt: models.StatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t,
				catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
			)
			order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})
			advance(t, svc, order, tt.prepare)

			_, err := svc.UpdateStatus(context.Background(), order.ID, "seller1", tt.attempt)
			if !apperrors.IsInvalidTransition(err) {
				t.Errorf("expected InvalidTransitionError, got %v", err)
			}
		})
	}
}

func TestUpdateStatusSellerOnly(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})

	_, err := svc.UpdateStatus(context.Background(), order.ID, "seller2", models.StatusProcessing)
	if !apperrors.IsAuth(err) {
		t.Errorf("expected AuthError for foreign seller, got %v", err)
	}
}

func TestCancelFromProcessingThenAgain(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})
	advance(t, svc, order, models.StatusProcessing)

	cancelled, err := svc.Cancel(context.Background(), order.ID, "cust1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}

	// Cancelling again must fail: CANCELLED is terminal.
	_, err = svc.Cancel(context.Background(), order.ID, "cust1")
	if !apperrors.IsInvalidTransition(err) {
		t.Errorf("expected InvalidTransitionError on second cancel, got %v", err)
	}
}

func TestCancelRejectedAfterShipping(t *testing.T) {
	for _, status := range []models.OrderStatus{models.StatusShipped, models.StatusDelivered} {
		t.Run(string(status), func(t *testing.T) {
			svc, _ := newTestService(t,
				catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
			)
			order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})
			advance(t, svc, order, status)

			_, err := svc.Cancel(context.Background(), order.ID, "cust1")
			if !apperrors.IsInvalidTransition(err) {
				t.Errorf("expected InvalidTransitionError, got %v", err)
			}
		})
	}
}

func TestCancelCustomerOnly(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})

	_, err := svc.Cancel(context.Background(), order.ID, "someone-else")
	if !apperrors.IsAuth(err) {
		t.Errorf("expected AuthError, got %v", err)
	}
}

func TestConcurrentTransitionsHaveOneWinner(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})

	// Seller advance and customer cancel race from PLACED. Exactly one
	// must win; the loser gets InvalidTransitionError.
	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)
	go func() {
		defer wg.Done()
		_, errs[0] = svc.UpdateStatus(context.Background(), order.ID, "seller1", models.StatusProcessing)
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = svc.Cancel(context.Background(), order.ID, "cust1")
	}()
	wg.Wait()

	var winners, losers int
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case apperrors.IsInvalidTransition(err):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Cancel is still legal from PROCESSING, so both can succeed in that
	// interleaving; what is never allowed is both failing or a non-typed
	// error escaping.
	if winners == 0 {
		t.Errorf("expected at least one winner, got %d winners / %d losers", winners, losers)
	}
	if winners+losers != attempts {
		t.Errorf("unaccounted outcomes: %d winners, %d losers", winners, losers)
	}
}

func TestGetOrderScopedByRole(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})

	tests := []struct {
		name      string
		requester string
		role      models.Role
		wantErr   bool
	}{
		{name: "own_customer", requester: "cust1", role: models.RoleCustomer},
		{name: "own_seller", requester: "seller1", role: models.RoleSeller},
		{name: "admin", requester: "admin1", role: models.RoleAdmin},
		{name: "foreign_customer", requester: "cust2", role: models.RoleCustomer, wantErr: true},
		{name: "foreign_seller", requester: "seller2", role: models.RoleSeller, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetOrder(context.Background(), order.ID, tt.requester, tt.role)
			if tt.wantErr && !apperrors.IsAuth(err) {
				t.Errorf("expected AuthError, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	_, err := svc.GetOrder(context.Background(), "missing", "admin1", models.RoleAdmin)
	if !apperrors.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestListOrdersScopingAndPaging(t *testing.T) {
	svc, _ := newTestService(t,
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 100},
		catalog.Medicine{ID: "medB", SellerID: "seller2", BasePrice: 20, IsActive: true, Stock: 100},
	)

	for i := 0; i < 3; i++ {
		placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 1}})
	}
	placeOrder(t, svc, "cust2", "seller2", []CreateItem{{MedicineID: "medB", Quantity: 1}})

	ctx := context.Background()

	customerPage, err := svc.ListOrders(ctx, "cust1", models.RoleCustomer, ListFilter{})
	if err != nil {
		t.Fatalf("list as customer: %v", err)
	}
	if customerPage.Total != 3 {
		t.Errorf("expected 3 orders for cust1, got %d", customerPage.Total)
	}

	sellerPage, err := svc.ListOrders(ctx, "seller2", models.RoleSeller, ListFilter{})
	if err != nil {
		t.Fatalf("list as seller: %v", err)
	}
	if sellerPage.Total != 1 {
		t.Errorf("expected 1 order for seller2, got %d", sellerPage.Total)
	}

	adminPage, err := svc.ListOrders(ctx, "admin1", models.RoleAdmin, ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list as admin: %v", err)
	}
	if adminPage.Total != 4 {
		t.Errorf("expected 4 orders total, got %d", adminPage.Total)
	}
	if len(adminPage.Orders) != 2 {
		t.Errorf("expected page of 2, got %d", len(adminPage.Orders))
	}
	if adminPage.TotalPages != 2 {
		t.Errorf("expected 2 pages, got %d", adminPage.TotalPages)
	}

	filtered, err := svc.ListOrders(ctx, "admin1", models.RoleAdmin, ListFilter{Status: models.StatusPlaced})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if filtered.Total != 4 {
		t.Errorf("expected all 4 PLACED, got %d", filtered.Total)
	}
}

func TestTotalAmountImmutableAfterCatalogChange(t *testing.T) {
	lookup := catalog.NewStaticLookup(
		catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 10, IsActive: true, Stock: 10},
	)
	store := NewMemoryStore()
	svc := NewService(store, lookup, events.Nop{}, testLogger())

	order := placeOrder(t, svc, "cust1", "seller1", []CreateItem{{MedicineID: "medA", Quantity: 2}})

	// Catalog price doubles after the order is placed.
	lookup.Put(catalog.Medicine{ID: "medA", SellerID: "seller1", BasePrice: 20, IsActive: true, Stock: 10})

	reloaded, err := svc.GetOrder(context.Background(), order.ID, "cust1", models.RoleCustomer)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if reloaded.TotalAmount != 20.00 {
		t.Errorf("total changed after catalog update: %.2f", reloaded.TotalAmount)
	}
	if reloaded.Items[0].UnitPrice != 10.00 {
		t.Errorf("price snapshot changed: %.2f", reloaded.Items[0].UnitPrice)
	}
}
