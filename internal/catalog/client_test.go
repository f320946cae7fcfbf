package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/circuitbreaker"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

func TestResolveMedicine(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/medicines/medA":
			json.NewEncoder(w).Encode(Medicine{
				ID: "medA", SellerID: "seller1", BasePrice: 12.50,
				DiscountPercent: 10, IsActive: true, Stock: 7,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())
	ctx := context.Background()

	med, err := client.ResolveMedicine(ctx, "medA")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if med.SellerID != "seller1" || med.BasePrice != 12.50 || med.Stock != 7 {
		t.Errorf("unexpected medicine %+v", med)
	}

	if _, err := client.ResolveMedicine(ctx, "missing"); err != ErrMedicineNotFound {
		t.Errorf("expected ErrMedicineNotFound, got %v", err)
	}
}

func TestResolveMedicineNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := client.ResolveMedicine(ctx, "missing"); err != ErrMedicineNotFound {
			t.Fatalf("call %d: expected ErrMedicineNotFound, got %v", i, err)
		}
	}
	if client.breaker.State() != circuitbreaker.StateClosed {
		t.Errorf("breaker opened on 404s: %s", client.breaker.State())
	}
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLogger())
	ctx := context.Background()

	// Five consecutive failures open the breaker.
	for i := 0; i < 5; i++ {
		if _, err := client.ResolveMedicine(ctx, "medA"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if client.breaker.State() != circuitbreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", client.breaker.State())
	}

	// Further calls fail fast without reaching the server.
	before := atomic.LoadInt64(&calls)
	if _, err := client.ResolveMedicine(ctx, "medA"); err != circuitbreaker.ErrOpen {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if atomic.LoadInt64(&calls) != before {
		t.Error("request reached the server while the breaker was open")
	}
}
