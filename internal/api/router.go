package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/metrics"
)

// NewRouter wires every exposed operation. wsHandler may be nil when the
// hub is disabled.
func NewRouter(h *Handler, wsHandler http.Handler, m *metrics.ServerMetrics, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	router.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{id}/status", h.UpdateOrderStatus).Methods("PUT")
	router.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods("POST")

	router.HandleFunc("/orders/{orderId}/items/{medicineId}/review-eligibility", h.CheckReviewEligibility).Methods("GET")
	router.HandleFunc("/reviews", h.CreateReview).Methods("POST")
	router.HandleFunc("/reviews/{id}/reply", h.ReplyToReview).Methods("POST")
	router.HandleFunc("/reviews/{id}", h.DeleteReview).Methods("DELETE")
	router.HandleFunc("/medicines/{id}/reviews", h.ListMedicineReviews).Methods("GET")
	router.HandleFunc("/medicines/{id}/reviews/stats", h.MedicineReviewStats).Methods("GET")

	if wsHandler != nil {
		router.Handle("/ws", wsHandler).Methods("GET")
	}

	router.Use(loggingMiddleware(logger))
	if m != nil {
		router.Use(metricsMiddleware(m))
	}

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps the websocket upgrade working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("Request handled")
		})
	}
}

func metricsMiddleware(m *metrics.ServerMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			handler := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					handler = tmpl
				}
			}
			m.Requests.WithLabelValues(handler, http.StatusText(rec.status)).Inc()
			m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}
