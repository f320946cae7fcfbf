// Package api exposes the order lifecycle and review workflow as a JSON
// API. Identity is resolved upstream by the auth gateway and arrives as
// X-User-ID / X-User-Role headers; nothing here reads sessions or cookies.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/orders"
	"github.com/pharmakart/orderflow/internal/reviews"
	ws "github.com/pharmakart/orderflow/internal/websocket"
	"github.com/pharmakart/orderflow/pkg/apperrors"
	"github.com/pharmakart/orderflow/pkg/models"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

// Broadcaster receives lifecycle updates for connected dashboards.
type Broadcaster interface {
	Broadcast(update ws.OrderUpdate)
}

type Handler struct {
	orders  *orders.Service
	reviews *reviews.Service
	hub     Broadcaster
	pingDB  func() error
	logger  *logrus.Logger
}

func NewHandler(orderSvc *orders.Service, reviewSvc *reviews.Service, hub Broadcaster, pingDB func() error, logger *logrus.Logger) *Handler {
	return &Handler{
		orders:  orderSvc,
		reviews: reviewSvc,
		hub:     hub,
		pingDB:  pingDB,
		logger:  logger,
	}
}

type createOrderRequest struct {
	SellerID        string              `json:"seller_id"`
	ShippingAddress string              `json:"shipping_address"`
	Items           []orders.CreateItem `json:"items"`
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.identity(w, r)
	if !ok {
		return
	}
	if role != models.RoleCustomer {
		h.respondError(w, &apperrors.AuthError{Reason: "only customers may place orders"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), userID, req.SellerID, req.ShippingAddress, req.Items)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.broadcast("order_created", order)
	h.respondWithJSON(w, http.StatusCreated, order)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.identity(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), mux.Vars(r)["id"], userID, role)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := orders.ListFilter{
		Search:    q.Get("search"),
		Page:      page,
		Limit:     limit,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	// Admins may scope by either side; for other roles the service pins
	// the filter to the requester.
	if role == models.RoleAdmin {
		filter.CustomerID = q.Get("customer_id")
		filter.SellerID = q.Get("seller_id")
	}
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseOrderStatus(raw)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = status
	}

	page2, err := h.orders.ListOrders(r.Context(), userID, role, filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, page2)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.identity(w, r)
	if !ok {
		return
	}
	if role != models.RoleSeller {
		h.respondError(w, &apperrors.AuthError{Reason: "only sellers may update order status"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], userID, status)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.broadcast("order_status_changed", order)
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.identity(w, r)
	if !ok {
		return
	}
	if role != models.RoleCustomer {
		h.respondError(w, &apperrors.AuthError{Reason: "only customers may cancel orders"})
		return
	}

	order, err := h.orders.Cancel(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.broadcast("order_cancelled", order)
	h.respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) CheckReviewEligibility(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.identity(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	result, err := h.reviews.CheckEligibility(r.Context(), vars["orderId"], vars["medicineId"], userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

type createReviewRequest struct {
	OrderID    string `json:"order_id"`
	MedicineID string `json:"medicine_id"`
	Rating     int    `json:"rating"`
	Comment    string `json:"comment"`
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.identity(w, r)
	if !ok {
		return
	}
	if role != models.RoleCustomer {
		h.respondError(w, &apperrors.AuthError{Reason: "only customers may submit reviews"})
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), userID, req.OrderID, req.MedicineID, req.Rating, req.Comment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, review)
}

type replyRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) ReplyToReview(w http.ResponseWriter, r *http.Request) {
	userID, role, ok := h.identity(w, r)
	if !ok {
		return
	}
	if role != models.RoleSeller {
		h.respondError(w, &apperrors.AuthError{Reason: "only sellers may reply to reviews"})
		return
	}

	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.reviews.ReplyToReview(r.Context(), userID, mux.Vars(r)["id"], req.Comment)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, reply)
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.reviews.DeleteReview(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Review deleted",
	})
}

func (h *Handler) ListMedicineReviews(w http.ResponseWriter, r *http.Request) {
	result, err := h.reviews.ListByMedicine(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) MedicineReviewStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reviews.Stats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, stats)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.pingDB != nil {
		if err := h.pingDB(); err != nil {
			h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "order-service",
				"error":   "database connection failed",
			})
			return
		}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "order-service",
	})
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (string, models.Role, bool) {
	userID := r.Header.Get(headerUserID)
	rawRole := r.Header.Get(headerUserRole)
	if userID == "" || rawRole == "" {
		h.respondWithError(w, http.StatusUnauthorized, "Missing identity headers")
		return "", "", false
	}
	role, err := models.ParseRole(rawRole)
	if err != nil {
		h.respondWithError(w, http.StatusUnauthorized, "Unknown role")
		return "", "", false
	}
	return userID, role, true
}

func (h *Handler) broadcast(updateType string, order *models.Order) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(ws.OrderUpdate{
		Type:        updateType,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		SellerID:    order.SellerID,
		Status:      string(order.Status),
	})
}

// respondError maps the business error taxonomy onto HTTP status codes.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case apperrors.IsValidation(err):
		status = http.StatusBadRequest
	case apperrors.IsAuth(err):
		status = http.StatusForbidden
	case apperrors.IsNotFound(err):
		status = http.StatusNotFound
	case apperrors.IsConflict(err):
		status = http.StatusConflict
	case apperrors.IsPrecondition(err):
		status = http.StatusPreconditionFailed
	case apperrors.IsInvalidTransition(err):
		status = http.StatusUnprocessableEntity
	default:
		h.logger.WithError(err).Error("Request failed")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.respondWithError(w, status, err.Error())
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}
