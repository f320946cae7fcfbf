// Package reviews implements the post-delivery review workflow: eligibility
// checks, one customer review per purchased item, one seller reply per
// review, and the rating aggregates shown on the product page.
package reviews

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/internal/events"
	"github.com/pharmakart/orderflow/internal/orders"
	"github.com/pharmakart/orderflow/pkg/apperrors"
	"github.com/pharmakart/orderflow/pkg/models"
)

// OrderReader is the slice of the order store this package reads through.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
}

// MedicineReviews is the thread view for a product page: top-level reviews
// joined with their replies, plus replies whose parent review was deleted.
type MedicineReviews struct {
	Threads       []models.ReviewThread `json:"threads"`
	OrphanReplies []models.Review       `json:"orphan_replies,omitempty"`
}

type Service struct {
	store     Store
	orders    OrderReader
	publisher events.Publisher
	logger    *logrus.Logger
	now       func() time.Time
}

func NewService(store Store, orderReader OrderReader, publisher events.Publisher, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		orders:    orderReader,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CheckEligibility answers whether requesterID may review medicineID on
// orderID right now. Read-only and idempotent; the UI calls it once per
// item when rendering a delivered order.
func (s *Service) CheckEligibility(ctx context.Context, orderID, medicineID, requesterID string) (*models.EligibilityResult, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != requesterID {
		return nil, &apperrors.AuthError{Reason: "order belongs to a different customer"}
	}
	if !order.ContainsMedicine(medicineID) {
		return nil, &apperrors.ValidationError{Field: "medicine_id", Reason: "medicine is not part of this order"}
	}

	if order.Status != models.StatusDelivered {
		return &models.EligibilityResult{Eligible: false, Reason: "not delivered"}, nil
	}

	existing, err := s.store.FindTopLevel(ctx, requesterID, orderID, medicineID)
	if err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("failed to look up existing review: %w", err)
	}
	if existing != nil {
		return &models.EligibilityResult{
			Eligible:        false,
			AlreadyReviewed: true,
			Reason:          "already reviewed",
			ExistingReview:  existing,
		}, nil
	}

	return &models.EligibilityResult{Eligible: true}, nil
}

// CreateReview persists a top-level customer review. Eligibility is
// re-validated here regardless of what the client checked.
func (s *Service) CreateReview(ctx context.Context, customerID, orderID, medicineID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, &apperrors.ValidationError{Field: "rating", Reason: "rating must be between 1 and 5"}
	}
	if len(comment) > models.MaxCommentLen {
		return nil, &apperrors.ValidationError{Field: "comment", Reason: fmt.Sprintf("comment exceeds %d characters", models.MaxCommentLen)}
	}

	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, &apperrors.AuthError{Reason: "order belongs to a different customer"}
	}
	if !order.ContainsMedicine(medicineID) {
		return nil, &apperrors.PreconditionError{Reason: "medicine is not part of this order"}
	}
	if order.Status != models.StatusDelivered {
		return nil, &apperrors.PreconditionError{Reason: "order is not delivered yet"}
	}

	review := models.NewCustomerReview(uuid.New().String(), customerID, orderID, medicineID, rating, comment, s.now().UTC())
	if err := s.store.Create(ctx, &review); err != nil {
		if err == ErrDuplicateReview {
			return nil, &apperrors.ConflictError{Reason: "this item has already been reviewed for this order"}
		}
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	if err := s.publisher.ReviewCreated(&review); err != nil {
		s.logger.WithError(err).Error("Failed to publish review created event")
	}

	s.logger.WithFields(logrus.Fields{
		"review_id":   review.ID,
		"order_id":    orderID,
		"medicine_id": medicineID,
		"customer_id": customerID,
		"rating":      rating,
	}).Info("Review created")

	return &review, nil
}

// ReplyToReview attaches the single seller reply to a top-level review.
func (s *Service) ReplyToReview(ctx context.Context, sellerID, parentReviewID, comment string) (*models.Review, error) {
	if strings.TrimSpace(comment) == "" {
		return nil, &apperrors.ValidationError{Field: "comment", Reason: "reply comment is required"}
	}
	if len(comment) > models.MaxCommentLen {
		return nil, &apperrors.ValidationError{Field: "comment", Reason: fmt.Sprintf("comment exceeds %d characters", models.MaxCommentLen)}
	}

	parent, err := s.store.GetByID(ctx, parentReviewID)
	if err != nil {
		if err == ErrNotFound {
			return nil, &apperrors.NotFoundError{Entity: "review", ID: parentReviewID}
		}
		return nil, fmt.Errorf("failed to load review %s: %w", parentReviewID, err)
	}
	if !parent.TopLevel() {
		return nil, &apperrors.ValidationError{Field: "review_id", Reason: "cannot reply to a reply"}
	}

	order, err := s.loadOrder(ctx, parent.OrderID)
	if err != nil {
		return nil, err
	}
	if order.SellerID != sellerID {
		return nil, &apperrors.AuthError{Reason: "only the order's seller may reply to this review"}
	}

	if _, err := s.store.FindReply(ctx, parent.ID); err == nil {
		return nil, &apperrors.ConflictError{Reason: "this review already has a reply"}
	} else if err != ErrNotFound {
		return nil, fmt.Errorf("failed to look up existing reply: %w", err)
	}

	reply := models.NewSellerReply(uuid.New().String(), sellerID, parent, comment, s.now().UTC())
	if err := s.store.Create(ctx, &reply); err != nil {
		if err == ErrDuplicateReply {
			// Lost the race against a concurrent reply.
			return nil, &apperrors.ConflictError{Reason: "this review already has a reply"}
		}
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	if err := s.publisher.ReviewCreated(&reply); err != nil {
		s.logger.WithError(err).Error("Failed to publish review created event")
	}

	s.logger.WithFields(logrus.Fields{
		"reply_id":  reply.ID,
		"review_id": parent.ID,
		"seller_id": sellerID,
	}).Info("Review reply created")

	return &reply, nil
}

// DeleteReview removes a review authored by requesterID. Deleting a
// top-level review leaves its reply in place; the reply becomes an orphan
// in the medicine view.
func (s *Service) DeleteReview(ctx context.Context, requesterID, reviewID string) error {
	review, err := s.store.GetByID(ctx, reviewID)
	if err != nil {
		if err == ErrNotFound {
			return &apperrors.NotFoundError{Entity: "review", ID: reviewID}
		}
		return fmt.Errorf("failed to load review %s: %w", reviewID, err)
	}
	if review.AuthorID != requesterID {
		return &apperrors.AuthError{Reason: "only the author may delete a review"}
	}

	if err := s.store.Delete(ctx, reviewID); err != nil {
		if err == ErrNotFound {
			return &apperrors.NotFoundError{Entity: "review", ID: reviewID}
		}
		return fmt.Errorf("failed to delete review %s: %w", reviewID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"review_id":   reviewID,
		"author_id":   requesterID,
		"author_role": string(review.AuthorRole),
	}).Info("Review deleted")

	return nil
}

// ListByMedicine returns the review threads for a medicine. Replies are
// joined to their parent by id; replies without a surviving parent are
// returned separately.
func (s *Service) ListByMedicine(ctx context.Context, medicineID string) (*MedicineReviews, error) {
	all, err := s.store.ListByMedicine(ctx, medicineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	result := &MedicineReviews{}
	replyByParent := make(map[string]models.Review)
	for _, r := range all {
		if !r.TopLevel() {
			replyByParent[*r.ParentID] = r
		}
	}

	matched := make(map[string]bool)
	for _, r := range all {
		if !r.TopLevel() {
			continue
		}
		thread := models.ReviewThread{Review: r}
		if reply, ok := replyByParent[r.ID]; ok {
			replyCopy := reply
			thread.Reply = &replyCopy
			matched[reply.ID] = true
		}
		result.Threads = append(result.Threads, thread)
	}
	for _, r := range all {
		if !r.TopLevel() && !matched[r.ID] {
			result.OrphanReplies = append(result.OrphanReplies, r)
		}
	}

	return result, nil
}

// Stats aggregates top-level ratings for a medicine. Replies carry no
// rating and never count. Empty input yields zeros, not NaN.
func (s *Service) Stats(ctx context.Context, medicineID string) (*models.ReviewStats, error) {
	all, err := s.store.ListByMedicine(ctx, medicineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}

	stats := &models.ReviewStats{
		MedicineID:   medicineID,
		Distribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
		Percentages:  map[int]float64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0},
	}

	var sum int
	for _, r := range all {
		if !r.TopLevel() || r.Rating == nil {
			continue
		}
		stats.Count++
		sum += *r.Rating
		stats.Distribution[*r.Rating]++
	}

	if stats.Count > 0 {
		stats.Average = math.Round(float64(sum)/float64(stats.Count)*10) / 10
		for star, n := range stats.Distribution {
			stats.Percentages[star] = math.Round(float64(n)/float64(stats.Count)*1000) / 10
		}
	}

	return stats, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if err == orders.ErrNotFound {
			return nil, &apperrors.NotFoundError{Entity: "order", ID: orderID}
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return order, nil
}
