package models

import (
	"fmt"
	"time"
)

// Role identifies who authored a review record.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleSeller   Role = "SELLER"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole validates a wire value against the closed role set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// MaxCommentLen bounds review and reply comments.
const MaxCommentLen = 500

// Review is either a top-level customer review (ParentID nil, Rating set)
// or a seller reply (ParentID set, Rating always nil). Build one through
// NewCustomerReview or NewSellerReply so the two shapes stay disjoint.
type Review struct {
	ID         string    `json:"id"`
	OrderID    string    `json:"order_id"`
	MedicineID string    `json:"medicine_id"`
	AuthorID   string    `json:"author_id"`
	AuthorRole Role      `json:"author_role"`
	Rating     *int      `json:"rating,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	ParentID   *string   `json:"parent_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TopLevel reports whether the record is a customer review rather than a reply.
func (r *Review) TopLevel() bool {
	return r.ParentID == nil
}

// NewCustomerReview builds a top-level review. Rating range is validated by
// the review service; this constructor only fixes the shape.
func NewCustomerReview(id, customerID, orderID, medicineID string, rating int, comment string, now time.Time) Review {
	return Review{
		ID:         id,
		OrderID:    orderID,
		MedicineID: medicineID,
		AuthorID:   customerID,
		AuthorRole: RoleCustomer,
		Rating:     &rating,
		Comment:    comment,
		CreatedAt:  now,
	}
}

// NewSellerReply builds a reply to parent. Replies never carry a rating.
func NewSellerReply(id, sellerID string, parent *Review, comment string, now time.Time) Review {
	parentID := parent.ID
	return Review{
		ID:         id,
		OrderID:    parent.OrderID,
		MedicineID: parent.MedicineID,
		AuthorID:   sellerID,
		AuthorRole: RoleSeller,
		Comment:    comment,
		ParentID:   &parentID,
		CreatedAt:  now,
	}
}

// ReviewThread pairs a top-level review with its reply, if any.
type ReviewThread struct {
	Review Review  `json:"review"`
	Reply  *Review `json:"reply,omitempty"`
}

// EligibilityResult is the read-only answer to "may this customer review
// this medicine on this order right now".
type EligibilityResult struct {
	Eligible        bool    `json:"eligible"`
	AlreadyReviewed bool    `json:"already_reviewed"`
	Reason          string  `json:"reason,omitempty"`
	ExistingReview  *Review `json:"existing_review,omitempty"`
}

// ReviewStats aggregates top-level ratings for a medicine. Distribution is
// indexed by star value; Percentages mirrors it as 0-100 shares of Count.
type ReviewStats struct {
	MedicineID   string          `json:"medicine_id"`
	Average      float64         `json:"average"`
	Count        int             `json:"count"`
	Distribution map[int]int     `json:"distribution"`
	Percentages  map[int]float64 `json:"percentages"`
}
