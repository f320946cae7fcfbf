package reviews

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/pkg/models"
)

const (
	uniqueTopLevelConstraint = "idx_reviews_one_per_order_item"
	uniqueReplyConstraint    = "idx_reviews_one_reply"
)

// PostgresStore persists the self-referencing review list. Two partial
// unique indexes carry the uniqueness invariants, so concurrent duplicate
// writes are settled by the database, not by application reads.
type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresStore(db *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// EnsureSchema creates the review table and its uniqueness indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reviews (
			id VARCHAR(255) PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL,
			medicine_id VARCHAR(255) NOT NULL,
			author_id VARCHAR(255) NOT NULL,
			author_role VARCHAR(20) NOT NULL,
			rating INTEGER,
			comment TEXT,
			parent_id VARCHAR(255),
			created_at TIMESTAMP NOT NULL
		)`,
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s
			ON reviews (author_id, order_id, medicine_id) WHERE parent_id IS NULL`, uniqueTopLevelConstraint),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s
			ON reviews (parent_id) WHERE parent_id IS NOT NULL`, uniqueReplyConstraint),
		`CREATE INDEX IF NOT EXISTS idx_reviews_medicine ON reviews(medicine_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create review tables: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (id, order_id, medicine_id, author_id, author_role,
			rating, comment, parent_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query, review.ID, review.OrderID, review.MedicineID,
		review.AuthorID, review.AuthorRole, review.Rating, review.Comment,
		review.ParentID, review.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case uniqueReplyConstraint:
				return ErrDuplicateReply
			default:
				return ErrDuplicateReview
			}
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.Review, error) {
	return s.queryOne(ctx, "WHERE id = $1", id)
}

func (s *PostgresStore) FindTopLevel(ctx context.Context, customerID, orderID, medicineID string) (*models.Review, error) {
	return s.queryOne(ctx,
		"WHERE author_id = $1 AND order_id = $2 AND medicine_id = $3 AND parent_id IS NULL",
		customerID, orderID, medicineID)
}

func (s *PostgresStore) FindReply(ctx context.Context, parentID string) (*models.Review, error) {
	return s.queryOne(ctx, "WHERE parent_id = $1", parentID)
}

func (s *PostgresStore) queryOne(ctx context.Context, where string, args ...interface{}) (*models.Review, error) {
	query := `
		SELECT id, order_id, medicine_id, author_id, author_role,
			rating, comment, parent_id, created_at
		FROM reviews ` + where

	review := &models.Review{}
	var role string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&review.ID, &review.OrderID, &review.MedicineID, &review.AuthorID,
		&role, &review.Rating, &review.Comment, &review.ParentID, &review.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	review.AuthorRole = models.Role(role)
	return review, nil
}

func (s *PostgresStore) ListByMedicine(ctx context.Context, medicineID string) ([]models.Review, error) {
	query := `
		SELECT id, order_id, medicine_id, author_id, author_role,
			rating, comment, parent_id, created_at
		FROM reviews WHERE medicine_id = $1 ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, medicineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var review models.Review
		var role string
		err := rows.Scan(
			&review.ID, &review.OrderID, &review.MedicineID, &review.AuthorID,
			&role, &review.Rating, &review.Comment, &review.ParentID, &review.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		review.AuthorRole = models.Role(role)
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
