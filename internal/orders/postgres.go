package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pharmakart/orderflow/pkg/models"
)

// PostgresStore persists orders in two tables: an order header row and one
// row per line item.
type PostgresStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresStore(db *sql.DB, logger *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// EnsureSchema creates the order tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(255) PRIMARY KEY,
			order_number VARCHAR(64) NOT NULL UNIQUE,
			customer_id VARCHAR(255) NOT NULL,
			seller_id VARCHAR(255) NOT NULL,
			total_amount DECIMAL(10,2) NOT NULL,
			status VARCHAR(50) NOT NULL,
			shipping_address TEXT NOT NULL,
			payment_method VARCHAR(50) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id SERIAL PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL REFERENCES orders(id),
			medicine_id VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price DECIMAL(10,2) NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders(seller_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create order tables: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, order *models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (id, order_number, customer_id, seller_id, total_amount,
			status, shipping_address, payment_method, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, query, order.ID, order.OrderNumber, order.CustomerID,
		order.SellerID, order.TotalAmount, order.Status, order.ShippingAddress,
		order.PaymentMethod, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return err
	}

	itemQuery := `
		INSERT INTO order_items (order_id, medicine_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
	`
	for _, item := range order.Items {
		if _, err := tx.ExecContext(ctx, itemQuery, order.ID, item.MedicineID, item.Quantity, item.UnitPrice); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	order := &models.Order{}
	query := `
		SELECT id, order_number, customer_id, seller_id, total_amount,
			status, shipping_address, payment_method, created_at, updated_at
		FROM orders WHERE id = $1
	`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID, &order.OrderNumber, &order.CustomerID, &order.SellerID,
		&order.TotalAmount, &order.Status, &order.ShippingAddress,
		&order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	items, err := s.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *PostgresStore) loadItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	query := `
		SELECT medicine_id, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.MedicineID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]models.Order, int, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.CustomerID != "" {
		where += " AND customer_id = " + arg(filter.CustomerID)
	}
	if filter.SellerID != "" {
		where += " AND seller_id = " + arg(filter.SellerID)
	}
	if filter.Status != "" {
		where += " AND status = " + arg(string(filter.Status))
	}
	if filter.Search != "" {
		where += " AND order_number ILIKE " + arg("%" + filter.Search + "%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// SortBy/SortOrder are whitelisted by the service before they reach the
	// store, never interpolated from raw caller input.
	query := fmt.Sprintf(`
		SELECT id, order_number, customer_id, seller_id, total_amount,
			status, shipping_address, payment_method, created_at, updated_at
		FROM orders %s ORDER BY %s %s LIMIT %s OFFSET %s`,
		where, filter.SortBy, filter.SortOrder,
		arg(filter.Limit), arg((filter.Page-1)*filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID, &order.OrderNumber, &order.CustomerID, &order.SellerID,
			&order.TotalAmount, &order.Status, &order.ShippingAddress,
			&order.PaymentMethod, &order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range orders {
		items, err := s.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, 0, err
		}
		orders[i].Items = items
	}

	return orders, total, nil
}

// UpdateStatus applies the transition only if the persisted status still
// equals from. Zero affected rows means a concurrent transition won.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, updatedAt time.Time) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := s.db.ExecContext(ctx, query, to, updatedAt, id, from)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a missing order from a lost race.
		var exists bool
		if err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)", id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}
