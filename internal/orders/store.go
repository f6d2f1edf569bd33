package orders

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jogardn/safety-storefront/internal/database"
	"github.com/jogardn/safety-storefront/pkg/models"
)

var ErrNotFound = errors.New("order not found")

// Filter narrows the admin order listing. Zero values match everything.
type Filter struct {
	Status models.OrderStatus
	UserID string
}

type Store interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	List(ctx context.Context, filter Filter, limit, offset int) ([]models.Order, int64, error)
	// Update loads the order under a row lock, lets fn modify it and writes
	// it back in the same transaction.
	Update(ctx context.Context, id string, fn func(*models.Order) error) (*models.Order, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orderColumns = `id, order_no, user_id, guest_info, items, totals, payment_method, payment_status,
	shipping_address, billing_address, notes, status, status_history, created_at, updated_at`

type row interface {
	Scan(dest ...interface{}) error
}

func scanOrder(r row) (*models.Order, error) {
	var (
		o                                     models.Order
		userID                                sql.NullString
		guest, items, totals, ship, bill, his []byte
	)
	err := r.Scan(&o.ID, &o.OrderNo, &userID, &guest, &items, &totals, &o.PaymentMethod, &o.PaymentStatus,
		&ship, &bill, &o.Notes, &o.Status, &his, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.UserID = userID.String

	if len(guest) > 0 && string(guest) != "null" {
		o.GuestInfo = &models.GuestInfo{}
		if err := json.Unmarshal(guest, o.GuestInfo); err != nil {
			return nil, fmt.Errorf("decode guest_info: %w", err)
		}
	}
	for _, f := range []struct {
		name string
		raw  []byte
		dst  interface{}
	}{
		{"items", items, &o.Items},
		{"totals", totals, &o.Totals},
		{"shipping_address", ship, &o.ShippingAddress},
		{"billing_address", bill, &o.BillingAddress},
		{"status_history", his, &o.StatusHistory},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	return &o, nil
}

// documents encodes the JSONB columns in column order.
func documents(o *models.Order) ([]interface{}, error) {
	var guest interface{}
	if o.GuestInfo != nil {
		raw, err := json.Marshal(o.GuestInfo)
		if err != nil {
			return nil, err
		}
		guest = raw
	}

	out := []interface{}{guest}
	for _, v := range []interface{}{o.Items, o.Totals, o.ShippingAddress, o.BillingAddress, o.StatusHistory} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *PostgresStore) Create(ctx context.Context, o *models.Order) error {
	docs, err := documents(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.OrderNo, nullable(o.UserID), docs[0], docs[1], docs[2], o.PaymentMethod, o.PaymentStatus,
		docs[3], docs[4], o.Notes, o.Status, docs[5], o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) get(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}, where string, arg interface{}) (*models.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return s.get(ctx, s.db, `id = $1`, id)
}

func (s *PostgresStore) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	return s.get(ctx, s.db, `order_no = $1`, orderNo)
}

func (s *PostgresStore) List(ctx context.Context, f Filter, limit, offset int) ([]models.Order, int64, error) {
	const where = `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR user_id::text = $2)`

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, f.Status, f.UserID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders `+where+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, f.Status, f.UserID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, id string, fn func(*models.Order) error) (*models.Order, error) {
	var updated *models.Order
	err := database.WithTransaction(ctx, s.db, func(tx *sql.Tx) error {
		o, err := s.get(ctx, tx, `id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		if err := fn(o); err != nil {
			return err
		}

		docs, err := documents(o)
		if err != nil {
			return fmt.Errorf("encode order: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET payment_status = $2, status = $3, status_history = $4, notes = $5, updated_at = $6
			WHERE id = $1`,
			o.ID, o.PaymentStatus, o.Status, docs[5], o.Notes, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		updated = o
		return nil
	})
	return updated, err
}
