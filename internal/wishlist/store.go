package wishlist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.product_id, w.added_at,
		       p.name, p.slug, p.price, p.mrp, p.stock, p.images, p.specs, p.featured, p.active
		FROM wishlists w
		JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1
		ORDER BY w.added_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var (
			item  models.WishlistItem
			p     models.Product
			specs []byte
		)
		err := rows.Scan(&item.ProductID, &item.AddedAt,
			&p.Name, &p.Slug, &p.Price, &p.MRP, &p.Stock, pq.Array(&p.Images), &specs, &p.Featured, &p.Active)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		if err := json.Unmarshal(specs, &p.Specs); err != nil {
			return nil, fmt.Errorf("decode specs: %w", err)
		}
		p.ID = item.ProductID
		item.Product = &p
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Add(ctx context.Context, userID, productID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wishlists (user_id, product_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO NOTHING`, userID, productID, at)
	if err != nil {
		return fmt.Errorf("add wishlist item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, userID, productID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove wishlist item: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *PostgresStore) Contains(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM wishlists WHERE user_id = $1 AND product_id = $2)`,
		userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}
