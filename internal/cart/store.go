package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jogardn/safety-storefront/pkg/models"
)

type Store interface {
	// Get returns the user's cart, or an empty one when none was saved yet.
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.Cart, error) {
	c := &models.Cart{UserID: userID, Items: []models.LineItem{}}
	var items, totals []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT items, totals, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&items, &totals, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	if err := json.Unmarshal(items, &c.Items); err != nil {
		return nil, fmt.Errorf("decode cart items: %w", err)
	}
	if err := json.Unmarshal(totals, &c.Totals); err != nil {
		return nil, fmt.Errorf("decode cart totals: %w", err)
	}
	return c, nil
}

// Save overwrites the stored cart. Concurrent writers are last-write-wins.
func (s *PostgresStore) Save(ctx context.Context, c *models.Cart) error {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	totals, err := json.Marshal(c.Totals)
	if err != nil {
		return fmt.Errorf("encode cart totals: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO carts (user_id, items, totals, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET items = EXCLUDED.items, totals = EXCLUDED.totals, updated_at = EXCLUDED.updated_at`,
		c.UserID, items, totals, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
