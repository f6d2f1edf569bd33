package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jogardn/safety-storefront/pkg/models"
)

var ErrNotFound = errors.New("notification not found")

type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, audience models.Audience, userID string, limit, offset int) ([]models.Notification, int64, error)
	MarkRead(ctx context.Context, id string, audience models.Audience, userID string) error
	MarkAllRead(ctx context.Context, audience models.Audience, userID string) (int64, error)
	UnreadCount(ctx context.Context, audience models.Audience, userID string) (int64, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// audienceFilter matches admin notifications, or a single user's ones.
const audienceFilter = `audience = $1 AND ($1 = 'admin' OR user_id = $2::uuid)`

func (s *PostgresStore) Create(ctx context.Context, n *models.Notification) error {
	var data interface{}
	if len(n.Data) > 0 {
		data = []byte(n.Data)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, audience, user_id, type, title, message, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.Audience, nullable(n.UserID), n.Type, n.Title, n.Message, data, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, audience models.Audience, userID string, limit, offset int) ([]models.Notification, int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE `+audienceFilter,
		audience, nullable(userID)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audience, COALESCE(user_id::text, ''), type, title, message, data, read, created_at
		FROM notifications
		WHERE `+audienceFilter+`
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`, audience, nullable(userID), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	list := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.Audience, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		n.Data = data
		list = append(list, n)
	}
	return list, total, rows.Err()
}

func (s *PostgresStore) MarkRead(ctx context.Context, id string, audience models.Audience, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE `+audienceFilter+` AND id = $3`, audience, nullable(userID), id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, audience models.Audience, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE
		WHERE `+audienceFilter+` AND NOT read`, audience, nullable(userID))
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) UnreadCount(ctx context.Context, audience models.Audience, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE `+audienceFilter+` AND NOT read`,
		audience, nullable(userID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
