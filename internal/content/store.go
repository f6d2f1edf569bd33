package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jogardn/safety-storefront/internal/database"
	"github.com/jogardn/safety-storefront/internal/slug"
	"github.com/jogardn/safety-storefront/pkg/models"
)

var ErrNotFound = errors.New("content not found")

type Store interface {
	List(ctx context.Context, kind models.ContentKind, publishedOnly bool, limit, offset int) ([]models.ContentItem, int64, error)
	GetByID(ctx context.Context, kind models.ContentKind, id string) (*models.ContentItem, error)
	GetBySlug(ctx context.Context, kind models.ContentKind, slug string) (*models.ContentItem, error)
	SlugTaken(ctx context.Context, kind models.ContentKind, slug, excludeID string) (bool, error)
	Create(ctx context.Context, item *models.ContentItem) error
	Update(ctx context.Context, item *models.ContentItem) error
	Delete(ctx context.Context, kind models.ContentKind, id string) error

	// Settings returns zero-valued settings when none were saved.
	Settings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const itemColumns = `id, kind, slug, title, position, published, data, created_at, updated_at`

func scanItem(r interface{ Scan(...interface{}) error }) (*models.ContentItem, error) {
	var (
		item models.ContentItem
		sl   sql.NullString
		data []byte
	)
	err := r.Scan(&item.ID, &item.Kind, &sl, &item.Title, &item.Position, &item.Published, &data, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	item.Slug = sl.String
	if len(data) > 0 {
		item.Data = json.RawMessage(data)
	}
	return &item, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func slugConflict(err error) error {
	if database.IsUniqueViolation(err) && database.ConflictField(err) == "slug" {
		return fmt.Errorf("%w: %w", slug.ErrConflict, err)
	}
	return err
}

func (s *PostgresStore) List(ctx context.Context, kind models.ContentKind, publishedOnly bool, limit, offset int) ([]models.ContentItem, int64, error) {
	const where = `WHERE kind = $1 AND (NOT $2 OR published)`

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items `+where, kind, publishedOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", kind, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM content_items `+where+`
		ORDER BY position, created_at DESC
		LIMIT $3 OFFSET $4`, kind, publishedOnly, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	items := []models.ContentItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", kind, err)
		}
		items = append(items, *item)
	}
	return items, total, rows.Err()
}

func (s *PostgresStore) getWhere(ctx context.Context, kind models.ContentKind, where string, arg string) (*models.ContentItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM content_items WHERE kind = $1 AND `+where, kind, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	return item, nil
}

func (s *PostgresStore) GetByID(ctx context.Context, kind models.ContentKind, id string) (*models.ContentItem, error) {
	return s.getWhere(ctx, kind, `id = $2`, id)
}

func (s *PostgresStore) GetBySlug(ctx context.Context, kind models.ContentKind, slug string) (*models.ContentItem, error) {
	return s.getWhere(ctx, kind, `slug = $2`, slug)
}

func (s *PostgresStore) SlugTaken(ctx context.Context, kind models.ContentKind, slug, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM content_items WHERE kind = $1 AND slug = $2 AND ($3 = '' OR id::text <> $3))`,
		kind, slug, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("probe %s slug: %w", kind, err)
	}
	return taken, nil
}

func (s *PostgresStore) Create(ctx context.Context, item *models.ContentItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.Kind, nullable(item.Slug), item.Title, item.Position, item.Published,
		nullableJSON(item.Data), item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return slugConflict(fmt.Errorf("insert %s: %w", item.Kind, err))
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, item *models.ContentItem) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE content_items
		SET slug = $3, title = $4, position = $5, published = $6, data = $7, updated_at = $8
		WHERE id = $1 AND kind = $2`,
		item.ID, item.Kind, nullable(item.Slug), item.Title, item.Position, item.Published,
		nullableJSON(item.Data), item.UpdatedAt)
	if err != nil {
		return slugConflict(fmt.Errorf("update %s: %w", item.Kind, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, kind models.ContentKind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1 AND kind = $2`, id, kind)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Settings(ctx context.Context) (*models.Settings, error) {
	var (
		doc       []byte
		updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, `SELECT document, updated_at FROM settings WHERE id = 1`).Scan(&doc, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	var st models.Settings
	if err := json.Unmarshal(doc, &st); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	st.UpdatedAt = updatedAt
	return &st, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, st *models.Settings) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (id, document, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`,
		doc, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
