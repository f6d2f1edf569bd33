package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jogardn/safety-storefront/internal/database"
	"github.com/jogardn/safety-storefront/internal/slug"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/lib/pq"
)

var ErrNotFound = errors.New("not found")

type Sort string

const (
	SortNewest    Sort = "newest"
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortName      Sort = "name"
)

var orderBy = map[Sort]string{
	SortNewest:    "created_at DESC",
	SortPriceAsc:  "price ASC, created_at DESC",
	SortPriceDesc: "price DESC, created_at DESC",
	SortName:      "name ASC",
}

type ProductQuery struct {
	CategorySlug    string
	Search          string
	Featured        *bool
	Sort            Sort
	IncludeInactive bool
	Limit           int
	Offset          int
}

type Store interface {
	ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error)
	ProductByID(ctx context.Context, id string) (*models.Product, error)
	ProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	ProductSlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	CategoryByID(ctx context.Context, id string) (*models.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*models.Category, error)
	CategorySlugTaken(ctx context.Context, slug, excludeID string) (bool, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	UpdateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id string) error
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// slugConflict marks a unique violation on the slug column so slug.Insert
// probes again. Other violations pass through untouched.
func slugConflict(err error) error {
	if database.IsUniqueViolation(err) && database.ConflictField(err) == "slug" {
		return fmt.Errorf("%w: %w", slug.ErrConflict, err)
	}
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const productColumns = `id, name, slug, sku, description, price, mrp, stock, category_id, brand,
	images, specs, featured, active, created_at, updated_at`

func scanProduct(r interface{ Scan(...interface{}) error }) (*models.Product, error) {
	var (
		p               models.Product
		sku, categoryID sql.NullString
		specs           []byte
	)
	err := r.Scan(&p.ID, &p.Name, &p.Slug, &sku, &p.Description, &p.Price, &p.MRP, &p.Stock, &categoryID, &p.Brand,
		pq.Array(&p.Images), &specs, &p.Featured, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.SKU = sku.String
	p.CategoryID = categoryID.String
	if p.Images == nil {
		p.Images = []string{}
	}
	if err := json.Unmarshal(specs, &p.Specs); err != nil {
		return nil, fmt.Errorf("decode specs: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !q.IncludeInactive {
		conds = append(conds, "active")
	}
	if q.CategorySlug != "" {
		conds = append(conds, "category_id = (SELECT id FROM categories WHERE slug = "+arg(q.CategorySlug)+")")
	}
	if q.Search != "" {
		p := arg("%" + q.Search + "%")
		conds = append(conds, "(name ILIKE "+p+" OR description ILIKE "+p+" OR brand ILIKE "+p+")")
	}
	if q.Featured != nil {
		conds = append(conds, "featured = "+arg(*q.Featured))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order, ok := orderBy[q.Sort]
	if !ok {
		order = orderBy[SortNewest]
	}
	query := `SELECT ` + productColumns + ` FROM products ` + where +
		` ORDER BY ` + order + ` LIMIT ` + arg(q.Limit) + ` OFFSET ` + arg(q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (s *PostgresStore) productWhere(ctx context.Context, where string, arg interface{}) (*models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.productWhere(ctx, `id = $1`, id)
}

func (s *PostgresStore) ProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.productWhere(ctx, `slug = $1`, slug)
}

func (s *PostgresStore) ProductSlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	return s.slugTaken(ctx, "products", slug, excludeID)
}

func (s *PostgresStore) slugTaken(ctx context.Context, table, slug, excludeID string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE slug = $1 AND ($2 = '' OR id::text <> $2))`,
		slug, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("probe %s slug: %w", table, err)
	}
	return taken, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p *models.Product) error {
	specs, err := json.Marshal(p.Specs)
	if err != nil {
		return fmt.Errorf("encode specs: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		p.ID, p.Name, p.Slug, nullable(p.SKU), p.Description, p.Price, p.MRP, p.Stock, nullable(p.CategoryID), p.Brand,
		pq.Array(p.Images), specs, p.Featured, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return slugConflict(fmt.Errorf("insert product: %w", err))
	}
	return nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	specs, err := json.Marshal(p.Specs)
	if err != nil {
		return fmt.Errorf("encode specs: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, slug = $3, sku = $4, description = $5, price = $6, mrp = $7, stock = $8,
		    category_id = $9, brand = $10, images = $11, specs = $12, featured = $13, active = $14, updated_at = $15
		WHERE id = $1`,
		p.ID, p.Name, p.Slug, nullable(p.SKU), p.Description, p.Price, p.MRP, p.Stock,
		nullable(p.CategoryID), p.Brand, pq.Array(p.Images), specs, p.Featured, p.Active, p.UpdatedAt)
	if err != nil {
		return slugConflict(fmt.Errorf("update product: %w", err))
	}
	return expectOne(res)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const categoryColumns = `id, name, slug, description, image, created_at, updated_at`

func scanCategory(r interface{ Scan(...interface{}) error }) (*models.Category, error) {
	var c models.Category
	if err := r.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Image, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}

func (s *PostgresStore) categoryWhere(ctx context.Context, where string, arg interface{}) (*models.Category, error) {
	c, err := scanCategory(s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) CategoryByID(ctx context.Context, id string) (*models.Category, error) {
	return s.categoryWhere(ctx, `id = $1`, id)
}

func (s *PostgresStore) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return s.categoryWhere(ctx, `slug = $1`, slug)
}

func (s *PostgresStore) CategorySlugTaken(ctx context.Context, slug, excludeID string) (bool, error) {
	return s.slugTaken(ctx, "categories", slug, excludeID)
}

func (s *PostgresStore) CreateCategory(ctx context.Context, c *models.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Slug, c.Description, c.Image, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return slugConflict(fmt.Errorf("insert category: %w", err))
	}
	return nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, c *models.Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $2, slug = $3, description = $4, image = $5, updated_at = $6
		WHERE id = $1`,
		c.ID, c.Name, c.Slug, c.Description, c.Image, c.UpdatedAt)
	if err != nil {
		return slugConflict(fmt.Errorf("update category: %w", err))
	}
	return expectOne(res)
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOne(res)
}
