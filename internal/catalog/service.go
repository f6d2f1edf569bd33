// Package catalog serves products and categories to the storefront and
// lets admins maintain them.
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/cache"
	"github.com/jogardn/safety-storefront/internal/slug"
	"github.com/jogardn/safety-storefront/internal/validate"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store  Store
	cache  *cache.Loader
	logger *logrus.Logger
	now    func() time.Time
}

func NewService(store Store, loader *cache.Loader, logger *logrus.Logger) *Service {
	return &Service{store: store, cache: loader, logger: logger, now: time.Now}
}

// lookupID rejects ids that cannot exist before they reach a uuid column.
func lookupID(id, what string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound(what)
	}
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(what)
	}
	return err
}

type ProductInput struct {
	Name        string            `json:"name"`
	SKU         string            `json:"sku"`
	Description string            `json:"description"`
	Price       float64           `json:"price"`
	MRP         float64           `json:"mrp"`
	Stock       int               `json:"stock"`
	CategoryID  string            `json:"categoryId"`
	Brand       string            `json:"brand"`
	Images      []string          `json:"images"`
	Specs       map[string]string `json:"specs"`
	Featured    bool              `json:"featured"`
	Active      *bool             `json:"active"`
}

func (in *ProductInput) validate() error {
	fields := apperr.Fields{}
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if err := validate.String("name", in.Name, 2, 200); err != nil {
		fields.Add("name", err.Error())
	}
	if in.Price < 0 {
		fields.Add("price", "price cannot be negative")
	}
	if in.MRP < 0 {
		fields.Add("mrp", "mrp cannot be negative")
	}
	if in.Stock < 0 {
		fields.Add("stock", "stock cannot be negative")
	}
	return fields.Err()
}

func (in *ProductInput) apply(p *models.Product) {
	p.Name = in.Name
	p.SKU = in.SKU
	p.Description = in.Description
	p.Price = in.Price
	p.MRP = in.MRP
	p.Stock = in.Stock
	p.CategoryID = in.CategoryID
	p.Brand = in.Brand
	p.Images = in.Images
	if p.Images == nil {
		p.Images = []string{}
	}
	p.Specs = in.Specs
	if p.Specs == nil {
		p.Specs = map[string]string{}
	}
	p.Featured = in.Featured
	if in.Active != nil {
		p.Active = *in.Active
	}
}

func (s *Service) productKey(slug string) string {
	return s.cache.Key("product", slug)
}

// Products lists active products for the storefront.
func (s *Service) Products(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	q.IncludeInactive = false
	return s.store.ListProducts(ctx, q)
}

func (s *Service) AdminProducts(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	q.IncludeInactive = true
	return s.store.ListProducts(ctx, q)
}

func (s *Service) Product(ctx context.Context, slug string) (*models.Product, error) {
	p, err := cache.Fetch(ctx, s.cache, s.productKey(slug), func(ctx context.Context) (*models.Product, error) {
		return s.store.ProductBySlug(ctx, slug)
	})
	if err != nil {
		return nil, notFound(err, "product")
	}
	if !p.Active {
		return nil, apperr.NotFound("product")
	}
	return p, nil
}

// ProductByID resolves an active product for carts and wishlists.
func (s *Service) ProductByID(ctx context.Context, id string) (*models.Product, error) {
	if err := lookupID(id, "product"); err != nil {
		return nil, err
	}
	p, err := s.store.ProductByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if !p.Active {
		return nil, apperr.NotFound("product")
	}
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	now := s.now()
	p := &models.Product{ID: uuid.NewString(), Active: true, CreatedAt: now, UpdatedAt: now}
	in.apply(p)

	_, err := slug.Insert(ctx, p.Name, "", s.store.ProductSlugTaken, func(candidate string) error {
		p.Slug = candidate
		return s.store.CreateProduct(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"product_id": p.ID, "slug": p.Slug}).Info("Product created")
	return p, nil
}

// UpdateProduct replaces the product's fields. The slug is regenerated
// only when the name changes.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := lookupID(id, "product"); err != nil {
		return nil, err
	}
	p, err := s.store.ProductByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	if err := s.checkCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	oldSlug := p.Slug
	renamed := p.Name != in.Name
	in.apply(p)
	p.UpdatedAt = s.now()

	if renamed {
		_, err = slug.Insert(ctx, p.Name, p.ID, s.store.ProductSlugTaken, func(candidate string) error {
			p.Slug = candidate
			return s.store.UpdateProduct(ctx, p)
		})
	} else {
		err = s.store.UpdateProduct(ctx, p)
	}
	if err != nil {
		return nil, notFound(err, "product")
	}

	s.cache.Invalidate(ctx, s.productKey(oldSlug), s.productKey(p.Slug))
	s.logger.WithFields(logrus.Fields{"product_id": p.ID, "slug": p.Slug}).Info("Product updated")
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := lookupID(id, "product"); err != nil {
		return err
	}
	p, err := s.store.ProductByID(ctx, id)
	if err != nil {
		return notFound(err, "product")
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return notFound(err, "product")
	}
	s.cache.Invalidate(ctx, s.productKey(p.Slug))
	s.logger.WithField("product_id", id).Info("Product deleted")
	return nil
}

func (s *Service) checkCategory(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if lookupID(id, "category") != nil {
		return apperr.Invalid("categoryId", "unknown category")
	}
	if _, err := s.store.CategoryByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.Invalid("categoryId", "unknown category")
		}
		return err
	}
	return nil
}
