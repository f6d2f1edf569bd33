// Package cart keeps one server-side cart per customer. Every mutation
// recomputes the totals from the full item list.
package cart

import (
	"context"
	"time"

	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/pricing"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

// Catalog resolves a product for a price snapshot. It returns an
// apperr NotFound error for unknown or inactive products.
type Catalog interface {
	ProductByID(ctx context.Context, id string) (*models.Product, error)
}

// Line is a client-held cart entry sent on merge.
type Line struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

type Service struct {
	store   Store
	catalog Catalog
	logger  *logrus.Logger
	now     func() time.Time
}

func NewService(store Store, catalog Catalog, logger *logrus.Logger) *Service {
	return &Service{store: store, catalog: catalog, logger: logger, now: time.Now}
}

func (s *Service) Get(ctx context.Context, userID string) (*models.Cart, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.Totals = pricing.Compute(c.Items)
	return c, nil
}

// Add puts qty units of the product in the cart. A qty of zero means one.
func (s *Service) Add(ctx context.Context, userID, productID string, qty int) (*models.Cart, error) {
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, apperr.Invalid("qty", "qty must be positive")
	}

	product, err := s.catalog.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, func(c *models.Cart) error {
		addLine(c, product, qty)
		return nil
	})
}

func (s *Service) Update(ctx context.Context, userID, productID string, qty int) (*models.Cart, error) {
	if qty <= 0 {
		return nil, apperr.Invalid("qty", "qty must be positive")
	}
	return s.mutate(ctx, userID, func(c *models.Cart) error {
		i := indexOf(c.Items, productID)
		if i < 0 {
			return apperr.NotFound("cart item")
		}
		c.Items[i].Qty = qty
		return nil
	})
}

func (s *Service) Remove(ctx context.Context, userID, productID string) (*models.Cart, error) {
	return s.mutate(ctx, userID, func(c *models.Cart) error {
		i := indexOf(c.Items, productID)
		if i < 0 {
			return apperr.NotFound("cart item")
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID string) (*models.Cart, error) {
	return s.mutate(ctx, userID, func(c *models.Cart) error {
		c.Items = []models.LineItem{}
		return nil
	})
}

// Merge folds a cart the client kept while anonymous into the stored one,
// summing quantities per product. Unknown products are skipped.
func (s *Service) Merge(ctx context.Context, userID string, lines []Line) (*models.Cart, error) {
	for _, l := range lines {
		if l.Qty <= 0 {
			return nil, apperr.Invalid("items", "every item needs a positive qty")
		}
	}

	products := make(map[string]*models.Product, len(lines))
	for _, l := range lines {
		if _, seen := products[l.ProductID]; seen {
			continue
		}
		p, err := s.catalog.ProductByID(ctx, l.ProductID)
		if apperr.KindOf(err) == apperr.KindNotFound {
			s.logger.WithField("product_id", l.ProductID).Debug("Skipping unknown product on cart merge")
			products[l.ProductID] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		products[l.ProductID] = p
	}

	return s.mutate(ctx, userID, func(c *models.Cart) error {
		for _, l := range lines {
			if p := products[l.ProductID]; p != nil {
				addLine(c, p, l.Qty)
			}
		}
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(*models.Cart) error) (*models.Cart, error) {
	c, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}

	c.UserID = userID
	c.Totals = pricing.Compute(c.Items)
	c.UpdatedAt = s.now()

	if err := s.store.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"items_count": len(c.Items),
		"grand_total": c.Totals.Grand,
	}).Debug("Cart updated")
	return c, nil
}

func addLine(c *models.Cart, p *models.Product, qty int) {
	if i := indexOf(c.Items, p.ID); i >= 0 {
		c.Items[i].Qty += qty
		return
	}
	c.Items = append(c.Items, models.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Image:     p.PrimaryImage(),
		Price:     p.Price,
		Qty:       qty,
	})
}

func indexOf(items []models.LineItem, productID string) int {
	for i, item := range items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
