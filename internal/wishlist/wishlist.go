// Package wishlist stores the products a customer saved for later.
package wishlist

import (
	"context"
	"time"

	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type Store interface {
	List(ctx context.Context, userID string) ([]models.WishlistItem, error)
	// Add is a no-op when the product is already saved.
	Add(ctx context.Context, userID, productID string, at time.Time) error
	Remove(ctx context.Context, userID, productID string) (bool, error)
	Contains(ctx context.Context, userID, productID string) (bool, error)
}

type Catalog interface {
	ProductByID(ctx context.Context, id string) (*models.Product, error)
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

func (s *Service) List(ctx context.Context, userID string) ([]models.WishlistItem, error) {
	return s.store.List(ctx, userID)
}

func (s *Service) Add(ctx context.Context, userID, productID string) ([]models.WishlistItem, error) {
	if _, err := s.catalog.ProductByID(ctx, productID); err != nil {
		return nil, err
	}
	if err := s.store.Add(ctx, userID, productID, s.now()); err != nil {
		return nil, err
	}
	return s.store.List(ctx, userID)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) ([]models.WishlistItem, error) {
	removed, err := s.store.Remove(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, apperr.NotFound("wishlist item")
	}
	return s.store.List(ctx, userID)
}

// Toggle removes the product when saved and adds it otherwise. It reports
// whether the product is saved afterwards.
func (s *Service) Toggle(ctx context.Context, userID, productID string) (bool, []models.WishlistItem, error) {
	saved, err := s.store.Contains(ctx, userID, productID)
	if err != nil {
		return false, nil, err
	}

	var items []models.WishlistItem
	if saved {
		items, err = s.Remove(ctx, userID, productID)
	} else {
		items, err = s.Add(ctx, userID, productID)
	}
	if err != nil {
		return false, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"product_id": productID,
		"saved":      !saved,
	}).Debug("Wishlist toggled")
	return !saved, items, nil
}
