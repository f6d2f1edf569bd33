package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/cache"
	"github.com/jogardn/safety-storefront/internal/slug"
	"github.com/jogardn/safety-storefront/internal/validate"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (s *Service) categoriesKey() string {
	return s.cache.Key("categories", "all")
}

func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return cache.Fetch(ctx, s.cache, s.categoriesKey(), s.store.ListCategories)
}

func (s *Service) Category(ctx context.Context, slug string) (*models.Category, error) {
	c, err := s.store.CategoryBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "category")
	}
	return c, nil
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.String("name", in.Name, 2, 100); err != nil {
		return nil, apperr.Invalid("name", err.Error())
	}

	now := s.now()
	c := &models.Category{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := slug.Insert(ctx, c.Name, "", s.store.CategorySlugTaken, func(candidate string) error {
		c.Slug = candidate
		return s.store.CreateCategory(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, s.categoriesKey())
	s.logger.WithFields(logrus.Fields{"category_id": c.ID, "slug": c.Slug}).Info("Category created")
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.String("name", in.Name, 2, 100); err != nil {
		return nil, apperr.Invalid("name", err.Error())
	}
	if err := lookupID(id, "category"); err != nil {
		return nil, err
	}
	c, err := s.store.CategoryByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "category")
	}

	renamed := c.Name != in.Name
	c.Name = in.Name
	c.Description = in.Description
	c.Image = in.Image
	c.UpdatedAt = s.now()

	if renamed {
		_, err = slug.Insert(ctx, c.Name, c.ID, s.store.CategorySlugTaken, func(candidate string) error {
			c.Slug = candidate
			return s.store.UpdateCategory(ctx, c)
		})
	} else {
		err = s.store.UpdateCategory(ctx, c)
	}
	if err != nil {
		return nil, notFound(err, "category")
	}

	s.cache.Invalidate(ctx, s.categoriesKey())
	return c, nil
}

// DeleteCategory leaves its products uncategorised.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := lookupID(id, "category"); err != nil {
		return err
	}
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return notFound(err, "category")
	}
	s.cache.Invalidate(ctx, s.categoriesKey())
	s.logger.WithField("category_id", id).Info("Category deleted")
	return nil
}
