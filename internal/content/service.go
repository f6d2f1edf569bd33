// Package content manages the storefront's editorial collections (team,
// branches, posts, albums) and the site settings document.
package content

import (
	"context"
	"encoding/json"
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

type ItemInput struct {
	Title     string          `json:"title"`
	Position  int             `json:"position"`
	Published *bool           `json:"published"`
	Data      json.RawMessage `json:"data"`
}

func (in *ItemInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	fields := apperr.Fields{}
	if err := validate.String("title", in.Title, 1, 200); err != nil {
		fields.Add("title", err.Error())
	}
	if len(in.Data) > 0 && string(in.Data) != "null" {
		var obj map[string]interface{}
		if err := json.Unmarshal(in.Data, &obj); err != nil {
			fields.Add("data", "data must be a JSON object")
		}
	}
	return fields.Err()
}

func checkKind(kind models.ContentKind) error {
	if !kind.Valid() {
		return apperr.NotFound("collection")
	}
	return nil
}

func notFound(err error, kind models.ContentKind) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(strings.TrimSuffix(string(kind), "s"))
	}
	return err
}

// List returns the published items of kind in display order.
func (s *Service) List(ctx context.Context, kind models.ContentKind, limit, offset int) ([]models.ContentItem, int64, error) {
	if err := checkKind(kind); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, kind, true, limit, offset)
}

func (s *Service) AdminList(ctx context.Context, kind models.ContentKind, limit, offset int) ([]models.ContentItem, int64, error) {
	if err := checkKind(kind); err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, kind, false, limit, offset)
}

// Get finds a published post or album by slug.
func (s *Service) Get(ctx context.Context, kind models.ContentKind, slug string) (*models.ContentItem, error) {
	if !kind.Slugged() {
		return nil, apperr.NotFound("collection")
	}
	item, err := s.store.GetBySlug(ctx, kind, slug)
	if err != nil {
		return nil, notFound(err, kind)
	}
	if !item.Published {
		return nil, notFound(ErrNotFound, kind)
	}
	return item, nil
}

func (s *Service) exists(kind models.ContentKind) slug.ExistsFunc {
	return func(ctx context.Context, candidate, excludeID string) (bool, error) {
		return s.store.SlugTaken(ctx, kind, candidate, excludeID)
	}
}

func (s *Service) Create(ctx context.Context, kind models.ContentKind, in ItemInput) (*models.ContentItem, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	item := &models.ContentItem{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     in.Title,
		Position:  in.Position,
		Published: in.Published == nil || *in.Published,
		Data:      in.Data,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var err error
	if kind.Slugged() {
		_, err = slug.Insert(ctx, item.Title, "", s.exists(kind), func(candidate string) error {
			item.Slug = candidate
			return s.store.Create(ctx, item)
		})
	} else {
		err = s.store.Create(ctx, item)
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"kind": kind, "id": item.ID, "slug": item.Slug}).Info("Content item created")
	return item, nil
}

func (s *Service) Update(ctx context.Context, kind models.ContentKind, id string, in ItemInput) (*models.ContentItem, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, notFound(ErrNotFound, kind)
	}

	item, err := s.store.GetByID(ctx, kind, id)
	if err != nil {
		return nil, notFound(err, kind)
	}

	renamed := item.Title != in.Title
	item.Title = in.Title
	item.Position = in.Position
	if in.Published != nil {
		item.Published = *in.Published
	}
	if in.Data != nil {
		item.Data = in.Data
	}
	item.UpdatedAt = s.now()

	if kind.Slugged() && (renamed || item.Slug == "") {
		_, err = slug.Insert(ctx, item.Title, item.ID, s.exists(kind), func(candidate string) error {
			item.Slug = candidate
			return s.store.Update(ctx, item)
		})
	} else {
		err = s.store.Update(ctx, item)
	}
	if err != nil {
		return nil, notFound(err, kind)
	}
	return item, nil
}

func (s *Service) Delete(ctx context.Context, kind models.ContentKind, id string) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return notFound(ErrNotFound, kind)
	}
	if err := s.store.Delete(ctx, kind, id); err != nil {
		return notFound(err, kind)
	}
	s.logger.WithFields(logrus.Fields{"kind": kind, "id": id}).Info("Content item deleted")
	return nil
}

func (s *Service) settingsKey() string {
	return s.cache.Key("settings")
}

func (s *Service) Settings(ctx context.Context) (*models.Settings, error) {
	return cache.Fetch(ctx, s.cache, s.settingsKey(), s.store.Settings)
}

// UpdateSettings replaces the whole settings document.
func (s *Service) UpdateSettings(ctx context.Context, in models.Settings) (*models.Settings, error) {
	in.SiteName = strings.TrimSpace(in.SiteName)
	fields := apperr.Fields{}
	if in.SiteName == "" {
		fields.Add("siteName", "site name is required")
	}
	if in.ContactEmail != "" {
		in.ContactEmail = validate.NormalizeEmail(in.ContactEmail)
		if err := validate.Email(in.ContactEmail); err != nil {
			fields.Add("contactEmail", err.Error())
		}
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	in.UpdatedAt = s.now()
	if err := s.store.SaveSettings(ctx, &in); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, s.settingsKey())
	s.logger.Info("Site settings updated")
	return &in, nil
}
