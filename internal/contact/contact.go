// Package contact accepts contact form messages and lets admins triage
// them.
package contact

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/validate"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	NotifyAdmins(ctx context.Context, typ, title, message string, data interface{}) error
}

type Service struct {
	store    Store
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, logger *logrus.Logger) *Service {
	return &Service{store: store, notifier: notifier, logger: logger, now: time.Now}
}

type SubmitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (req *SubmitRequest) normalize() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = validate.NormalizeEmail(req.Email)
	req.Phone = validate.NormalizePhone(req.Phone)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	fields := apperr.Fields{}
	if err := validate.String("name", req.Name, 2, 100); err != nil {
		fields.Add("name", err.Error())
	}
	if err := validate.Email(req.Email); err != nil {
		fields.Add("email", err.Error())
	}
	if req.Phone != "" {
		if err := validate.Phone(req.Phone); err != nil {
			fields.Add("phone", err.Error())
		}
	}
	if err := validate.String("message", req.Message, 5, 5000); err != nil {
		fields.Add("message", err.Error())
	}
	return fields.Err()
}

// Submit stores the message and tells the admins. A failed notification
// does not fail the submission.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Contact, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &models.Contact{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Message:   req.Message,
		Status:    models.ContactNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"contact_id": c.ID, "email": c.Email}).Info("Contact message received")

	title := "New contact message"
	if c.Subject != "" {
		title = c.Subject
	}
	if err := s.notifier.NotifyAdmins(ctx, models.NotifyContactSubmitted, title,
		c.Name+" <"+c.Email+">", map[string]string{"contactId": c.ID}); err != nil {
		s.logger.WithError(err).WithField("contact_id", c.ID).Warn("Failed to notify admins of contact message")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]models.Contact, int64, error) {
	if status != "" && !models.ValidContactStatus(status) {
		return nil, 0, apperr.Invalid("status", "unknown contact status")
	}
	return s.store.List(ctx, status, limit, offset)
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (*models.Contact, error) {
	if !models.ValidContactStatus(status) {
		return nil, apperr.Invalid("status", "status must be one of new, read, replied, archived")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFound("contact")
	}
	c, err := s.store.SetStatus(ctx, id, status, s.now())
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("contact")
	}
	return c, err
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("contact")
	}
	err := s.store.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound("contact")
	}
	return err
}
