package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/validate"
	"github.com/jogardn/safety-storefront/pkg/models"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store  Store
	tokens *Tokens
	logger *logrus.Logger
	now    func() time.Time
}

func NewService(store Store, tokens *Tokens, logger *logrus.Logger) *Service {
	return &Service{store: store, tokens: tokens, logger: logger, now: time.Now}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Register creates a customer account and signs it in.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	user, err := s.create(ctx, req, models.RoleCustomer)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("Customer registered")

	return s.session(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetByEmail(ctx, validate.NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "login")
	}
	if !CheckPassword(user, password) {
		return nil, apperr.Unauthorized("Invalid email or password")
	}
	return s.session(user)
}

func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.GetByID(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load user")
	}
	return user, nil
}

func (s *Service) Users(ctx context.Context, limit, offset int) ([]models.User, int64, error) {
	users, total, err := s.store.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list users")
	}
	return users, total, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	_, err := s.store.GetByEmail(ctx, validate.NormalizeEmail(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return pkgerrors.Wrap(err, "look up admin")
	}

	user, err := s.create(ctx, RegisterRequest{Name: name, Email: email, Password: password}, models.RoleAdmin)
	if err != nil {
		return err
	}
	s.logger.WithField("email", user.Email).Info("Bootstrap admin created")
	return nil
}

func (s *Service) create(ctx context.Context, req RegisterRequest, role models.Role) (*models.User, error) {
	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := PrepareUser(user, req.Password); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "issue token")
	}
	return &Session{Token: token, ExpiresAt: expires, User: user}, nil
}
