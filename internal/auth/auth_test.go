package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*models.User)}
}

func (m *memStore) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return &pq.Error{Code: "23505", Table: "users", Constraint: "users_email_key"}
		}
	}
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, ErrUserNotFound
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memStore) List(_ context.Context, limit, offset int) ([]models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func newTestService() (*Service, *memStore, *Tokens) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	store := newMemStore()
	tokens := NewTokens([]byte("test-secret"), time.Hour)
	return NewService(store, tokens, logger), store, tokens
}

func TestPrepareUser(t *testing.T) {
	user := &models.User{Name: " Ravi ", Email: " Ravi@Example.com "}
	require.NoError(t, PrepareUser(user, "hunter22"))

	assert.Equal(t, "Ravi", user.Name)
	assert.Equal(t, "ravi@example.com", user.Email)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.True(t, CheckPassword(user, "hunter22"))
	assert.False(t, CheckPassword(user, "wrong"))
}

func TestPrepareUserValidation(t *testing.T) {
	err := PrepareUser(&models.User{Email: "nope"}, "123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "name")
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "password")
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens([]byte("k"), time.Minute)
	token, expires, err := tokens.Issue(&models.User{ID: "u1", Email: "a@b.co", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = NewTokens([]byte("other"), time.Minute).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokens([]byte("k"), time.Minute)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = expired.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterRequest{Name: "Meera", Email: "meera@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, session.User.Role)
	assert.NotEmpty(t, session.Token)

	_, err = svc.Register(ctx, RegisterRequest{Name: "Meera", Email: "MEERA@example.com", Password: "secret1"})
	require.Error(t, err)

	_, err = svc.Login(ctx, "meera@example.com", "wrong")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Login(ctx, "unknown@example.com", "secret1")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	session, err = svc.Login(ctx, " Meera@Example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "meera@example.com", session.User.Email)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc, store, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "admin@example.com", "adminpass"))
	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "admin@example.com", "adminpass"))
	require.NoError(t, svc.EnsureAdmin(ctx, "Root", "", ""))

	assert.Len(t, store.users, 1)
	u, err := store.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, u.Role)
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *Service, *Tokens) {
	t.Helper()
	svc, store, tokens := newTestService()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewAuthenticator(tokens, store, httpapi.NewResponder(logger, true)), svc, tokens
}

func TestRequireAndRequireAdmin(t *testing.T) {
	a, svc, _ := newTestAuthenticator(t)
	ctx := context.Background()

	customer, err := svc.Register(ctx, RegisterRequest{Name: "C", Email: "c@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(ctx, "A", "a@example.com", "secret1"))
	admin, err := svc.Login(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFrom(r.Context())
		w.Write([]byte(user.ID))
	})

	tests := []struct {
		name    string
		handler http.Handler
		setup   func(r *http.Request)
		code    int
	}{
		{"no token", a.Require(ok), func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage token", a.Require(ok), func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") }, http.StatusUnauthorized},
		{"bearer token", a.Require(ok), func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+customer.Token) }, http.StatusOK},
		{"cookie token", a.Require(ok), func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: customer.Token}) }, http.StatusOK},
		{"customer on admin route", a.RequireAdmin(ok), func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+customer.Token) }, http.StatusForbidden},
		{"admin on admin route", a.RequireAdmin(ok), func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+admin.Token) }, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestOptionalLetsAnonymousThrough(t *testing.T) {
	a, _, _ := newTestAuthenticator(t)

	var sawUser bool
	h := a.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = UserFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, sawUser)
}

func TestHandlerRegisterConflict(t *testing.T) {
	svc, _, _ := newTestService()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	h := NewHandler(svc, httpapi.NewResponder(logger, true), logger, false)

	body := `{"name":"Dev","email":"dev@example.com","password":"secret1"}`

	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp httpapi.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "email", resp.Field)
}
