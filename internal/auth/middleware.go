package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/pkg/models"
)

const CookieName = "token"

type ctxKey int

const userKey ctxKey = iota

// Authenticator resolves the caller from a bearer token or the session
// cookie and gates routes on it.
type Authenticator struct {
	tokens *Tokens
	store  Store
	rs     *httpapi.Responder
}

func NewAuthenticator(tokens *Tokens, store Store, rs *httpapi.Responder) *Authenticator {
	return &Authenticator{tokens: tokens, store: store, rs: rs}
}

func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Resolve returns the user a token belongs to.
func (a *Authenticator) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized("Authentication required")
	}
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	user, err := a.store.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("Account no longer exists")
	}
	return user, nil
}

// Optional attaches the caller when a valid token is present and lets
// anonymous requests through untouched.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := TokenFromRequest(r); token != "" {
			if user, err := a.Resolve(r.Context(), token); err == nil {
				r = r.WithContext(WithUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Resolve(r.Context(), TokenFromRequest(r))
		if err != nil {
			a.rs.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := UserFrom(r.Context()); !ok || !user.IsAdmin() {
			a.rs.Error(w, r, apperr.Forbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (a *Authenticator) OptionalMiddleware() mux.MiddlewareFunc     { return a.Optional }
func (a *Authenticator) RequireMiddleware() mux.MiddlewareFunc      { return a.Require }
func (a *Authenticator) RequireAdminMiddleware() mux.MiddlewareFunc { return a.RequireAdmin }

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok
}

// UserID returns the caller's id or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if user, ok := UserFrom(ctx); ok {
		return user.ID
	}
	return ""
}
