package auth

import (
	"net/http"
	"time"

	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service      *Service
	rs           *httpapi.Responder
	logger       *logrus.Logger
	cookieSecure bool
}

func NewHandler(service *Service, rs *httpapi.Responder, logger *logrus.Logger, cookieSecure bool) *Handler {
	return &Handler{service: service, rs: rs, logger: logger, cookieSecure: cookieSecure}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	session, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.setCookie(w, session.Token, session.ExpiresAt)
	h.rs.JSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"token":   session.Token,
		"user":    session.User,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.logger.WithField("user_id", session.User.ID).Info("User logged in")

	h.setCookie(w, session.Token, session.ExpiresAt)
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   session.Token,
		"user":    session.User,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setCookie(w, "", time.Unix(0, 0))
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out",
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := httpapi.ParsePage(r)
	users, total, err := h.service.Users(r.Context(), page.Limit, page.Offset())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(users, total, page))
}

func (h *Handler) setCookie(w http.ResponseWriter, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
