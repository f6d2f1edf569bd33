package notify

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/auth"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	store  Store
	rs     *httpapi.Responder
	logger *logrus.Logger
}

func NewHandler(store Store, rs *httpapi.Responder, logger *logrus.Logger) *Handler {
	return &Handler{store: store, rs: rs, logger: logger}
}

// scope picks the admin feed on admin routes and the caller's own feed
// everywhere else.
func scope(r *http.Request, admin bool) (models.Audience, string) {
	if admin {
		return models.AudienceAdmin, ""
	}
	return models.AudienceUser, auth.UserID(r.Context())
}

func (h *Handler) list(admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audience, userID := scope(r, admin)
		page := httpapi.ParsePage(r)

		items, total, err := h.store.List(r.Context(), audience, userID, page.Limit, page.Offset())
		if err != nil {
			h.rs.Error(w, r, err)
			return
		}
		unread, err := h.store.UnreadCount(r.Context(), audience, userID)
		if err != nil {
			h.rs.Error(w, r, err)
			return
		}

		h.rs.JSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"items":   items,
			"total":   total,
			"unread":  unread,
			"page":    page.Page,
			"limit":   page.Limit,
		})
	}
}

func (h *Handler) markRead(admin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		audience, userID := scope(r, admin)
		id := mux.Vars(r)["id"]
		if _, err := uuid.Parse(id); err != nil {
			h.rs.Error(w, r, apperr.NotFound("notification"))
			return
		}

		err := h.store.MarkRead(r.Context(), id, audience, userID)
		if errors.Is(err, ErrNotFound) {
			h.rs.Error(w, r, apperr.NotFound("notification"))
			return
		}
		if err != nil {
			h.rs.Error(w, r, err)
			return
		}
		h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request)     { h.list(true)(w, r) }
func (h *Handler) AdminMarkRead(w http.ResponseWriter, r *http.Request) { h.markRead(true)(w, r) }
func (h *Handler) UserList(w http.ResponseWriter, r *http.Request)      { h.list(false)(w, r) }
func (h *Handler) UserMarkRead(w http.ResponseWriter, r *http.Request)  { h.markRead(false)(w, r) }

func (h *Handler) AdminMarkAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.store.MarkAllRead(r.Context(), models.AudienceAdmin, "")
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.logger.WithField("updated", updated).Info("Admin notifications marked read")
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"updated": updated,
	})
}
