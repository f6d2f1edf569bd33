package wishlist

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/auth"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/pkg/models"
)

type Handler struct {
	service *Service
	rs      *httpapi.Responder
}

func NewHandler(service *Service, rs *httpapi.Responder) *Handler {
	return &Handler{service: service, rs: rs}
}

type response struct {
	Success bool                  `json:"success"`
	Saved   *bool                 `json:"saved,omitempty"`
	Items   []models.WishlistItem `json:"items"`
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, items []models.WishlistItem, err error) {
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, response{Success: true, Items: items})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), auth.UserID(r.Context()))
	h.write(w, r, items, err)
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Add(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["productId"])
	h.write(w, r, items, err)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Remove(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["productId"])
	h.write(w, r, items, err)
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	saved, items, err := h.service.Toggle(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["productId"])
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, response{Success: true, Saved: &saved, Items: items})
}
