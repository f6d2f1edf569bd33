package cart

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/auth"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/pkg/models"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
	rs      *httpapi.Responder
	logger  *logrus.Logger
}

func NewHandler(service *Service, rs *httpapi.Responder, logger *logrus.Logger) *Handler {
	return &Handler{service: service, rs: rs, logger: logger}
}

type response struct {
	Success bool         `json:"success"`
	Cart    *models.Cart `json:"cart"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, c *models.Cart, err error) {
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, response{Success: true, Cart: c})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), auth.UserID(r.Context()))
	h.respond(w, r, c, err)
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req Line
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	c, err := h.service.Add(r.Context(), auth.UserID(r.Context()), req.ProductID, req.Qty)
	h.respond(w, r, c, err)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Qty int `json:"qty"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	c, err := h.service.Update(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["productId"], req.Qty)
	h.respond(w, r, c, err)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Remove(r.Context(), auth.UserID(r.Context()), mux.Vars(r)["productId"])
	h.respond(w, r, c, err)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Clear(r.Context(), auth.UserID(r.Context()))
	h.respond(w, r, c, err)
}

func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []Line `json:"items"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	c, err := h.service.Merge(r.Context(), auth.UserID(r.Context()), req.Items)
	h.respond(w, r, c, err)
}
