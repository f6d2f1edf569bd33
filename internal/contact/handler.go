package contact

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/httpapi"
)

type Handler struct {
	service *Service
	rs      *httpapi.Responder
}

func NewHandler(service *Service, rs *httpapi.Responder) *Handler {
	return &Handler{service: service, rs: rs}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	c, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Thanks, we will get back to you soon",
		"contact": c,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := httpapi.ParsePage(r)
	contacts, total, err := h.service.List(r.Context(), r.URL.Query().Get("status"), page.Limit, page.Offset())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(contacts, total, page))
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	c, err := h.service.SetStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "contact": c})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Contact deleted"})
}
