package content

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/pkg/models"
)

// KindPattern matches the {kind} route variable.
const KindPattern = "team|branches|posts|albums"

type Handler struct {
	service *Service
	rs      *httpapi.Responder
}

func NewHandler(service *Service, rs *httpapi.Responder) *Handler {
	return &Handler{service: service, rs: rs}
}

func kindOf(r *http.Request) models.ContentKind {
	return models.ContentKind(mux.Vars(r)["kind"])
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := httpapi.ParsePage(r)
	items, total, err := h.service.List(r.Context(), kindOf(r), page.Limit, page.Offset())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(items, total, page))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), kindOf(r), mux.Vars(r)["slug"])
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "item": item})
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	page := httpapi.ParsePage(r)
	items, total, err := h.service.AdminList(r.Context(), kindOf(r), page.Limit, page.Offset())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(items, total, page))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if err := httpapi.Decode(r, &in); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	item, err := h.service.Create(r.Context(), kindOf(r), in)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "item": item})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in ItemInput
	if err := httpapi.Decode(r, &in); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	item, err := h.service.Update(r.Context(), kindOf(r), mux.Vars(r)["id"], in)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "item": item})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), kindOf(r), mux.Vars(r)["id"]); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Deleted"})
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Settings(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": st})
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in models.Settings
	if err := httpapi.Decode(r, &in); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	st, err := h.service.UpdateSettings(r.Context(), in)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": st})
}
