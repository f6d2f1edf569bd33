package catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/httpapi"
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

func parseQuery(r *http.Request) (ProductQuery, httpapi.Page) {
	page := httpapi.ParsePage(r)
	v := r.URL.Query()

	q := ProductQuery{
		CategorySlug: v.Get("category"),
		Search:       strings.TrimSpace(v.Get("q")),
		Sort:         Sort(v.Get("sort")),
		Limit:        page.Limit,
		Offset:       page.Offset(),
	}
	if b, err := strconv.ParseBool(v.Get("featured")); err == nil {
		q.Featured = &b
	}
	return q, page
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q, page := parseQuery(r)
	products, total, err := h.service.Products(r.Context(), q)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(products, total, page))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Product(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "product": p})
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "categories": categories})
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Category(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "category": c})
}

func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	q, page := parseQuery(r)
	products, total, err := h.service.AdminProducts(r.Context(), q)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(products, total, page))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpapi.Decode(r, &in); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "product": p})
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := httpapi.Decode(r, &in); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "product": p})
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Product deleted"})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := httpapi.Decode(r, &in); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), in)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusCreated, map[string]interface{}{"success": true, "category": c})
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := httpapi.Decode(r, &in); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	c, err := h.service.UpdateCategory(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "category": c})
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCategory(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Category deleted"})
}
