package orders

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

func callerFrom(r *http.Request) Caller {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		return Caller{}
	}
	return Caller{UserID: user.ID, Admin: user.IsAdmin()}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := httpapi.Decode(r, &req); err != nil {
		h.logger.WithError(err).Error("Failed to decode order request")
		h.rs.Error(w, r, err)
		return
	}

	order, err := h.service.Place(r.Context(), callerFrom(r), req)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	h.rs.JSON(w, http.StatusCreated, models.OrderResponse{
		Success: true,
		Message: "Order placed",
		Order:   order,
	})
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	order, err := h.service.Lookup(r.Context(), callerFrom(r), mux.Vars(r)["orderNo"], Credentials{
		Email: q.Get("email"),
		Phone: q.Get("phone"),
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, models.OrderResponse{Success: true, Order: order})
}

func (h *Handler) MyOrders(w http.ResponseWriter, r *http.Request) {
	page := httpapi.ParsePage(r)
	orders, total, err := h.service.Mine(r.Context(), auth.UserID(r.Context()), page.Limit, page.Offset())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(orders, total, page))
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	page := httpapi.ParsePage(r)
	orders, total, err := h.service.List(r.Context(), r.URL.Query().Get("status"), page.Limit, page.Offset())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, httpapi.NewPaged(orders, total, page))
}

func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, models.OrderResponse{Success: true, Order: order})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.OrderStatus `json:"status"`
		Note   string             `json:"note"`
	}
	if err := httpapi.Decode(r, &req); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status, req.Note)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, models.OrderResponse{
		Success: true,
		Message: "Order status updated",
		Order:   order,
	})
}
