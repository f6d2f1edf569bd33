package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jogardn/safety-storefront/internal/auth"
	"github.com/jogardn/safety-storefront/internal/cart"
	"github.com/jogardn/safety-storefront/internal/catalog"
	"github.com/jogardn/safety-storefront/internal/contact"
	"github.com/jogardn/safety-storefront/internal/content"
	"github.com/jogardn/safety-storefront/internal/httpapi"
	"github.com/jogardn/safety-storefront/internal/notify"
	"github.com/jogardn/safety-storefront/internal/orders"
	"github.com/jogardn/safety-storefront/internal/wishlist"
	"github.com/sirupsen/logrus"
)

type handlers struct {
	auth     *auth.Handler
	catalog  *catalog.Handler
	content  *content.Handler
	cart     *cart.Handler
	wishlist *wishlist.Handler
	orders   *orders.Handler
	contact  *contact.Handler
	notify   *notify.Handler
	hub      *notify.Hub
	health   http.HandlerFunc
}

const kind = "/{kind:" + content.KindPattern + "}"

func newRouter(h handlers, authn *auth.Authenticator, rs *httpapi.Responder, logger *logrus.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(httpapi.RequestIDMiddleware)
	router.Use(httpapi.LoggingMiddleware(logger))
	router.Use(httpapi.RecoverMiddleware(rs))

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/ws", h.hub.HandleWebSocket)

	api := router.PathPrefix("/api").Subrouter()

	// Registered ahead of the optional-auth routes so /orders/mine is not
	// taken for an order number.
	customer := api.NewRoute().Subrouter()
	customer.Use(authn.RequireMiddleware())
	customer.HandleFunc("/auth/me", h.auth.Me).Methods(http.MethodGet)
	customer.HandleFunc("/orders/mine", h.orders.MyOrders).Methods(http.MethodGet)
	customer.HandleFunc("/cart", h.cart.Get).Methods(http.MethodGet)
	customer.HandleFunc("/cart", h.cart.Clear).Methods(http.MethodDelete)
	customer.HandleFunc("/cart/add", h.cart.Add).Methods(http.MethodPost)
	customer.HandleFunc("/cart/merge", h.cart.Merge).Methods(http.MethodPost)
	customer.HandleFunc("/cart/{productId}", h.cart.Update).Methods(http.MethodPut)
	customer.HandleFunc("/cart/{productId}", h.cart.Remove).Methods(http.MethodDelete)
	customer.HandleFunc("/wishlist", h.wishlist.List).Methods(http.MethodGet)
	customer.HandleFunc("/wishlist/{productId}", h.wishlist.Add).Methods(http.MethodPost)
	customer.HandleFunc("/wishlist/{productId}", h.wishlist.Remove).Methods(http.MethodDelete)
	customer.HandleFunc("/wishlist/{productId}/toggle", h.wishlist.Toggle).Methods(http.MethodPost)
	customer.HandleFunc("/notifications", h.notify.UserList).Methods(http.MethodGet)
	customer.HandleFunc("/notifications/{id}/read", h.notify.UserMarkRead).Methods(http.MethodPut)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(authn.RequireAdminMiddleware())
	admin.HandleFunc("/products", h.catalog.AdminListProducts).Methods(http.MethodGet)
	admin.HandleFunc("/products", h.catalog.CreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}", h.catalog.UpdateProduct).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}", h.catalog.DeleteProduct).Methods(http.MethodDelete)
	admin.HandleFunc("/categories", h.catalog.ListCategories).Methods(http.MethodGet)
	admin.HandleFunc("/categories", h.catalog.CreateCategory).Methods(http.MethodPost)
	admin.HandleFunc("/categories/{id}", h.catalog.UpdateCategory).Methods(http.MethodPut)
	admin.HandleFunc("/categories/{id}", h.catalog.DeleteCategory).Methods(http.MethodDelete)
	admin.HandleFunc(kind, h.content.AdminList).Methods(http.MethodGet)
	admin.HandleFunc(kind, h.content.Create).Methods(http.MethodPost)
	admin.HandleFunc(kind+"/{id}", h.content.Update).Methods(http.MethodPut)
	admin.HandleFunc(kind+"/{id}", h.content.Delete).Methods(http.MethodDelete)
	admin.HandleFunc("/settings", h.content.UpdateSettings).Methods(http.MethodPut)
	admin.HandleFunc("/orders", h.orders.AdminList).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", h.orders.AdminGet).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}/status", h.orders.UpdateStatus).Methods(http.MethodPut)
	admin.HandleFunc("/contacts", h.contact.List).Methods(http.MethodGet)
	admin.HandleFunc("/contacts/{id}/status", h.contact.SetStatus).Methods(http.MethodPut)
	admin.HandleFunc("/contacts/{id}", h.contact.Delete).Methods(http.MethodDelete)
	admin.HandleFunc("/notifications", h.notify.AdminList).Methods(http.MethodGet)
	admin.HandleFunc("/notifications/read-all", h.notify.AdminMarkAllRead).Methods(http.MethodPut)
	admin.HandleFunc("/notifications/{id}/read", h.notify.AdminMarkRead).Methods(http.MethodPut)
	admin.HandleFunc("/users", h.auth.ListUsers).Methods(http.MethodGet)

	public := api.NewRoute().Subrouter()
	public.Use(authn.OptionalMiddleware())
	public.HandleFunc("/auth/register", h.auth.Register).Methods(http.MethodPost)
	public.HandleFunc("/auth/login", h.auth.Login).Methods(http.MethodPost)
	public.HandleFunc("/auth/logout", h.auth.Logout).Methods(http.MethodPost)
	public.HandleFunc("/products", h.catalog.ListProducts).Methods(http.MethodGet)
	public.HandleFunc("/products/{slug}", h.catalog.GetProduct).Methods(http.MethodGet)
	public.HandleFunc("/categories", h.catalog.ListCategories).Methods(http.MethodGet)
	public.HandleFunc("/categories/{slug}", h.catalog.GetCategory).Methods(http.MethodGet)
	public.HandleFunc(kind, h.content.List).Methods(http.MethodGet)
	public.HandleFunc("/{kind:posts|albums}/{slug}", h.content.Get).Methods(http.MethodGet)
	public.HandleFunc("/settings", h.content.GetSettings).Methods(http.MethodGet)
	public.HandleFunc("/contact", h.contact.Submit).Methods(http.MethodPost)
	public.HandleFunc("/orders", h.orders.CreateOrder).Methods(http.MethodPost)
	public.HandleFunc("/orders/{orderNo}", h.orders.GetOrder).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Route not found"})
	})

	return router
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
