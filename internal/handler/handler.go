// Package handler exposes the HTTP surface: menu browsing, order placement,
// staff status updates and the payment provider webhook.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zapmenu/zapmenu/internal/domain/menu"
	"github.com/zapmenu/zapmenu/internal/domain/order"
	"github.com/zapmenu/zapmenu/internal/domain/payment"
	"github.com/zapmenu/zapmenu/internal/domain/restaurant"
	"github.com/zapmenu/zapmenu/internal/notification"
)

// Handler wires the domain services to their HTTP endpoints.
type Handler struct {
	restaurants restaurant.Repository
	menus       menu.Repository
	orders      order.Repository
	orderSvc    *order.Service
	reconciler  *payment.Reconciler
	notifier    notification.Publisher

	// webhookToken is the shared secret the payment provider echoes back in
	// its access-token header.
	webhookToken []byte
}

// New constructs a Handler with the required domain dependencies.
func New(
	restaurants restaurant.Repository,
	menus menu.Repository,
	orders order.Repository,
	orderSvc *order.Service,
	reconciler *payment.Reconciler,
	notifier notification.Publisher,
	webhookToken []byte,
) *Handler {
	return &Handler{
		restaurants:  restaurants,
		menus:        menus,
		orders:       orders,
		orderSvc:     orderSvc,
		reconciler:   reconciler,
		notifier:     notifier,
		webhookToken: webhookToken,
	}
}

// Routes registers all API endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/restaurants/{restaurantID}/menu", h.GetMenu)
	r.Post("/orders", h.PlaceOrder)
	r.Patch("/orders/{orderID}/status", h.UpdateOrderStatus)
	r.Post("/webhooks/payment", h.PaymentWebhook)
	return r
}

// errorBody is the JSON error envelope shared by all endpoints.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Code: status, Message: message})
}
