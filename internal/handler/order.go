package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zapmenu/zapmenu/internal/domain/coupon"
	"github.com/zapmenu/zapmenu/internal/domain/order"
	"github.com/zapmenu/zapmenu/internal/domain/restaurant"
	"github.com/zapmenu/zapmenu/internal/notification"
	"github.com/zapmenu/zapmenu/internal/whatsapp"
)

type optionItemRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type selectedOptionRequest struct {
	GroupName string              `json:"group_name"`
	Items     []optionItemRequest `json:"items"`
}

type orderItemRequest struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Price       decimal.Decimal         `json:"price"`
	Quantity    int                     `json:"quantity"`
	Observation string                  `json:"observation"`
	Options     []selectedOptionRequest `json:"options"`
}

type placeOrderRequest struct {
	RestaurantID    string             `json:"restaurant_id"`
	CustomerName    string             `json:"customer_name"`
	CustomerPhone   string             `json:"customer_phone"`
	Items           []orderItemRequest `json:"items"`
	CouponCode      string             `json:"coupon_code"`
	Fulfillment     string             `json:"fulfillment"`
	DeliveryAddress string             `json:"delivery_address"`
	Observations    string             `json:"observations"`
	TableNumber     string             `json:"table_number"`
}

type placeOrderResponse struct {
	OrderID      string          `json:"order_id"`
	Message      string          `json:"message"`
	WhatsAppLink string          `json:"whatsapp_link"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	Persisted    bool            `json:"persisted"`
}

// PlaceOrder handles POST /orders: prices the cart, applies the coupon,
// composes the WhatsApp message and dispatches it.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rest, err := h.restaurants.GetByID(r.Context(), req.RestaurantID)
	if err != nil {
		if errors.Is(err, restaurant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "restaurant not found")
			return
		}
		h.internalError(w, r, err, "load restaurant")
		return
	}

	items := make([]order.OrderItem, len(req.Items))
	for i, it := range req.Items {
		options := make([]order.SelectedOption, len(it.Options))
		for j, group := range it.Options {
			optItems := make([]order.OptionItem, len(group.Items))
			for k, opt := range group.Items {
				optItems[k] = order.OptionItem{Name: opt.Name, Price: opt.Price}
			}
			options[j] = order.SelectedOption{GroupName: group.GroupName, Items: optItems}
		}
		items[i] = order.OrderItem{
			ID:          it.ID,
			Name:        it.Name,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Observation: it.Observation,
			Options:     options,
		}
	}

	result, err := h.orderSvc.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		RestaurantID:    rest.ID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Items:           items,
		CouponCode:      req.CouponCode,
		Fulfillment:     order.Fulfillment(req.Fulfillment),
		DeliveryAddress: req.DeliveryAddress,
		DeliveryFee:     rest.DeliveryFee,
		Observations:    req.Observations,
		TableNumber:     req.TableNumber,
		Destination:     rest.WhatsAppPhone,
		Platform:        whatsapp.DetectPlatform(r.UserAgent()),
	})
	if err != nil {
		h.mapOrderError(w, r, err)
		return
	}

	h.publishStatus(r.Context(), result.Order, rest.Name)

	writeJSON(w, http.StatusOK, placeOrderResponse{
		OrderID:      result.Order.ID,
		Message:      result.Message,
		WhatsAppLink: result.Link,
		Subtotal:     result.Order.Subtotal,
		Discount:     result.Order.Discount,
		Total:        result.Order.Total,
		Persisted:    result.Persisted,
	})
}

// mapOrderError converts domain errors to HTTP responses: bad input is 400,
// coupon rejections are 422, a blocked channel is terminal and user-visible.
func (h *Handler) mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		itemErr *order.InvalidItemError
		minErr  *coupon.BelowMinimumError
		sendErr *order.TransientDeliveryError
	)

	switch {
	case errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, order.ErrMissingCustomerName),
		errors.Is(err, order.ErrMissingDeliveryAddress),
		errors.Is(err, order.ErrUnknownFulfillment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &itemErr):
		writeError(w, http.StatusBadRequest, itemErr.Error())
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "invalid coupon code")
	case errors.Is(err, coupon.ErrNotYetValid),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &minErr):
		writeError(w, http.StatusUnprocessableEntity, minErr.Error())
	case errors.Is(err, order.ErrChannelNotConfigured):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &sendErr):
		writeError(w, http.StatusBadGateway, "could not reach whatsapp, please send the order manually")
	default:
		h.internalError(w, r, err, "place order")
	}
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus handles PATCH /orders/{orderID}/status: staff moves an
// order through its lifecycle, and the customer gets notified.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := order.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	if err := h.orders.UpdateStatus(r.Context(), orderID, status); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.internalError(w, r, err, "update order status")
		return
	}

	o, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		h.internalError(w, r, err, "load order")
		return
	}

	restaurantName := ""
	if rest, err := h.restaurants.GetByID(r.Context(), o.RestaurantID); err == nil {
		restaurantName = rest.Name
	}
	h.publishStatus(r.Context(), o, restaurantName)

	writeJSON(w, http.StatusOK, map[string]string{
		"order_id": o.ID,
		"status":   string(o.Status),
	})
}

// publishStatus emits a status-change event. Notification delivery is best
// effort: a broker problem never fails the request.
func (h *Handler) publishStatus(ctx context.Context, o *order.Order, restaurantName string) {
	ev := notification.StatusChanged{
		OrderID:        o.ID,
		RestaurantID:   o.RestaurantID,
		RestaurantName: restaurantName,
		CustomerName:   o.CustomerName,
		CustomerPhone:  o.CustomerPhone,
		Status:         o.Status,
		Total:          o.Total,
		ChangedAt:      o.CreatedAt,
	}
	if err := h.notifier.PublishStatusChanged(ctx, ev); err != nil {
		zctx.From(ctx).Warn("Publish status notification",
			zap.String("order_id", o.ID), zap.Error(err))
	}
}

// GetMenu handles GET /restaurants/{restaurantID}/menu.
func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")

	if _, err := h.restaurants.GetByID(r.Context(), restaurantID); err != nil {
		if errors.Is(err, restaurant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "restaurant not found")
			return
		}
		h.internalError(w, r, err, "load restaurant")
		return
	}

	items, err := h.menus.ListByRestaurant(r.Context(), restaurantID)
	if err != nil {
		h.internalError(w, r, err, "list menu")
		return
	}

	type menuItemResponse struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Category    string          `json:"category"`
	}

	resp := make([]menuItemResponse, len(items))
	for i, item := range items {
		resp[i] = menuItemResponse{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Category:    item.Category,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	zctx.From(r.Context()).Error(msg, zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
