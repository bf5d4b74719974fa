package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapmenu/zapmenu/internal/domain/coupon"
	"github.com/zapmenu/zapmenu/internal/domain/menu"
	"github.com/zapmenu/zapmenu/internal/domain/order"
	"github.com/zapmenu/zapmenu/internal/domain/payment"
	"github.com/zapmenu/zapmenu/internal/domain/restaurant"
	"github.com/zapmenu/zapmenu/internal/notification"
)

const testWebhookToken = "whk_secret"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stubRestaurants struct {
	byID map[string]*restaurant.Restaurant
}

func (s *stubRestaurants) GetByID(_ context.Context, id string) (*restaurant.Restaurant, error) {
	if r, ok := s.byID[id]; ok {
		return r, nil
	}
	return nil, restaurant.ErrNotFound
}

type stubMenus struct {
	items []menu.Item
}

func (s *stubMenus) ListByRestaurant(context.Context, string) ([]menu.Item, error) {
	return s.items, nil
}

type stubOrders struct {
	byID map[string]*order.Order
}

func (s *stubOrders) Create(_ context.Context, o *order.Order) error {
	s.byID[o.ID] = o
	return nil
}

func (s *stubOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	if o, ok := s.byID[id]; ok {
		return o, nil
	}
	return nil, order.ErrNotFound
}

func (s *stubOrders) UpdateStatus(_ context.Context, id string, status order.Status) error {
	o, ok := s.byID[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *stubOrders) Confirm(ctx context.Context, id string) error {
	return s.UpdateStatus(ctx, id, order.StatusConfirmed)
}

type stubCoupons struct {
	rule       *coupon.Rule
	increments int
}

func (s *stubCoupons) FindActive(_ context.Context, _, code string) (*coupon.Rule, error) {
	if s.rule != nil && s.rule.Code == code {
		r := *s.rule
		return &r, nil
	}
	return nil, coupon.ErrNotFound
}

func (s *stubCoupons) IncrementUses(context.Context, string) error {
	s.increments++
	return nil
}

// stubPayments tracks ApplyStatus calls so tests can assert auth failures
// never touch storage.
type stubPayments struct {
	records map[string]*payment.Record
	applies int
}

func (s *stubPayments) ApplyStatus(_ context.Context, providerPaymentID string, status payment.Status, paidAt time.Time) (*payment.Record, error) {
	s.applies++
	rec, ok := s.records[providerPaymentID]
	if !ok {
		return nil, nil
	}
	rec.Status = status
	if status.Paid() && rec.PaidAt == nil {
		t := paidAt
		rec.PaidAt = &t
	}
	copied := *rec
	return &copied, nil
}

type fixture struct {
	handler     http.Handler
	restaurants *stubRestaurants
	orders      *stubOrders
	coupons     *stubCoupons
	orderPays   *stubPayments
	subPays     *stubPayments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	restaurants := &stubRestaurants{byID: map[string]*restaurant.Restaurant{
		"demo": {
			ID:            "demo",
			Name:          "Cantina Demo",
			WhatsAppPhone: "5511999887766",
			DeliveryFee:   dec("8"),
		},
	}}
	menus := &stubMenus{items: []menu.Item{
		{ID: "mi-1", RestaurantID: "demo", Name: "Pizza", Price: dec("30"), Category: "Pizzas", Available: true},
	}}
	orders := &stubOrders{byID: map[string]*order.Order{}}
	coupons := &stubCoupons{}
	orderPays := &stubPayments{records: map[string]*payment.Record{}}
	subPays := &stubPayments{records: map[string]*payment.Record{}}

	dispatcher := order.NewDispatcher(order.DispatcherConfig{}, nil, order.DirectCourier{}, order.DirectCourier{})
	svc := order.NewService(orders, coupon.NewEngine(coupons), coupons, dispatcher)
	reconciler := payment.NewReconciler(orderPays, subPays, orders)

	h := New(restaurants, menus, orders, svc, reconciler, notification.NopPublisher{}, []byte(testWebhookToken))
	return &fixture{
		handler:     h.Routes(),
		restaurants: restaurants,
		orders:      orders,
		coupons:     coupons,
		orderPays:   orderPays,
		subPays:     subPays,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestPlaceOrder(t *testing.T) {
	t.Parallel()

	body := map[string]any{
		"restaurant_id": "demo",
		"customer_name": "João",
		"items": []map[string]any{
			{"id": "mi-1", "name": "Pizza", "price": "30", "quantity": 2},
		},
		"fulfillment": "pickup",
	}

	t.Run("happy path", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/orders", body, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp placeOrderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.OrderID)
		assert.True(t, resp.Subtotal.Equal(dec("60")))
		assert.True(t, resp.Total.Equal(dec("60")))
		assert.Contains(t, resp.WhatsAppLink, "5511999887766")
		assert.Contains(t, resp.Message, "*Pedido de João*")

		// The order is persisted as pending.
		require.Len(t, f.orders.byID, 1)
		assert.Equal(t, order.StatusPending, f.orders.byID[resp.OrderID].Status)
	})

	t.Run("unknown restaurant", func(t *testing.T) {
		f := newFixture(t)
		b := map[string]any{}
		for k, v := range body {
			b[k] = v
		}
		b["restaurant_id"] = "ghost"
		rec := f.do(t, http.MethodPost, "/orders", b, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown fulfillment", func(t *testing.T) {
		f := newFixture(t)
		b := map[string]any{}
		for k, v := range body {
			b[k] = v
		}
		b["fulfillment"] = "drone"
		rec := f.do(t, http.MethodPost, "/orders", b, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.orders.byID)
	})

	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t)
		b := map[string]any{"restaurant_id": "demo", "customer_name": "Ana", "fulfillment": "pickup"}
		rec := f.do(t, http.MethodPost, "/orders", b, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPlaceOrder_WithCoupon(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.coupons.rule = &coupon.Rule{
		ID:           "cpn-1",
		RestaurantID: "demo",
		Code:         "PROMO10",
		DiscountType: coupon.DiscountPercentage,
		Value:        dec("10"),
		Active:       true,
	}

	body := map[string]any{
		"restaurant_id": "demo",
		"customer_name": "João",
		"items": []map[string]any{
			{"id": "mi-1", "name": "Pizza", "price": "30", "quantity": 2},
		},
		"fulfillment": "pickup",
		"coupon_code": "promo10",
	}

	rec := f.do(t, http.MethodPost, "/orders", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp placeOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Discount.Equal(dec("6")), "discount %s", resp.Discount)
	assert.True(t, resp.Total.Equal(dec("54")), "total %s", resp.Total)
	assert.Contains(t, resp.Message, "Desconto: -R$ 6.00\n")
	assert.Contains(t, resp.Message, "*Total: R$ 54.00*")
	assert.Equal(t, 1, f.coupons.increments)
}

func TestPlaceOrder_RejectedCoupon(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	body := map[string]any{
		"restaurant_id": "demo",
		"customer_name": "João",
		"items": []map[string]any{
			{"id": "mi-1", "name": "Pizza", "price": "30", "quantity": 1},
		},
		"fulfillment": "pickup",
		"coupon_code": "NOPE",
	}

	rec := f.do(t, http.MethodPost, "/orders", body, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, f.coupons.increments)
	assert.Empty(t, f.orders.byID)
}

func TestGetMenu(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/restaurants/demo/menu", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Pizza", items[0]["name"])

	rec = f.do(t, http.MethodGet, "/restaurants/ghost/menu", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.orders.byID["ord-1"] = &order.Order{
		ID:           "ord-1",
		RestaurantID: "demo",
		CustomerName: "João",
		Status:       order.StatusConfirmed,
		Total:        dec("60"),
	}

	t.Run("valid transition", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/orders/ord-1/status", map[string]string{"status": "preparing"}, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, order.StatusPreparing, f.orders.byID["ord-1"].Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/orders/ord-1/status", map[string]string{"status": "teleported"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown order", func(t *testing.T) {
		rec := f.do(t, http.MethodPatch, "/orders/ghost/status", map[string]string{"status": "preparing"}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func webhookHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Asaas-Access-Token", token)
	}
	return h
}

func TestPaymentWebhook_Auth(t *testing.T) {
	t.Parallel()

	body := map[string]any{
		"event":   "PAYMENT_CONFIRMED",
		"payment": map[string]string{"id": "pay_1", "status": "CONFIRMED"},
	}

	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/webhooks/payment", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		// No record read or written.
		assert.Zero(t, f.orderPays.applies)
		assert.Zero(t, f.subPays.applies)
	})

	t.Run("wrong token", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/webhooks/payment", body, webhookHeader("whk_wrong"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, f.orderPays.applies)
	})

	t.Run("no token configured fails closed", func(t *testing.T) {
		f := newFixture(t)
		h := New(f.restaurants, &stubMenus{}, f.orders, nil,
			payment.NewReconciler(f.orderPays, f.subPays, f.orders),
			notification.NopPublisher{}, nil)

		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", &buf)
		req.Header.Set("Asaas-Access-Token", "")
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Zero(t, f.orderPays.applies)
	})
}

func TestPaymentWebhook_ConfirmsOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.orders.byID["ord-1"] = &order.Order{ID: "ord-1", RestaurantID: "demo", Status: order.StatusPending}
	f.orderPays.records["pay_1"] = &payment.Record{
		ID:                "pr-1",
		ProviderPaymentID: "pay_1",
		OrderID:           "ord-1",
		Status:            payment.StatusPending,
	}

	body := map[string]any{
		"event":   "PAYMENT_CONFIRMED",
		"payment": map[string]string{"id": "pay_1", "status": "CONFIRMED"},
	}

	rec := f.do(t, http.MethodPost, "/webhooks/payment", body, webhookHeader(testWebhookToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.True(t, resp.OrderMatched)
	assert.False(t, resp.SubscriptionMatch)
	assert.Equal(t, "confirmed", resp.Status)

	assert.Equal(t, order.StatusConfirmed, f.orders.byID["ord-1"].Status)
	require.NotNil(t, f.orderPays.records["pay_1"].PaidAt)

	// Resending the identical event leaves state unchanged.
	paidAt := *f.orderPays.records["pay_1"].PaidAt
	rec = f.do(t, http.MethodPost, "/webhooks/payment", body, webhookHeader(testWebhookToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.StatusConfirmed, f.orders.byID["ord-1"].Status)
	assert.Equal(t, paidAt, *f.orderPays.records["pay_1"].PaidAt)
}

func TestPaymentWebhook_UnmatchedEventAcknowledged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	body := map[string]any{
		"event":   "PAYMENT_RECEIVED",
		"payment": map[string]string{"id": "pay_ghost", "status": "RECEIVED"},
	}

	rec := f.do(t, http.MethodPost, "/webhooks/payment", body, webhookHeader(testWebhookToken))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp webhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Received)
	assert.False(t, resp.OrderMatched)
	assert.False(t, resp.SubscriptionMatch)
}

func TestPaymentWebhook_BadRequests(t *testing.T) {
	t.Parallel()

	t.Run("malformed body", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", bytes.NewBufferString("{"))
		req.Header.Set("Asaas-Access-Token", testWebhookToken)
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing payment id", func(t *testing.T) {
		f := newFixture(t)
		body := map[string]any{"event": "PAYMENT_CONFIRMED", "payment": map[string]string{"status": "CONFIRMED"}}
		rec := f.do(t, http.MethodPost, "/webhooks/payment", body, webhookHeader(testWebhookToken))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
