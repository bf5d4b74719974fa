package order

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zapmenu/zapmenu/internal/whatsapp"
)

var (
	// ErrEmptyOrder is returned when the item sequence is empty.
	ErrEmptyOrder = errors.New("order has no items")
	// ErrMissingCustomerName is returned when the customer name is blank.
	ErrMissingCustomerName = errors.New("customer name is required")
	// ErrChannelNotConfigured is returned when no destination WhatsApp phone
	// is available from the request or the process configuration.
	ErrChannelNotConfigured = errors.New("whatsapp destination not configured")
)

// TransientDeliveryError indicates both the primary and the fallback delivery
// paths failed. It is terminal and user-visible; no further retries happen.
type TransientDeliveryError struct {
	Primary  error
	Fallback error
}

func (e *TransientDeliveryError) Error() string {
	return fmt.Sprintf("whatsapp delivery failed: primary: %v, fallback: %v", e.Primary, e.Fallback)
}

// Courier initiates delivery of a WhatsApp deep link. The primary courier
// opens a new context; the fallback navigates directly in the current one.
type Courier interface {
	Open(ctx context.Context, link string) error
}

// CourierFunc adapts a function to the Courier interface.
type CourierFunc func(ctx context.Context, link string) error

func (f CourierFunc) Open(ctx context.Context, link string) error { return f(ctx, link) }

// DirectCourier treats delivery as initiated once the deep link is handed
// back to the client, which opens the WhatsApp conversation itself. Used when
// the server has no send gateway of its own.
type DirectCourier struct{}

func (DirectCourier) Open(context.Context, string) error { return nil }

// DispatcherConfig holds the dispatcher's static configuration.
type DispatcherConfig struct {
	// StoreURL is the persistence endpoint that receives a copy of each
	// dispatched order. Empty disables persistence.
	StoreURL string
	// PersistOrders toggles the best-effort persistence write.
	PersistOrders bool
	// DefaultPhone is the destination used when the request carries none.
	DefaultPhone string
}

// Dispatcher delivers a composed order message over WhatsApp, optionally
// persisting an audit copy first. Persistence is best-effort: its failure is
// logged and swallowed and never blocks the customer-facing send.
type Dispatcher struct {
	cfg      DispatcherConfig
	client   *http.Client
	primary  Courier
	fallback Courier
}

// NewDispatcher creates a Dispatcher. Callers bound the two network-touching
// operations via the request context; the dispatcher itself imposes no
// timeout.
func NewDispatcher(cfg DispatcherConfig, client *http.Client, primary, fallback Courier) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Dispatcher{
		cfg:      cfg,
		client:   client,
		primary:  primary,
		fallback: fallback,
	}
}

// DispatchRequest carries the composed message and its destination.
type DispatchRequest struct {
	Order   *Order
	Message string
	// Phone overrides the configured default destination when set.
	Phone    string
	Platform whatsapp.Platform
}

// DispatchResult reports what happened to a dispatched order.
type DispatchResult struct {
	Link      string
	Persisted bool
}

// Dispatch validates the request, persists a best-effort audit copy, builds
// the deep link and attempts delivery through the primary courier, falling
// back exactly once to the secondary courier.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*DispatchResult, error) {
	if req.Order == nil || len(req.Order.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if strings.TrimSpace(req.Order.CustomerName) == "" {
		return nil, ErrMissingCustomerName
	}

	phone := req.Phone
	if phone == "" {
		phone = d.cfg.DefaultPhone
	}
	if whatsapp.SanitizePhone(phone) == "" {
		return nil, ErrChannelNotConfigured
	}

	persisted := d.persist(ctx, req.Order)

	link, err := whatsapp.BuildLink(req.Platform, phone, req.Message)
	if err != nil {
		return nil, errors.Wrap(err, "build whatsapp link")
	}

	if err := d.deliver(ctx, link); err != nil {
		return nil, err
	}

	return &DispatchResult{Link: link, Persisted: persisted}, nil
}

// deliver tries the primary courier and retries once via the fallback.
func (d *Dispatcher) deliver(ctx context.Context, link string) error {
	primaryErr := d.primary.Open(ctx, link)
	if primaryErr == nil {
		return nil
	}

	zctx.From(ctx).Warn("Primary whatsapp delivery blocked, trying fallback",
		zap.Error(primaryErr))

	if fallbackErr := d.fallback.Open(ctx, link); fallbackErr != nil {
		return &TransientDeliveryError{Primary: primaryErr, Fallback: fallbackErr}
	}
	return nil
}

// storePayload is the JSON body written to the persistence endpoint.
type storePayload struct {
	RestaurantID    string          `json:"restaurant_id"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	Items           []OrderItem     `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DeliveryFee     decimal.Decimal `json:"delivery_fee"`
	DeliveryAddress string          `json:"delivery_address"`
	TableNumber     string          `json:"table_number"`
	Method          string          `json:"method"`
	Status          string          `json:"status"`
	Observations    string          `json:"observations"`
}

// persist writes an audit copy of the order to the configured endpoint.
// Failures are logged and swallowed: losing the audit copy must never block
// the send. Returns whether the write succeeded.
func (d *Dispatcher) persist(ctx context.Context, o *Order) bool {
	if !d.cfg.PersistOrders || d.cfg.StoreURL == "" {
		return false
	}

	lg := zctx.From(ctx)

	body, err := json.Marshal(storePayload{
		RestaurantID:    o.RestaurantID,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		Items:           o.Items,
		Total:           o.Total,
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		DeliveryAddress: o.DeliveryAddress,
		TableNumber:     o.TableNumber,
		Method:          "whatsapp",
		Status:          "sent_to_whatsapp",
		Observations:    o.Observations,
	})
	if err != nil {
		lg.Error("Marshal order audit payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.StoreURL, bytes.NewReader(body))
	if err != nil {
		lg.Error("Build order audit request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		lg.Warn("Order audit write failed", zap.Error(err))
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusMultipleChoices {
		lg.Warn("Order audit write rejected", zap.Int("status", resp.StatusCode))
		return false
	}
	return true
}
