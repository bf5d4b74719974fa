package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order id matches no record.
var ErrNotFound = errors.New("order not found")

// Fulfillment enumerates how an order reaches the customer.
type Fulfillment string

const (
	FulfillmentDelivery Fulfillment = "delivery"
	FulfillmentPickup   Fulfillment = "pickup"
)

// Valid reports whether f is a known fulfillment kind.
func (f Fulfillment) Valid() bool {
	return f == FulfillmentDelivery || f == FulfillmentPickup
}

// Status enumerates the order lifecycle states. Transitions happen only by
// staff action or by payment reconciliation (pending → confirmed).
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
		StatusOutForDelivery, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// OptionItem is a single selectable option, e.g. a size or an extra.
type OptionItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// SelectedOption groups the option items the customer picked for one
// option group, preserving selection order.
type SelectedOption struct {
	GroupName string       `json:"group_name"`
	Items     []OptionItem `json:"items"`
}

// OrderItem is one line of the cart. Immutable once added to an order.
type OrderItem struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	Quantity    int              `json:"quantity"`
	Observation string           `json:"observation,omitempty"`
	Options     []SelectedOption `json:"options,omitempty"`
}

// Subtotal returns (unit price + sum of selected option prices) × quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	unit := i.Price
	for _, group := range i.Options {
		for _, opt := range group.Items {
			unit = unit.Add(opt.Price)
		}
	}
	return unit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a persisted customer order.
//
// Invariants: Discount ≤ Subtotal; Total = Subtotal − Discount + DeliveryFee;
// DeliveryFee > 0 only for delivery orders.
type Order struct {
	ID              string
	RestaurantID    string
	CustomerName    string
	CustomerPhone   string
	Items           []OrderItem
	Subtotal        decimal.Decimal
	Discount        decimal.Decimal
	DeliveryFee     decimal.Decimal
	Total           decimal.Decimal
	Fulfillment     Fulfillment
	DeliveryAddress string
	Observations    string
	TableNumber     string
	CouponCode      string
	Status          Status
	CreatedAt       time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// UpdateStatus sets the order status unconditionally. Setting the same
	// status twice is a no-op, which keeps reconciliation replay-safe.
	UpdateStatus(ctx context.Context, id string, status Status) error
}
