package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zapmenu/zapmenu/internal/domain/coupon"
	"github.com/zapmenu/zapmenu/internal/whatsapp"
)

var (
	// ErrMissingDeliveryAddress is returned for delivery orders without an address.
	ErrMissingDeliveryAddress = errors.New("delivery address is required")
	// ErrUnknownFulfillment is returned when the fulfillment kind is neither
	// delivery nor pickup.
	ErrUnknownFulfillment = errors.New("unknown fulfillment kind")
)

// InvalidItemError indicates a cart line that cannot form a valid order.
type InvalidItemError struct {
	Name   string
	Reason string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid item %q: %s", e.Name, e.Reason)
}

// CouponValidator validates a coupon code against a subtotal within a
// restaurant scope.
type CouponValidator interface {
	Validate(ctx context.Context, restaurantID, rawCode string, subtotal decimal.Decimal) (*coupon.Discount, error)
}

// CouponCounter increments a coupon's usage counter.
type CouponCounter interface {
	IncrementUses(ctx context.Context, couponID string) error
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	RestaurantID    string
	CustomerName    string
	CustomerPhone   string
	Items           []OrderItem
	CouponCode      string
	Fulfillment     Fulfillment
	DeliveryAddress string
	DeliveryFee     decimal.Decimal
	Observations    string
	TableNumber     string

	// Destination overrides the restaurant's configured WhatsApp phone.
	Destination string
	Platform    whatsapp.Platform
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order     *Order
	Message   string
	Link      string
	Persisted bool
}

// Service encapsulates order placement: pricing, discounting, message
// composition, persistence and dispatch.
type Service struct {
	orders     Repository
	coupons    CouponValidator
	counter    CouponCounter
	dispatcher *Dispatcher
	now        func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(orders Repository, coupons CouponValidator, counter CouponCounter, dispatcher *Dispatcher) *Service {
	return &Service{
		orders:     orders,
		coupons:    coupons,
		counter:    counter,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// PlaceOrder validates the cart, computes subtotal and discount, composes the
// WhatsApp message, persists the order, increments the coupon usage counter
// exactly once, and dispatches the message.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, ErrMissingCustomerName
	}
	if !req.Fulfillment.Valid() {
		return nil, ErrUnknownFulfillment
	}

	subtotal := decimal.Zero
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &InvalidItemError{Name: item.Name, Reason: "quantity must be at least 1"}
		}
		if item.Price.IsNegative() {
			return nil, &InvalidItemError{Name: item.Name, Reason: "price must not be negative"}
		}
		subtotal = subtotal.Add(item.Subtotal())
	}

	discount := decimal.Zero
	couponID := ""
	couponCode := ""
	if strings.TrimSpace(req.CouponCode) != "" {
		d, err := s.coupons.Validate(ctx, req.RestaurantID, req.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = d.Amount
		couponID = d.CouponID
		couponCode = d.Code
	}

	// Delivery fee applies to delivery orders only; pickup orders never
	// carry one regardless of the restaurant's configured fee.
	fee := req.DeliveryFee
	if req.Fulfillment == FulfillmentDelivery {
		if strings.TrimSpace(req.DeliveryAddress) == "" {
			return nil, ErrMissingDeliveryAddress
		}
	} else {
		fee = decimal.Zero
	}

	total := subtotal.Sub(discount).Add(fee).Round(2)

	message := ComposeMessage(req.Items, req.CustomerName, req.TableNumber, MessageOptions{
		Observations:    req.Observations,
		Discount:        discount,
		DeliveryFee:     fee,
		Fulfillment:     req.Fulfillment,
		DeliveryAddress: req.DeliveryAddress,
	})

	o := &Order{
		ID:              uuid.New().String(),
		RestaurantID:    req.RestaurantID,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Items:           req.Items,
		Subtotal:        subtotal.Round(2),
		Discount:        discount,
		DeliveryFee:     fee,
		Total:           total,
		Fulfillment:     req.Fulfillment,
		DeliveryAddress: req.DeliveryAddress,
		Observations:    req.Observations,
		TableNumber:     req.TableNumber,
		CouponCode:      couponCode,
		Status:          StatusPending,
		CreatedAt:       s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The counter moves only after the order exists, once per placed order.
	// A failed increment is logged rather than failing the request: the
	// order is already persisted and a client retry would duplicate it.
	if couponID != "" {
		if err := s.counter.IncrementUses(ctx, couponID); err != nil {
			zctx.From(ctx).Error("Increment coupon uses",
				zap.String("coupon_id", couponID), zap.Error(err))
		}
	}

	res, err := s.dispatcher.Dispatch(ctx, DispatchRequest{
		Order:    o,
		Message:  message,
		Phone:    req.Destination,
		Platform: req.Platform,
	})
	if err != nil {
		return nil, err
	}

	return &PlaceOrderResult{
		Order:     o,
		Message:   message,
		Link:      res.Link,
		Persisted: res.Persisted,
	}, nil
}
