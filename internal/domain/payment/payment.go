// Package payment reconciles external payment-provider webhook events onto
// internal order and subscription payment records.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status is the internal payment status vocabulary.
type Status string

const (
	StatusPending         Status = "pending"
	StatusReceived        Status = "received"
	StatusConfirmed       Status = "confirmed"
	StatusOverdue         Status = "overdue"
	StatusRefunded        Status = "refunded"
	StatusRefundRequested Status = "refund_requested"
)

// Paid reports whether money has been received for this status.
func (s Status) Paid() bool {
	return s == StatusReceived || s == StatusConfirmed
}

// providerStatuses maps the provider's status strings onto internal statuses.
var providerStatuses = map[string]Status{
	"PENDING":          StatusPending,
	"RECEIVED":         StatusReceived,
	"CONFIRMED":        StatusConfirmed,
	"OVERDUE":          StatusOverdue,
	"REFUNDED":         StatusRefunded,
	"RECEIVED_IN_CASH": StatusReceived,
	"REFUND_REQUESTED": StatusRefundRequested,
}

// MapProviderStatus translates a provider status string. Unknown values map
// to pending with ok=false so the webhook stays idempotent when the provider
// ships status values we have never seen; callers should log those.
func MapProviderStatus(provider string) (status Status, ok bool) {
	if s, found := providerStatuses[provider]; found {
		return s, true
	}
	return StatusPending, false
}

// ErrMalformedEvent is returned when a webhook body lacks a payment id.
var ErrMalformedEvent = errors.New("webhook event has no payment id")

// Event is one inbound provider webhook notification.
type Event struct {
	// Name is the provider's event type, e.g. "PAYMENT_CONFIRMED". Kept for
	// logging only; reconciliation is driven by the payment status.
	Name string
	// ProviderPaymentID is the provider's unique payment identifier.
	ProviderPaymentID string
	// ProviderStatus is the provider's payment status string.
	ProviderStatus string
}

// Record is a persisted payment, scoped either to an order or to a
// subscription. PaidAt is set at most once and never cleared.
type Record struct {
	ID                string
	ProviderPaymentID string
	OrderID           string
	SubscriptionID    string
	Status            Status
	PaidAt            *time.Time
}

// Records applies status updates to one kind of payment record.
//
// ApplyStatus must be an unconditional set: writing the same status twice
// leaves the record unchanged, and paidAt only lands on a record whose
// paid_at is still null. That upsert-by-status shape is what makes replayed
// and out-of-order events safe without coordination.
type Records interface {
	// ApplyStatus returns the updated record, or nil when no record matches
	// the provider payment id.
	ApplyStatus(ctx context.Context, providerPaymentID string, status Status, paidAt time.Time) (*Record, error)
}

// OrderConfirmer cascades an order to confirmed. Must be idempotent.
type OrderConfirmer interface {
	Confirm(ctx context.Context, orderID string) error
}
