package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Result reports which record kinds an event was applied to. The provider
// payment id is checked against both kinds; they should be exclusive, but the
// reconciler applies the update to whichever it finds.
type Result struct {
	Status            Status
	OrderMatched      bool
	OrderID           string
	SubscriptionMatch bool
	SubscriptionID    string
}

// Matched reports whether the event touched any record.
func (r Result) Matched() bool {
	return r.OrderMatched || r.SubscriptionMatch
}

// Reconciler maps provider payment events onto internal payment records.
// Every step is safely repeatable: replaying the same event produces the
// same final state.
type Reconciler struct {
	orderPayments Records
	subPayments   Records
	orders        OrderConfirmer
	now           func() time.Time
}

// NewReconciler creates a Reconciler over the two payment record kinds.
func NewReconciler(orderPayments, subPayments Records, orders OrderConfirmer) *Reconciler {
	return &Reconciler{
		orderPayments: orderPayments,
		subPayments:   subPayments,
		orders:        orders,
		now:           time.Now,
	}
}

// Process applies one provider event. Events whose payment id matches no
// record succeed with no mutation: the provider may resend events for
// records not yet created locally, or for test payments.
func (r *Reconciler) Process(ctx context.Context, ev Event) (Result, error) {
	if ev.ProviderPaymentID == "" {
		return Result{}, ErrMalformedEvent
	}

	lg := zctx.From(ctx).With(
		zap.String("provider_payment_id", ev.ProviderPaymentID),
		zap.String("provider_status", ev.ProviderStatus),
	)

	status, known := MapProviderStatus(ev.ProviderStatus)
	if !known {
		lg.Warn("Unrecognized provider payment status, treating as pending",
			zap.String("event", ev.Name))
	}

	res := Result{Status: status}
	now := r.now()

	orderRec, err := r.orderPayments.ApplyStatus(ctx, ev.ProviderPaymentID, status, now)
	if err != nil {
		return Result{}, errors.Wrap(err, "apply order payment status")
	}
	if orderRec != nil {
		res.OrderMatched = true
		res.OrderID = orderRec.OrderID

		// Money in means the kitchen can start: cascade the owning order to
		// confirmed. Confirm is idempotent, so replays are harmless.
		if status.Paid() {
			if err := r.orders.Confirm(ctx, orderRec.OrderID); err != nil {
				return Result{}, errors.Wrap(err, "confirm order")
			}
		}
	}

	subRec, err := r.subPayments.ApplyStatus(ctx, ev.ProviderPaymentID, status, now)
	if err != nil {
		return Result{}, errors.Wrap(err, "apply subscription payment status")
	}
	if subRec != nil {
		res.SubscriptionMatch = true
		res.SubscriptionID = subRec.SubscriptionID
	}

	if !res.Matched() {
		lg.Info("Payment event matched no record, acknowledged without mutation")
	}

	return res, nil
}
