package notification

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/zapmenu/zapmenu/internal/mq"
	"github.com/zapmenu/zapmenu/internal/whatsapp"
)

// Notifier consumes status-change events, renders the per-status template
// and produces the WhatsApp link that carries the update to the customer.
type Notifier struct {
	client *mq.Client
	lg     *zap.Logger
}

// NewNotifier creates a Notifier over the given broker client.
func NewNotifier(client *mq.Client, lg *zap.Logger) *Notifier {
	return &Notifier{client: client, lg: lg}
}

// Run consumes the notification queue until the context is cancelled.
// Malformed events are acked and dropped; there is nothing to retry.
func (n *Notifier) Run(ctx context.Context) error {
	deliveries, err := n.client.Channel().Consume(Queue,
		"notifier", // consumer tag
		false,      // autoAck
		false,      // exclusive
		false,      // noLocal
		false,      // noWait
		nil,
	)
	if err != nil {
		return errors.Wrap(err, "consume notification queue")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("notification channel closed")
			}

			var ev StatusChanged
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				n.lg.Warn("Dropping malformed status event", zap.Error(err))
				_ = d.Ack(false)
				continue
			}

			n.notify(ev)
			_ = d.Ack(false)
		}
	}
}

func (n *Notifier) notify(ev StatusChanged) {
	msg := Render(ev.Status, ev.RestaurantName, ev.OrderID, ev.CustomerName, ev.Total)

	link, err := whatsapp.BuildLink(whatsapp.PlatformMobile, ev.CustomerPhone, msg)
	if err != nil {
		// Orders placed at a table often have no customer phone; the update
		// still shows up in the staff panel, so just log it.
		n.lg.Info("Status change without customer phone",
			zap.String("order_id", ShortID(ev.OrderID)),
			zap.String("status", string(ev.Status)))
		return
	}

	n.lg.Info("Customer notification ready",
		zap.String("order_id", ShortID(ev.OrderID)),
		zap.String("status", string(ev.Status)),
		zap.String("link", link))
}
