package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/zapmenu/zapmenu/internal/domain/order"
	"github.com/zapmenu/zapmenu/internal/mq"
)

const (
	// Exchange receives order status events; empty routes via the default
	// exchange straight to the queue.
	Exchange = ""
	// Queue is consumed by the notifier worker.
	Queue = "order.status_changed"
)

// StatusChanged is the event published whenever an order changes status.
type StatusChanged struct {
	OrderID        string          `json:"order_id"`
	RestaurantID   string          `json:"restaurant_id"`
	RestaurantName string          `json:"restaurant_name"`
	CustomerName   string          `json:"customer_name"`
	CustomerPhone  string          `json:"customer_phone"`
	Status         order.Status    `json:"status"`
	Total          decimal.Decimal `json:"total"`
	ChangedAt      time.Time       `json:"changed_at"`
}

// Publisher emits order status-change events.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}

// AMQPPublisher publishes status-change events to RabbitMQ.
type AMQPPublisher struct {
	client *mq.Client
}

// NewAMQPPublisher declares the notification queue and returns a publisher
// bound to it.
func NewAMQPPublisher(client *mq.Client) (*AMQPPublisher, error) {
	_, err := client.Channel().QueueDeclare(Queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, errors.Wrap(err, "declare notification queue")
	}
	return &AMQPPublisher{client: client}, nil
}

// PublishStatusChanged sends one event to the notification queue.
func (p *AMQPPublisher) PublishStatusChanged(ctx context.Context, ev StatusChanged) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal status event")
	}
	return p.client.Publish(ctx, Exchange, Queue, body)
}

// NopPublisher drops all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }
