package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zapmenu/zapmenu/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, restaurant_id, customer_name, customer_phone,
		items, subtotal, discount, delivery_fee, total, fulfillment,
		delivery_address, observations, table_number, coupon_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	getOrderSQL = `SELECT id, restaurant_id, customer_name, customer_phone,
		items, subtotal, discount, delivery_fee, total, fulfillment,
		delivery_address, observations, table_number, coupon_code, status, created_at
		FROM orders WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.RestaurantID, o.CustomerName, o.CustomerPhone,
		itemsJSON, o.Subtotal, o.Discount, o.DeliveryFee, o.Total, string(o.Fulfillment),
		o.DeliveryAddress, o.Observations, o.TableNumber, o.CouponCode, string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// GetByID fetches one order. Returns order.ErrNotFound when absent.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus sets the order status. Writing the current status again is a
// no-op, which keeps payment reconciliation replays harmless.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Confirm cascades an order to confirmed. Implements payment.OrderConfirmer.
func (r *OrderRepository) Confirm(ctx context.Context, id string) error {
	return r.UpdateStatus(ctx, id, order.StatusConfirmed)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o           order.Order
		itemsJSON   []byte
		fulfillment string
		status      string
		subtotal    decimal.Decimal
		discount    decimal.Decimal
		deliveryFee decimal.Decimal
		total       decimal.Decimal
		createdAt   time.Time
	)
	err := row.Scan(
		&o.ID, &o.RestaurantID, &o.CustomerName, &o.CustomerPhone,
		&itemsJSON, &subtotal, &discount, &deliveryFee, &total, &fulfillment,
		&o.DeliveryAddress, &o.Observations, &o.TableNumber, &o.CouponCode, &status, &createdAt,
	)
	if err != nil {
		return order.Order{}, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.Subtotal = subtotal
	o.Discount = discount
	o.DeliveryFee = deliveryFee
	o.Total = total
	o.Fulfillment = order.Fulfillment(fulfillment)
	o.Status = order.Status(status)
	o.CreatedAt = createdAt
	return o, nil
}
