package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapmenu/zapmenu/internal/domain/payment"
)

// The paid_at CASE keeps the timestamp of the first transition into a paid
// state: later events overwrite status unconditionally but never paid_at.
const (
	applyOrderPaymentSQL = `UPDATE order_payments
		SET status = $2,
		    paid_at = CASE WHEN $2 IN ('received', 'confirmed')
		              THEN COALESCE(paid_at, $3) ELSE paid_at END
		WHERE provider_payment_id = $1
		RETURNING id, provider_payment_id, order_id, status, paid_at`

	applySubscriptionPaymentSQL = `UPDATE subscription_payments
		SET status = $2,
		    paid_at = CASE WHEN $2 IN ('received', 'confirmed')
		              THEN COALESCE(paid_at, $3) ELSE paid_at END
		WHERE provider_payment_id = $1
		RETURNING id, provider_payment_id, subscription_id, status, paid_at`

	createOrderPaymentSQL = `INSERT INTO order_payments (id, provider_payment_id, order_id)
		VALUES ($1, $2, $3)`
)

var (
	_ payment.Records = (*OrderPaymentRepository)(nil)
	_ payment.Records = (*SubscriptionPaymentRepository)(nil)
)

// OrderPaymentRepository applies provider events to order payment records.
type OrderPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewOrderPaymentRepository returns an OrderPaymentRepository using the pool.
func NewOrderPaymentRepository(pool *pgxpool.Pool) *OrderPaymentRepository {
	return &OrderPaymentRepository{pool: pool}
}

// Create registers a pending payment record for an order when payment is
// initiated with the provider.
func (r *OrderPaymentRepository) Create(ctx context.Context, id, providerPaymentID, orderID string) error {
	_, err := r.pool.Exec(ctx, createOrderPaymentSQL, id, providerPaymentID, orderID)
	if err != nil {
		return fmt.Errorf("creating order payment %q: %w", providerPaymentID, err)
	}
	return nil
}

// ApplyStatus unconditionally sets the status of the matching record and
// stamps paid_at at most once. Returns nil when no record matches.
func (r *OrderPaymentRepository) ApplyStatus(ctx context.Context, providerPaymentID string, status payment.Status, paidAt time.Time) (*payment.Record, error) {
	rows, err := r.pool.Query(ctx, applyOrderPaymentSQL, providerPaymentID, string(status), paidAt)
	if err != nil {
		return nil, fmt.Errorf("applying order payment status %q: %w", providerPaymentID, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanOrderPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("applying order payment status %q: %w", providerPaymentID, err)
	}
	return &rec, nil
}

func scanOrderPayment(row pgx.CollectableRow) (payment.Record, error) {
	var (
		rec    payment.Record
		status string
	)
	err := row.Scan(&rec.ID, &rec.ProviderPaymentID, &rec.OrderID, &status, &rec.PaidAt)
	rec.Status = payment.Status(status)
	return rec, err
}

// SubscriptionPaymentRepository applies provider events to subscription
// payment records. Subscription activation itself is handled elsewhere.
type SubscriptionPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionPaymentRepository returns a repository using the pool.
func NewSubscriptionPaymentRepository(pool *pgxpool.Pool) *SubscriptionPaymentRepository {
	return &SubscriptionPaymentRepository{pool: pool}
}

// ApplyStatus unconditionally sets the status of the matching record and
// stamps paid_at at most once. Returns nil when no record matches.
func (r *SubscriptionPaymentRepository) ApplyStatus(ctx context.Context, providerPaymentID string, status payment.Status, paidAt time.Time) (*payment.Record, error) {
	rows, err := r.pool.Query(ctx, applySubscriptionPaymentSQL, providerPaymentID, string(status), paidAt)
	if err != nil {
		return nil, fmt.Errorf("applying subscription payment status %q: %w", providerPaymentID, err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanSubscriptionPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("applying subscription payment status %q: %w", providerPaymentID, err)
	}
	return &rec, nil
}

func scanSubscriptionPayment(row pgx.CollectableRow) (payment.Record, error) {
	var (
		rec    payment.Record
		status string
	)
	err := row.Scan(&rec.ID, &rec.ProviderPaymentID, &rec.SubscriptionID, &status, &rec.PaidAt)
	rec.Status = payment.Status(status)
	return rec, err
}
