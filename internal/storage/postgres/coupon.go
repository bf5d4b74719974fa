package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zapmenu/zapmenu/internal/domain/coupon"
)

const (
	findActiveCouponSQL = `SELECT id, restaurant_id, code, discount_type, value,
		active, valid_from, valid_until, max_uses, uses, min_order
		FROM coupons
		WHERE restaurant_id = $1 AND UPPER(code) = UPPER($2) AND active = TRUE`

	incrementCouponUsesSQL = `UPDATE coupons SET uses = uses + 1 WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActive looks up an active coupon by restaurant scope and code
// (case-insensitive). Returns coupon.ErrNotFound when no match exists.
func (r *CouponRepository) FindActive(ctx context.Context, restaurantID, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, findActiveCouponSQL, restaurantID, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &rule, nil
}

// IncrementUses atomically increments the usage counter for the given coupon.
func (r *CouponRepository) IncrementUses(ctx context.Context, couponID string) error {
	_, err := r.pool.Exec(ctx, incrementCouponUsesSQL, couponID)
	if err != nil {
		return fmt.Errorf("incrementing uses for coupon %q: %w", couponID, err)
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		value        decimal.Decimal
		validFrom    *time.Time
		validUntil   *time.Time
		maxUses      int32
		uses         int32
		minOrder     decimal.Decimal
	)
	err := row.Scan(
		&rule.ID, &rule.RestaurantID, &rule.Code, &discountType, &value,
		&rule.Active, &validFrom, &validUntil, &maxUses, &uses, &minOrder,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.Value = value
	rule.ValidFrom = validFrom
	rule.ValidUntil = validUntil
	rule.MaxUses = int(maxUses)
	rule.Uses = int(uses)
	rule.MinOrder = minOrder
	return rule, err
}
