package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the order subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no active coupon matches the code within
	// the restaurant scope.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotYetValid is returned when the coupon's validity window has not started.
	ErrNotYetValid = errors.New("coupon not yet valid")
	// ErrExpired is returned when the coupon's validity window has ended.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// BelowMinimumError is returned when the order subtotal does not reach the
// coupon's minimum. It carries the minimum so callers can message it.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("order subtotal below coupon minimum of %s", e.Minimum.StringFixed(2))
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Codes are unique per restaurant and compared upper-cased.
type Rule struct {
	ID           string
	RestaurantID string
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	Active       bool
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
	MinOrder     decimal.Decimal
}

// Discount holds the computed discount amount and the coupon it came from.
type Discount struct {
	Amount decimal.Decimal
	// CouponID identifies the rule so the order placement step can increment
	// its usage counter exactly once after the order is persisted.
	CouponID string
	// Code is the normalized (trimmed, upper-cased) coupon code.
	Code string
}

// Repository provides lookup and mutation of coupon rules.
type Repository interface {
	// FindActive returns the active rule matching the normalized code within
	// the restaurant scope, or ErrNotFound when absent or inactive.
	FindActive(ctx context.Context, restaurantID, code string) (*Rule, error)
	// IncrementUses bumps the usage counter. The order placement step calls
	// it exactly once after the order is persisted; the Engine never does,
	// so retried validations cannot double-count.
	IncrementUses(ctx context.Context, couponID string) error
}
