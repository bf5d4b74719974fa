package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Engine validates a coupon code against an order subtotal within a
// restaurant scope and computes the resulting discount.
type Engine struct {
	repo Repository
	now  func() time.Time
}

// NewEngine creates an Engine backed by the given Repository.
func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// Normalize trims surrounding whitespace and upper-cases a raw coupon code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate normalizes the code, looks up the active rule for the restaurant,
// checks the validity window, usage limit and minimum subtotal in that order
// (short-circuiting on the first failure), and computes the discount.
//
// Validate has no side effects: the usage counter is incremented by the order
// placement step, exactly once per successfully placed order.
func (e *Engine) Validate(ctx context.Context, restaurantID, rawCode string, subtotal decimal.Decimal) (*Discount, error) {
	code := Normalize(rawCode)

	rule, err := e.repo.FindActive(ctx, restaurantID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := e.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrNotYetValid
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrUsageLimitReached
	}

	if rule.MinOrder.IsPositive() && subtotal.LessThan(rule.MinOrder) {
		return nil, &BelowMinimumError{Minimum: rule.MinOrder}
	}

	return &Discount{
		Amount:   computeAmount(rule, subtotal),
		CouponID: rule.ID,
		Code:     code,
	}, nil
}

// computeAmount applies the rule to the subtotal. The result is clamped to
// [0, subtotal]: a discount can never exceed or invert the order value, even
// for fixed discounts larger than the subtotal.
func computeAmount(rule *Rule, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFixed:
		amount = rule.Value
	default:
		amount = decimal.Zero
	}

	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(subtotal) {
		amount = subtotal
	}
	return amount.Round(2)
}
