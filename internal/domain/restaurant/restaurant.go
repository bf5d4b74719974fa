// Package restaurant holds the restaurant profile consumed by the ordering
// pipeline: the WhatsApp destination, delivery fee and display name.
package restaurant

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a restaurant id matches no row.
var ErrNotFound = errors.New("restaurant not found")

// Restaurant is the scope for coupons, menu items and orders.
type Restaurant struct {
	ID            string
	Name          string
	WhatsAppPhone string
	DeliveryFee   decimal.Decimal
	Address       string
}

// Repository defines read operations for restaurant profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Restaurant, error)
}
