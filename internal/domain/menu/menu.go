// Package menu exposes the catalog items a restaurant offers.
package menu

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item is one catalog entry shown on the digital menu.
type Item struct {
	ID           string
	RestaurantID string
	Name         string
	Description  string
	Price        decimal.Decimal
	Category     string
	Available    bool
}

// Repository defines read operations for the menu catalog.
type Repository interface {
	// ListByRestaurant returns the available items of a restaurant in
	// category, then name order.
	ListByRestaurant(ctx context.Context, restaurantID string) ([]Item, error)
}
