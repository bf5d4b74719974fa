package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapmenu/zapmenu/internal/domain/menu"
)

const listMenuItemsSQL = `SELECT id, restaurant_id, name, description, price, category, available
	FROM menu_items
	WHERE restaurant_id = $1 AND available = TRUE
	ORDER BY category, name`

var _ menu.Repository = (*MenuRepository)(nil)

// MenuRepository implements menu.Repository backed by PostgreSQL.
type MenuRepository struct {
	pool *pgxpool.Pool
}

// NewMenuRepository returns a MenuRepository that uses the given pool.
func NewMenuRepository(pool *pgxpool.Pool) *MenuRepository {
	return &MenuRepository{pool: pool}
}

// ListByRestaurant returns the available items of a restaurant.
func (r *MenuRepository) ListByRestaurant(ctx context.Context, restaurantID string) ([]menu.Item, error) {
	rows, err := r.pool.Query(ctx, listMenuItemsSQL, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("listing menu for restaurant %q: %w", restaurantID, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (menu.Item, error) {
		var item menu.Item
		err := row.Scan(&item.ID, &item.RestaurantID, &item.Name, &item.Description,
			&item.Price, &item.Category, &item.Available)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing menu for restaurant %q: %w", restaurantID, err)
	}
	return items, nil
}
