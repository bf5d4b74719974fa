package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zapmenu/zapmenu/internal/domain/restaurant"
)

const getRestaurantSQL = `SELECT id, name, whatsapp_phone, delivery_fee, address
	FROM restaurants WHERE id = $1`

var _ restaurant.Repository = (*RestaurantRepository)(nil)

// RestaurantRepository implements restaurant.Repository backed by PostgreSQL.
type RestaurantRepository struct {
	pool *pgxpool.Pool
}

// NewRestaurantRepository returns a RestaurantRepository using the pool.
func NewRestaurantRepository(pool *pgxpool.Pool) *RestaurantRepository {
	return &RestaurantRepository{pool: pool}
}

// GetByID fetches one restaurant profile. Returns restaurant.ErrNotFound
// when absent.
func (r *RestaurantRepository) GetByID(ctx context.Context, id string) (*restaurant.Restaurant, error) {
	rows, err := r.pool.Query(ctx, getRestaurantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}

	rest, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (restaurant.Restaurant, error) {
		var rest restaurant.Restaurant
		err := row.Scan(&rest.ID, &rest.Name, &rest.WhatsAppPhone, &rest.DeliveryFee, &rest.Address)
		return rest, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, restaurant.ErrNotFound
		}
		return nil, fmt.Errorf("getting restaurant %q: %w", id, err)
	}
	return &rest, nil
}
