// Command seed-db loads a demo restaurant with menu items and coupons so a
// fresh database is immediately usable.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zapmenu/zapmenu/internal/domain/order"
	"github.com/zapmenu/zapmenu/internal/storage/postgres"
)

type menuItemSeed struct {
	name        string
	description string
	price       string
	category    string
}

var menuSeed = []menuItemSeed{
	{"Pizza Margherita", "Molho de tomate, mussarela e manjericão", "42.90", "Pizzas"},
	{"Pizza Calabresa", "Calabresa fatiada e cebola", "45.90", "Pizzas"},
	{"Hambúrguer da Casa", "Blend 180g, queijo e maionese artesanal", "29.90", "Lanches"},
	{"Batata Frita", "Porção com 300g", "18.00", "Porções"},
	{"Refrigerante Lata", "350ml", "6.00", "Bebidas"},
	{"Suco Natural", "Laranja ou limão, 500ml", "9.50", "Bebidas"},
}

type couponSeed struct {
	code         string
	discountType string
	value        string
	minOrder     string
	maxUses      int
}

var couponsSeed = []couponSeed{
	{"BEMVINDO10", "percentage", "10", "30", 0},
	{"FRETEGRATIS", "fixed", "8", "50", 0},
	{"PROMO5", "fixed", "5", "0", 100},
}

func main() {
	var (
		databaseURL  string
		restaurantID string
		name         string
		phone        string
		deliveryFee  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&restaurantID, "restaurant-id", "demo", "restaurant id to seed")
	flag.StringVar(&name, "name", "Cantina Demo", "restaurant display name")
	flag.StringVar(&phone, "phone", "5511999887766", "restaurant whatsapp phone, digits only with country code")
	flag.StringVar(&deliveryFee, "delivery-fee", "8.00", "delivery fee")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, restaurantID, name, phone, deliveryFee); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully", slog.String("restaurant_id", restaurantID))
}

func run(ctx context.Context, databaseURL, restaurantID, name, phone, deliveryFee string) error {
	fee, err := decimal.NewFromString(deliveryFee)
	if err != nil {
		return errors.Wrap(err, "parse delivery fee")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedRestaurant(ctx, pool, restaurantID, name, phone, fee); err != nil {
		return err
	}
	if err := seedMenu(ctx, pool, restaurantID); err != nil {
		return err
	}
	if err := seedCoupons(ctx, pool, restaurantID); err != nil {
		return err
	}
	return seedDemoOrder(ctx, pool, restaurantID)
}

func seedRestaurant(ctx context.Context, pool *pgxpool.Pool, id, name, phone string, fee decimal.Decimal) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO restaurants (id, name, whatsapp_phone, delivery_fee)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, whatsapp_phone = EXCLUDED.whatsapp_phone,
		     delivery_fee = EXCLUDED.delivery_fee`,
		id, name, phone, fee,
	)
	return errors.Wrap(err, "seed restaurant")
}

func seedMenu(ctx context.Context, pool *pgxpool.Pool, restaurantID string) error {
	for _, item := range menuSeed {
		price, err := decimal.NewFromString(item.price)
		if err != nil {
			return errors.Wrapf(err, "parse price for %q", item.name)
		}
		_, err = pool.Exec(ctx,
			`INSERT INTO menu_items (id, restaurant_id, name, description, price, category)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), restaurantID, item.name, item.description, price, item.category,
		)
		if err != nil {
			return errors.Wrapf(err, "seed menu item %q", item.name)
		}
	}
	slog.Info("menu seeded", slog.Int("items", len(menuSeed)))
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, restaurantID string) error {
	for _, c := range couponsSeed {
		value, err := decimal.NewFromString(c.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for %q", c.code)
		}
		minOrder, err := decimal.NewFromString(c.minOrder)
		if err != nil {
			return errors.Wrapf(err, "parse min order for %q", c.code)
		}
		_, err = pool.Exec(ctx,
			`INSERT INTO coupons (id, restaurant_id, code, discount_type, value, min_order, max_uses)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (restaurant_id, UPPER(code)) DO NOTHING`,
			uuid.New().String(), restaurantID, c.code, c.discountType, value, minOrder, c.maxUses,
		)
		if err != nil {
			return errors.Wrapf(err, "seed coupon %q", c.code)
		}
	}
	slog.Info("coupons seeded", slog.Int("coupons", len(couponsSeed)))
	return nil
}

// seedDemoOrder creates one pending order with a pending payment record so
// the payment webhook can be exercised right after seeding (provider payment
// id "pay_demo_1").
func seedDemoOrder(ctx context.Context, pool *pgxpool.Pool, restaurantID string) error {
	o := &order.Order{
		ID:            uuid.New().String(),
		RestaurantID:  restaurantID,
		CustomerName:  "Cliente Demo",
		CustomerPhone: "5511988776655",
		Items: []order.OrderItem{
			{Name: "Pizza Margherita", Price: decimal.RequireFromString("42.90"), Quantity: 1},
		},
		Subtotal:    decimal.RequireFromString("42.90"),
		Discount:    decimal.Zero,
		DeliveryFee: decimal.Zero,
		Total:       decimal.RequireFromString("42.90"),
		Fulfillment: order.FulfillmentPickup,
		Status:      order.StatusPending,
		CreatedAt:   time.Now(),
	}

	if err := postgres.NewOrderRepository(pool).Create(ctx, o); err != nil {
		return errors.Wrap(err, "seed demo order")
	}

	err := postgres.NewOrderPaymentRepository(pool).Create(ctx, uuid.New().String(), "pay_demo_1", o.ID)
	if err != nil {
		return errors.Wrap(err, "seed demo payment record")
	}

	slog.Info("demo order seeded",
		slog.String("order_id", o.ID),
		slog.String("provider_payment_id", "pay_demo_1"))
	return nil
}
