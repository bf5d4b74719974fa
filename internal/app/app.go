// Package app wires every dependency and runs the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/zapmenu/zapmenu/internal/domain/coupon"
	"github.com/zapmenu/zapmenu/internal/domain/order"
	"github.com/zapmenu/zapmenu/internal/domain/payment"
	"github.com/zapmenu/zapmenu/internal/handler"
	"github.com/zapmenu/zapmenu/internal/mq"
	"github.com/zapmenu/zapmenu/internal/notification"
	"github.com/zapmenu/zapmenu/internal/storage/postgres"
	"github.com/zapmenu/zapmenu/pkg/health"
	"github.com/zapmenu/zapmenu/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	restaurantRepo := postgres.NewRestaurantRepository(pool)
	menuRepo := postgres.NewMenuRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	orderPayRepo := postgres.NewOrderPaymentRepository(pool)
	subPayRepo := postgres.NewSubscriptionPaymentRepository(pool)

	// Domain services.
	engine := coupon.NewEngine(couponRepo)
	dispatcher := order.NewDispatcher(order.DispatcherConfig{
		StoreURL:      cfg.Dispatch.StoreURL,
		PersistOrders: cfg.Dispatch.PersistOrders,
	}, &http.Client{Timeout: 10 * time.Second}, order.DirectCourier{}, order.DirectCourier{})
	orderSvc := order.NewService(orderRepo, engine, couponRepo, dispatcher)
	reconciler := payment.NewReconciler(orderPayRepo, subPayRepo, orderRepo)

	// Status notifications over RabbitMQ, disabled without a broker URL.
	var notifier notification.Publisher = notification.NopPublisher{}
	if cfg.AMQPURL != "" {
		client, err := mq.Dial(cfg.AMQPURL)
		if err != nil {
			return errors.Wrap(err, "connect rabbitmq")
		}
		defer client.Close()

		pub, err := notification.NewAMQPPublisher(client)
		if err != nil {
			return errors.Wrap(err, "create status publisher")
		}
		notifier = pub

		healthSvc.AddReadinessCheck("rabbitmq", time.Second, func(context.Context) error {
			return client.Ping()
		})

		worker := notification.NewNotifier(client, lg.Named("notifier"))
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("Notifier stopped", zap.Error(err))
			}
		}()
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP surface: health endpoints + API routes on one server.
	h := handler.New(restaurantRepo, menuRepo, orderRepo, orderSvc, reconciler, notifier, []byte(cfg.WebhookToken))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", http.StripPrefix("/api", h.Routes()))

	instrumented := otelhttp.NewHandler(mux, "zapmenu-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Asaas-Access-Token"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
