package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/cartline-backend/api"
	"github.com/angelmondragon/cartline-backend/api/controllers"
	"github.com/angelmondragon/cartline-backend/api/routes"
	"github.com/angelmondragon/cartline-backend/internal/cart"
	"github.com/angelmondragon/cartline-backend/internal/checkout"
	"github.com/angelmondragon/cartline-backend/internal/merchants"
	"github.com/angelmondragon/cartline-backend/internal/notifications"
	"github.com/angelmondragon/cartline-backend/internal/orders"
	"github.com/angelmondragon/cartline-backend/internal/products"
	"github.com/angelmondragon/cartline-backend/internal/users"
	"github.com/angelmondragon/cartline-backend/pkg/config"
	"github.com/angelmondragon/cartline-backend/pkg/db"
	"github.com/angelmondragon/cartline-backend/pkg/logger"
	"github.com/angelmondragon/cartline-backend/pkg/metrics"
	"github.com/angelmondragon/cartline-backend/pkg/migrate"
	"github.com/angelmondragon/cartline-backend/pkg/money"
	"github.com/angelmondragon/cartline-backend/pkg/outbox"
	"github.com/angelmondragon/cartline-backend/pkg/pubsub"
	"github.com/angelmondragon/cartline-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	readiness := map[string]controllers.Pinger{
		"db":    dbClient,
		"redis": redisClient,
	}

	var sender notifications.Sender = notifications.NewLogSender(logg)
	if cfg.Notifications.UsesPubSub() {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.Notifications, logg)
		requireResource(ctx, logg, "pubsub", err)
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()

		pubsubSender, err := notifications.NewPubSubSender(pubsubClient.NotificationsPublisher())
		requireResource(ctx, logg, "notification sender", err)
		sender = pubsubSender
		readiness["pubsub"] = pubsubClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	formatter, err := money.NewFromConfig(cfg.Checkout)
	requireResource(ctx, logg, "money formatter", err)

	conn := dbClient.DB()
	productLookup, err := products.NewLookup(products.NewRepository(conn))
	requireResource(ctx, logg, "product lookup", err)

	userRepo := users.NewRepository(conn)
	merchantRepo := merchants.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)

	checkoutService, err := checkout.NewService(checkout.Params{
		Tx:        dbClient,
		Carts:     cartRepo,
		Orders:    orderRepo,
		Products:  productLookup,
		Users:     userRepo,
		Merchants: merchantRepo,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Sender:    sender,
		Formatter: formatter,
		Config:    cfg.Checkout,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "checkout service", err)

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:      cartRepo,
		Tx:        dbClient,
		Products:  productLookup,
		Formatter: formatter,
		Recoverer: checkoutService,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "cart service", err)

	ordersService, err := orders.NewService(orderRepo, userRepo, merchantRepo, formatter)
	requireResource(ctx, logg, "orders service", err)

	router := routes.NewRouter(cfg, logg, routes.Dependencies{
		Cart:        cartService,
		Checkout:    checkoutService,
		Orders:      ordersService,
		Idempotency: redisClient,
		Readiness:   readiness,
		Metrics:     registry,
	})

	server := api.NewServer(cfg, os.Getenv("PORT"), router)

	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":                    cfg.App.Env,
		"addr":                   server.Addr,
		"notification_transport": cfg.Notifications.Transport,
	})
	logg.Info(serverCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
