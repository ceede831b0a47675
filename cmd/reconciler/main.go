package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	addresssvc "github.com/priyankdesai/storefront-backend/internal/address"
	"github.com/priyankdesai/storefront-backend/internal/cart"
	"github.com/priyankdesai/storefront-backend/internal/orders"
	"github.com/priyankdesai/storefront-backend/internal/payments"
	"github.com/priyankdesai/storefront-backend/internal/reconcile"
	"github.com/priyankdesai/storefront-backend/pkg/cashfree"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/db"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/metrics"
	"github.com/priyankdesai/storefront-backend/pkg/razorpay"
	"github.com/priyankdesai/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconciler"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "reconciler",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gormDB := dbClient.DB()

	var rzpGateway payments.RazorpayGateway
	if cfg.Payments.RazorpayEnabled && cfg.Razorpay.KeyID != "" {
		rzpClient, err := razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create razorpay client", err)
			os.Exit(1)
		}
		rzpGateway = rzpClient
	}
	var cfGateway payments.CashfreeGateway
	if cfg.Payments.CashfreeEnabled && cfg.Cashfree.AppID != "" {
		cfClient, err := cashfree.NewClient(context.Background(), cfg.Cashfree, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create cashfree client", err)
			os.Exit(1)
		}
		cfGateway = cfClient
	}

	// One provider call per intent; a sweep over a full batch must finish
	// inside the lock TTL, and unsettled payments come back next cycle.
	verifier, err := payments.NewVerifier(rzpGateway, cfGateway, logg, payments.WithSingleCheck())
	if err != nil {
		logg.Error(context.Background(), "failed to create payment verifier", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gormDB)
	creator, err := orders.NewCreator(ordersRepo, cart.NewRepository(gormDB), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order creator", err)
		os.Exit(1)
	}
	addressService, err := addresssvc.NewService(addresssvc.NewRepository(gormDB), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	sweeper, err := reconcile.NewSweeper(reconcile.SweeperParams{
		Logger:     logg,
		Intents:    ordersRepo,
		Creator:    creator,
		Addresses:  addressService,
		Verifier:   verifier,
		Lock:       redisClient,
		Metrics:    metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer),
		Config:     cfg.Reconciler,
		AbandonTTL: cfg.Checkout.IntentAbandonTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Reconciler.Interval.String(),
	})
	logg.Info(ctx, "starting payment reconciler")

	if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconciler stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "reconciler stopped")
}
