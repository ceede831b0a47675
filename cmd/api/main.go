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

	"github.com/priyankdesai/storefront-backend/api/routes"
	addresssvc "github.com/priyankdesai/storefront-backend/internal/address"
	"github.com/priyankdesai/storefront-backend/internal/cart"
	checkoutsvc "github.com/priyankdesai/storefront-backend/internal/checkout"
	"github.com/priyankdesai/storefront-backend/internal/orders"
	"github.com/priyankdesai/storefront-backend/internal/payments"
	"github.com/priyankdesai/storefront-backend/internal/shipping"
	razorpaywebhook "github.com/priyankdesai/storefront-backend/internal/webhooks/razorpay"
	"github.com/priyankdesai/storefront-backend/pkg/cashfree"
	"github.com/priyankdesai/storefront-backend/pkg/config"
	"github.com/priyankdesai/storefront-backend/pkg/db"
	"github.com/priyankdesai/storefront-backend/pkg/logger"
	"github.com/priyankdesai/storefront-backend/pkg/metrics"
	"github.com/priyankdesai/storefront-backend/pkg/migrate"
	"github.com/priyankdesai/storefront-backend/pkg/razorpay"
	"github.com/priyankdesai/storefront-backend/pkg/redis"
)

const webhookEventTTL = 48 * time.Hour

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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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

	cartService, err := cart.NewService(cart.NewRepository(gormDB), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	addressService, err := addresssvc.NewService(addresssvc.NewRepository(gormDB), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersService, err := orders.NewService(ordersRepo, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	creator, err := orders.NewCreator(ordersRepo, cart.NewRepository(gormDB), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order creator", err)
		os.Exit(1)
	}

	var rzpGateway payments.RazorpayGateway
	var rzpClient *razorpay.Client
	if cfg.Payments.RazorpayEnabled && cfg.Razorpay.KeyID != "" {
		rzpClient, err = razorpay.NewClient(context.Background(), cfg.Razorpay, logg)
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

	broker, err := payments.NewBroker(rzpGateway, cfGateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment broker", err)
		os.Exit(1)
	}
	verifier, err := payments.NewVerifier(rzpGateway, cfGateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment verifier", err)
		os.Exit(1)
	}

	methodsView := payments.Methods(cfg.Payments, rzpGateway != nil, cfGateway != nil)
	methods := func() payments.MethodsView { return methodsView }

	checkoutMetrics := metrics.NewCheckoutMetrics(prometheus.DefaultRegisterer)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.Deps{
		Sessions:  checkoutsvc.NewSessionRepository(gormDB),
		Cart:      cartService,
		Addresses: addressService,
		Shipping:  shipping.NewCalculator(cfg.Shipping),
		Broker:    broker,
		Verifier:  verifier,
		Creator:   creator,
		Orders:    ordersRepo,
		Locker:    redisClient,
		Methods:   methods,
		Metrics:   checkoutMetrics,
		Logger:    logg,
		Config:    cfg.Checkout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	var webhookService *razorpaywebhook.Service
	var webhookGuard *razorpaywebhook.EventGuard
	if rzpClient != nil {
		webhookService, err = razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
			Orders: ordersService,
			Logger: logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create webhook service", err)
			os.Exit(1)
		}
		webhookGuard, err = razorpaywebhook.NewEventGuard(redisClient, webhookEventTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create webhook guard", err)
			os.Exit(1)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			cartService,
			addressService,
			checkoutService,
			ordersService,
			methods,
			rzpClient,
			webhookService,
			webhookGuard,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeoutCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
