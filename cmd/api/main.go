package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theluxmining/commerce-backend/api/routes"
	addresssvc "github.com/theluxmining/commerce-backend/internal/address"
	cartsvc "github.com/theluxmining/commerce-backend/internal/cart"
	ordersvc "github.com/theluxmining/commerce-backend/internal/orders"
	paymentsvc "github.com/theluxmining/commerce-backend/internal/payments"
	"github.com/theluxmining/commerce-backend/internal/products"
	shippingsvc "github.com/theluxmining/commerce-backend/internal/shipping"
	stripewebhook "github.com/theluxmining/commerce-backend/internal/webhooks/stripe"
	"github.com/theluxmining/commerce-backend/pkg/config"
	"github.com/theluxmining/commerce-backend/pkg/db"
	"github.com/theluxmining/commerce-backend/pkg/logger"
	"github.com/theluxmining/commerce-backend/pkg/metrics"
	"github.com/theluxmining/commerce-backend/pkg/migrate"
	"github.com/theluxmining/commerce-backend/pkg/redis"
	"github.com/theluxmining/commerce-backend/pkg/stripe"
)

const (
	webhookGuardTTL = 24 * time.Hour
	shutdownTimeout = 15 * time.Second
)

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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.Features.UseSQLite, logg)
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}
	gateway := stripe.NewGateway(stripeClient)

	registry := prometheus.NewRegistry()
	checkout := metrics.NewCheckoutMetrics(registry)

	cartRepo := cartsvc.NewRepository(dbClient.DB())
	productRepo := products.NewRepository(dbClient.DB())
	paymentRepo := paymentsvc.NewRepository(dbClient.DB())
	orderRepo := ordersvc.NewRepository(dbClient.DB())
	addressRepo := addresssvc.NewRepository(dbClient.DB())
	eventRepo := stripewebhook.NewEventRepository(dbClient.DB())

	cartService, err := cartsvc.NewService(cartRepo, dbClient, productRepo, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	shippingService, err := shippingsvc.NewService(cartRepo, shippingsvc.NewTableEngine(), cfg.Shipping.QuoteTimeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping service", err)
		os.Exit(1)
	}

	paymentService, err := paymentsvc.NewService(paymentRepo, cartRepo, gateway, checkout, cfg.Payments.ConfirmTimeout, cfg.Payments.Currency)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	orderService, err := ordersvc.NewService(orderRepo, cartService, redisClient, checkout, ordersvc.WatchConfig{
		MaxAttempts:  cfg.OrderWatch.MaxAttempts,
		PollInterval: cfg.OrderWatch.PollInterval,
		ClearTTL:     cfg.OrderWatch.ClearTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	addressService, err := addresssvc.NewService(addressRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		CartRepo:          cartRepo,
		PaymentRepo:       paymentRepo,
		OrderRepo:         orderRepo,
		ProductRepo:       productRepo,
		EventRepo:         eventRepo,
		TransactionRunner: dbClient,
		Metrics:           checkout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "stripe_webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			ProductRepo:    productRepo,
			CartService:    cartService,
			ShippingSvc:    shippingService,
			PaymentSvc:     paymentService,
			OrderSvc:       orderService,
			AddressSvc:     addressService,
			StripeClient:   stripeClient,
			WebhookService: webhookService,
			WebhookGuard:   webhookGuard,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithFields(ctx, map[string]any{"signal": sig.String()}), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
