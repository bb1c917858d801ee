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

	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/shipping"
	"github.com/angelmondragon/storefront-checkout/internal/vouchers"
	"github.com/angelmondragon/storefront-checkout/pkg/carrier"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
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
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	catalogClient, err := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, nil)
	requireResource(ctx, logg, "catalog client", err)
	cachedLookup, err := catalog.NewCachedLookup(catalogClient, redisClient, cfg.Catalog.CacheTTL, logg)
	requireResource(ctx, logg, "catalog redis cache", err)
	catalogCache, err := catalog.NewCache(cachedLookup, logg)
	requireResource(ctx, logg, "catalog cache", err)

	voucherClient, err := vouchers.NewClient(cfg.Vouchers.BaseURL, cfg.Vouchers.Timeout, nil)
	requireResource(ctx, logg, "voucher client", err)

	carrierClient, err := carrier.NewClient(cfg.Carrier.BaseURL, cfg.Carrier.Token,
		carrier.WithShopID(cfg.Carrier.ShopID),
		carrier.WithTimeout(cfg.Carrier.Timeout),
	)
	requireResource(ctx, logg, "carrier client", err)

	orchestrator, err := shipping.NewOrchestrator(
		carrierClient,
		shipping.NewTierSelector(cfg.Checkout.LightTierMaxGrams, cfg.Checkout.DefaultWeightGrams),
		checkoutMetrics,
		logg,
	)
	requireResource(ctx, logg, "shipping orchestrator", err)

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, logg)
	requireResource(ctx, logg, "orders service", err)

	pendingStore, err := checkout.NewPendingStore(redisClient, cfg.Checkout.PendingTTL)
	requireResource(ctx, logg, "pending checkout store", err)

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Cart:      cart.NewRepository(dbClient.DB()),
		Catalog:   catalogCache,
		Vouchers:  voucherClient,
		Quoter:    orchestrator,
		Submitter: ordersService,
		Pending:   pendingStore,
		Metrics:   checkoutMetrics,
		Logger:    logg,
		Debounce:  cfg.Checkout.QuoteDebounce,
	})
	requireResource(ctx, logg, "checkout service", err)
	defer checkoutService.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			redisClient,
			registry,
			checkoutService,
			ordersService,
		),
	}

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
			logg.Error(serverCtx, "api server shutdown failed", err)
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
