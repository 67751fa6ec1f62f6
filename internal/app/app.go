// Package app wires configuration, storage, domain services, and the HTTP
// server into a running process.
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

	"github.com/xenking/storefront/internal/api"
	"github.com/xenking/storefront/internal/cache"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// backend bundles the storage implementation behind the domain interfaces.
type backend struct {
	uow    order.UnitOfWork
	stores order.Stores
	close  func()
	ping   func(ctx context.Context) error
}

func newBackend(ctx context.Context, lg *zap.Logger, cfg *Config) (*backend, error) {
	if cfg.DatabaseURL == "" {
		lg.Warn("No database URL configured, using in-memory store")
		store := memory.NewStore()
		return &backend{
			uow:    store,
			stores: order.Stores{Catalog: store.Catalog(), Carts: store.Carts(), Orders: store.Orders()},
			close:  func() {},
			ping:   func(context.Context) error { return nil },
		}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	uow := postgres.NewUnitOfWork(pool)
	return &backend{
		uow:    uow,
		stores: uow.Stores(),
		close:  pool.Close,
		ping:   pool.Ping,
	}, nil
}

func newCache(ctx context.Context, lg *zap.Logger, cfg *Config) (cache.Cache, func(), error) {
	if cfg.RedisURL == "" {
		lg.Info("No redis URL configured, response caching disabled")
		return cache.Noop{}, func() {}, nil
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect redis")
	}
	return r, func() { _ = r.Close() }, nil
}

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	be, err := newBackend(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer be.close()

	respCache, closeCache, err := newCache(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, be.ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	taxRate, err := cfg.Pricing.TaxRateDecimal()
	if err != nil {
		return err
	}
	shippingFee, freeOver, err := cfg.Pricing.ShippingDecimals()
	if err != nil {
		return err
	}

	catalogSvc := catalog.NewService(be.stores.Catalog)
	cartSvc := cart.NewService(be.stores.Carts, be.stores.Catalog)
	orderSvc := order.NewService(be.uow,
		order.WithTaxPolicy(order.FlatRateTax(taxRate)),
		order.WithShippingPolicy(order.ThresholdShipping(shippingFee, freeOver)),
	)

	// HTTP handlers.
	h := api.NewHandler(
		api.HandlerConfig{DefaultCurrency: cfg.Currency},
		catalogSvc, cartSvc, orderSvc, respCache,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	instrumented := otelhttp.NewHandler(mux, "storefront-api",
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
				AllowHeaders:     []string{"Content-Type", "Authorization"},
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
