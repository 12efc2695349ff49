package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/bakery-erp/internal/accounting"
	"github.com/odyssey-erp/bakery-erp/internal/app"
	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/locations"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/products"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/taxes"
	"github.com/odyssey-erp/bakery-erp/internal/observability"
	"github.com/odyssey-erp/bakery-erp/internal/platform/cache"
	"github.com/odyssey-erp/bakery-erp/internal/platform/db"
	"github.com/odyssey-erp/bakery-erp/internal/posting"
	"github.com/odyssey-erp/bakery-erp/internal/rbac"
	"github.com/odyssey-erp/bakery-erp/internal/settings"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
	"github.com/odyssey-erp/bakery-erp/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Settings fall back to Postgres when Redis is down, so a failed ping
	// only disables the cache.
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, settings cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	authorizer := rbac.NewAuthorizer(rbac.NewPgRepository(dbpool), logger)

	settingsStore := settings.NewStore(settings.NewPgRepository(dbpool), redisClient, cfg.SettingsCacheTTL, logger)
	productService := products.NewService(products.NewRepository(dbpool))
	locationService := locations.NewService(locations.NewRepository(dbpool))
	taxService := taxes.NewService(taxes.NewRepository(dbpool))

	redisOpts := cfg.Redis().Asynq()
	enqueuer := jobs.NewEnqueuer(redisOpts, logger)
	defer func() {
		if err := enqueuer.Close(); err != nil {
			logger.Warn("enqueuer close", slog.Any("error", err))
		}
	}()

	accountingService := accounting.NewService(accounting.NewRepository(dbpool), auditLogger, authorizer, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), inventory.ServiceConfig{
		Audit:      auditLogger,
		Authorizer: authorizer,
		Notifier:   enqueuer,
		Logger:     logger,
	})
	postingService := posting.NewService(posting.NewRepository(dbpool), posting.ServiceConfig{
		Catalog:           productService,
		Taxes:             taxService,
		Locations:         locationService,
		Settings:          settingsStore,
		Audit:             auditLogger,
		Authorizer:        authorizer,
		Notifier:          enqueuer,
		Metrics:           metrics,
		Logger:            logger,
		CentralLocationID: cfg.CentralLocationID,
		Prefixes:          cfg.Prefixes(),
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PostingHandler:    posting.NewHandler(logger, postingService, idempotencyStore).WithAuditTrail(auditLogger),
		InventoryHandler:  inventory.NewHandler(logger, inventoryService),
		AccountingHandler: accounting.NewHandler(logger, accountingService),
		SettingsHandler:   settings.NewHandler(logger, settingsStore),
		ProductsHandler:   products.NewHandler(logger, productService),
		LocationsHandler:  locations.NewHandler(logger, locationService),
		TaxesHandler:      taxes.NewHandler(logger, taxService),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
		Ready: func(r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			return dbpool.Ping(ctx)
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
