package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bakery-erp/cmd/erpctl/cli"
	"github.com/odyssey-erp/bakery-erp/internal/app"
	"github.com/odyssey-erp/bakery-erp/internal/inventory"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/locations"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/products"
	"github.com/odyssey-erp/bakery-erp/internal/masterdata/taxes"
	"github.com/odyssey-erp/bakery-erp/internal/platform/db"
	"github.com/odyssey-erp/bakery-erp/internal/posting"
	"github.com/odyssey-erp/bakery-erp/internal/rbac"
	"github.com/odyssey-erp/bakery-erp/internal/schema"
	"github.com/odyssey-erp/bakery-erp/internal/settings"
	"github.com/odyssey-erp/bakery-erp/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(cli.Execute(ctx, connect, os.Args[1:], os.Stdout, os.Stderr))
}

func connect(ctx context.Context) (*cli.Services, func(), error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
	if err != nil {
		return nil, nil, err
	}
	// The CLI must not serve stale settings after a seed; it writes through
	// and bumps the cache version on the shared Redis.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	settingsStore := settings.NewStore(settings.NewPgRepository(pool), redisClient, cfg.SettingsCacheTTL, logger)
	authorizer := rbac.NewAuthorizer(rbac.NewPgRepository(pool), logger)
	audit := shared.NewAuditLogger(pool)

	postingService := posting.NewService(posting.NewRepository(pool), posting.ServiceConfig{
		Catalog:           products.NewService(products.NewRepository(pool)),
		Taxes:             taxes.NewService(taxes.NewRepository(pool)),
		Locations:         locations.NewService(locations.NewRepository(pool)),
		Settings:          settingsStore,
		Audit:             audit,
		Authorizer:        authorizer,
		Logger:            logger,
		CentralLocationID: cfg.CentralLocationID,
		Prefixes:          cfg.Prefixes(),
	})
	inventoryService := inventory.NewService(inventory.NewRepository(pool), inventory.ServiceConfig{
		Audit:      audit,
		Authorizer: authorizer,
		Logger:     logger,
	})
	jobsCLI := cli.NewJobsCLI(cfg.Redis().Asynq())
	jobsCLI.IntegrityLookbackDays = cfg.IntegrityLookbackDays
	jobsCLI.IdempotencyRetention = cfg.IdempotencyRetention

	closeFn := func() {
		_ = jobsCLI.Close()
		_ = redisClient.Close()
		pool.Close()
	}
	return &cli.Services{
		Settings:     settingsStore,
		Stock:        inventoryService,
		Transactions: postingService,
		Jobs:         jobsCLI,
		Schema:       migrator{pool: pool},
	}, closeFn, nil
}

type migrator struct {
	pool *pgxpool.Pool
}

func (m migrator) Migrate(ctx context.Context) ([]string, error) {
	return db.Migrate(ctx, m.pool, schema.Migrations)
}
