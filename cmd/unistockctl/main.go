package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/unistock/cmd/unistockctl/cli"
	"github.com/odyssey-erp/unistock/internal/app"
	"github.com/odyssey-erp/unistock/internal/platform/cache"
	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/platform/migration"
	"github.com/odyssey-erp/unistock/internal/reconcile"
	"github.com/odyssey-erp/unistock/internal/reports"
	"github.com/odyssey-erp/unistock/internal/shared"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	root := cli.NewRootCommand(cli.Runtime{
		Logger:        logger,
		DSN:           cfg.PGDSN,
		MigrationsDir: cfg.MigrationsDir,
		Migrate:       migration.Up,
		NewReconciler: func(ctx context.Context) (cli.Reconciler, func(), error) {
			return newReconciler(ctx, cfg, logger)
		},
		NewQueue: func() (cli.Queue, error) {
			return cli.NewJobsCLI(cfg.RedisAddr)
		},
		NewExecer: func(ctx context.Context) (cli.Execer, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN)
			if err != nil {
				return nil, nil, err
			}
			return pool, pool.Close, nil
		},
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newReconciler(ctx context.Context, cfg *app.Config, logger *slog.Logger) (cli.Reconciler, func(), error) {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	svc := reconcile.NewService(reconcile.NewRepository(pool), reconcile.Config{
		Locker:   shared.NewLocker(cache.NewLocker(redisClient), cfg.ConfirmLockTTL),
		Notifier: reports.NewCache(redisClient, cfg.ReportCacheTTL),
		Logger:   logger,
	})
	return svc, func() {
		_ = redisClient.Close()
		pool.Close()
	}, nil
}
