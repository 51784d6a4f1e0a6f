package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/unistock/internal/app"
	"github.com/odyssey-erp/unistock/internal/assets"
	"github.com/odyssey-erp/unistock/internal/catalog"
	"github.com/odyssey-erp/unistock/internal/ledger"
	"github.com/odyssey-erp/unistock/internal/observability"
	"github.com/odyssey-erp/unistock/internal/platform/cache"
	"github.com/odyssey-erp/unistock/internal/platform/db"
	"github.com/odyssey-erp/unistock/internal/reconcile"
	"github.com/odyssey-erp/unistock/internal/reports"
	"github.com/odyssey-erp/unistock/internal/shared"
	"github.com/odyssey-erp/unistock/internal/tenancy"
	"github.com/odyssey-erp/unistock/internal/vouchers"
	"github.com/odyssey-erp/unistock/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	shutdownTracer, err := app.InitTracer(ctx, cfg, logger)
	if err != nil {
		logger.Error("init tracer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("tracer shutdown", slog.Any("error", err))
		}
	}()

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	tenancyMiddleware := tenancy.Middleware{Logger: logger}
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	locker := shared.NewLocker(cache.NewLocker(redisClient), cfg.ConfirmLockTTL)
	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)

	catalogService := catalog.NewService(catalog.NewStore(dbpool))
	ledgerService := ledger.NewPoolService(dbpool)
	assetService := assets.NewService(assets.NewRepository(dbpool), auditLogger, logger)
	voucherService := vouchers.NewService(vouchers.NewRepository(dbpool), auditLogger, idempotencyStore, vouchers.ServiceConfig{
		StrictReturns: cfg.StrictReturns,
		Locker:        locker,
		Notifier:      reportCache,
		Metrics:       vouchers.NewMetrics(metrics.Registerer()),
		Logger:        logger,
	})
	reconcileService := reconcile.NewService(reconcile.NewRepository(dbpool), reconcile.Config{
		Locker:   locker,
		Notifier: reportCache,
		Logger:   logger,
	})
	reportService := reports.NewService(reports.NewRepository(dbpool), reportCache)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Tenancy: tenancyMiddleware,
		Metrics: metrics,
		API: []app.Mounter{
			catalog.NewHandler(logger, catalogService),
			ledger.NewHandler(logger, ledgerService),
			assets.NewHandler(logger, assetService, tenancyMiddleware),
			vouchers.NewHandler(logger, voucherService, tenancyMiddleware),
			reconcile.NewHandler(logger, reconcileService, tenancyMiddleware),
			reports.NewHandler(logger, reportService),
		},
		JobHandler: jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	logger.Info("http server stopped")
}
