package main

import (
	"context"
	"os"
	"time"

	"finance/internal/cache"
	"finance/internal/cli"
	apphttp "finance/internal/http"
	applog "finance/internal/log"
	"finance/internal/services"
	"finance/internal/storage"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	db := cli.InitStorage(context.Background(), logger, cfg.SQLiteDBPath)
	defer db.Close()

	repo := storage.NewMonthRepository(db)

	var opts []services.Option
	if publisher := cli.InitPublisher(logger, cfg); publisher != nil {
		defer publisher.Close()
		opts = append(opts, services.WithPublisher(publisher))
	}

	caches := cache.NewManager()
	if cfg.CacheEnabled() {
		views := cache.NewLRUCache[services.MonthView](cfg.CacheSize, cfg.CacheTTL)
		caches.Register(views)
		caches.StartCleanup(cfg.CacheTTL)
		opts = append(opts, services.WithCache(views))
		logger.Info("Month cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL.String())
	}
	defer caches.Stop()

	months := services.NewMonthService(repo, opts...)

	srv := apphttp.NewServer(":"+cfg.Port, months, apphttp.Options{
		Logger: logger.WithComponent(applog.ComponentHTTP),
		Ready:  db.Ping,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting finance server", "port", cfg.Port, "db", db.Path())
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
