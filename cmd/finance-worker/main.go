package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finance/internal/backend"
	"finance/internal/cli"
	applog "finance/internal/log"
	"finance/internal/storage"
	"finance/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger = logger.WithComponent(applog.ComponentWorker)
	logger.Info("Starting finance-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	db := cli.InitStorage(context.Background(), logger, cfg.SQLiteDBPath)
	defer db.Close()

	exportCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid export backend", "error", err)
		os.Exit(1)
	}
	writer, err := backend.NewFactory(logger.Logger).Create(context.Background(), exportCfg)
	if err != nil {
		logger.Error("Failed to initialize export backend", "error", err, "backend", exportCfg.Type.String())
		os.Exit(1)
	}

	exporter := worker.NewExportWorker(storage.NewMonthRepository(db), writer)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)

	if consumer := cli.InitPublisher(logger, cfg); consumer != nil {
		defer consumer.Close()
		g.Go(func() error {
			return consumer.ConsumeMonthEvents(gctx, exporter.HandleMonthEvent)
		})
	} else {
		logger.Info("Skipping AMQP consumption - periodic export only")
	}

	g.Go(func() error {
		return exporter.Run(gctx, cfg.ExportInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
