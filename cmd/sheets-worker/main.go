package main

import (
	"context"
	"errors"
	"os"
	"time"

	"maaser/internal/amqp"
	"maaser/internal/backend"
	"maaser/internal/cache"
	"maaser/internal/cli"
	"maaser/internal/log"
	"maaser/internal/services"
	"maaser/internal/worker"

	"golang.org/x/sync/errgroup"
)

const (
	dedupeSize = 10000
	dedupeTTL  = time.Hour
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout, log.ComponentWorker)
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Invalid log configuration", err)
	}
	logger.Info("Starting sheets-worker", log.FieldOperation, log.OpStartup)

	cacheManager := cache.NewManager(logger)
	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		cacheManager.Stop()
	})

	repo, err := cli.InitSQLite(ctx, logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to open ledger", err)
	}
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid export backend", err)
	}
	writer, err := backend.NewFactory(logger).CreateSink(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize export backend", err)
	}

	processor := services.NewExportProcessor(repo, writer, services.ExportProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
		MaxRetries:   services.DefaultExportProcessorConfig().MaxRetries,

		RetryParkedInterval: cfg.SyncRetryParked,
	}, logger)

	syncWorker := worker.NewSyncWorker(processor, dedupeSize, dedupeTTL, logger)
	cacheManager.Register(syncWorker.Seen())
	cacheManager.StartCleanup(5 * time.Minute)

	// On startup, export any entries whose messages were missed.
	logger.Info("Performing startup sync check...")
	syncWorker.StartupSyncCheck(ctx)

	// The poll loop is the backup for lost messages.
	if err := processor.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start export processor", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.WithLogger(logger))
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on periodic sweep", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			g.Go(func() error {
				err := amqpClient.ConsumeEntryCreated(gctx, syncWorker.HandleEntryCreated)
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	} else {
		logger.Info("AMQP disabled - entries are exported by the periodic sweep only")
	}

	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return processor.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Sheets-worker stopped", log.FieldError, err)
	}
	cli.WaitForShutdown(stop, done)

	if stats, err := processor.Stats(context.Background(), cfg.SyncBatchSize); err == nil {
		logger.Info("Sheets-worker shutdown complete", "pending", stats.Pending, "parked", stats.Parked)
	}
}
