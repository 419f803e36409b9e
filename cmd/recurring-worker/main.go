package main

import (
	"context"
	"errors"
	"os"
	"time"

	"maaser/internal/amqp"
	"maaser/internal/cli"
	"maaser/internal/log"
	"maaser/internal/services"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Configuration validation failed", err)
	}
	logger, err := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout, log.ComponentRecurring)
	if err != nil {
		cli.Fatal(log.New(log.DefaultConfig()), "Invalid log configuration", err)
	}
	logger.Info("Starting recurring-worker", log.FieldOperation, log.OpStartup)

	loc, err := cfg.Location()
	if err != nil {
		cli.Fatal(logger, "Invalid ledger timezone", err)
	}

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	repo, err := cli.InitSQLite(ctx, logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to open ledger", err)
	}
	defer repo.Close()

	opts := []services.ProcessorOption{
		services.WithLogger(logger),
		services.WithLocation(loc),
	}

	// Created entries are announced to the sheets worker when AMQP is configured.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqp.WithLogger(logger))
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without entry events", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("AMQP client initialized - entries will be mirrored by sheets-worker")
		}
	} else {
		logger.Info("AMQP disabled - entries will only be swept by sheets-worker")
	}

	processor := services.NewRecurringProcessor(repo, opts...)

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"sqlite_db", cfg.SQLiteDBPath,
		"timezone", loc.String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(cfg.RecurringInterval)
		defer ticker.Stop()

		runOnce(gctx, logger, processor)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				runOnce(gctx, logger, processor)
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Recurring-worker stopped", log.FieldError, err)
	}
	cli.WaitForShutdown(stop, done)
	logger.Info("Recurring-worker shutdown complete")
}

// runOnce executes one catch-up run. Only an unreadable due set is an error;
// per-obligation failures are already logged by the processor and retried on
// the next tick.
func runOnce(ctx context.Context, logger *log.Logger, processor *services.RecurringProcessor) {
	summary, err := processor.ExecuteDueToday(ctx)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("Catch-up run cancelled", "processed", summary.DefinitionsProcessed)
	case err != nil:
		logger.Error("Catch-up run failed", log.FieldError, err)
	default:
		logger.Info("Catch-up run complete",
			"entries_created", summary.ProcessedOccurrences,
			"failed", summary.DefinitionsFailed,
			log.FieldToday, summary.Today.String())
	}
}
