// Package cli provides process bootstrap helpers shared by cmd/maaser,
// cmd/recurring-worker and cmd/sheets-worker, plus the cobra commands of the
// maaser CLI.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maaser/internal/config"
	"maaser/internal/log"
	"maaser/internal/storage"

	"github.com/joho/godotenv"
)

// SetupLogger builds the process logger from the configured level and format
// and installs it as the default logger.
func SetupLogger(level, format string, out io.Writer, component string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := log.New(log.Config{
		Level:     lvl,
		Component: component,
		Format:    format,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger, nil
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig reads the environment and validates the result.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the ledger store at dbPath, applying pending migrations.
func InitSQLite(ctx context.Context, logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		return nil, fmt.Errorf("open ledger %s: %w", dbPath, err)
	}
	logger.DebugContext(ctx, "SQLite repository ready", "path", dbPath)
	return repo, nil
}

// Fatal logs err and exits the process. Only main packages call it.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err)
	os.Exit(1)
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on shutdown signals or by stop, and a
// channel that is closed once cleanup has finished or timed out.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (ctx context.Context, stop context.CancelFunc, done <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	finishedAll := make(chan struct{})

	go func() {
		defer close(finishedAll)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)
		case <-ctx.Done():
		}
		cancel()

		if cleanup == nil {
			return
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		finished := make(chan struct{})
		go func() {
			cleanup(shutdownCtx)
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
	}()

	return ctx, cancel, finishedAll
}

// WaitForShutdown triggers shutdown if no signal did and blocks until
// cleanup is over.
func WaitForShutdown(stop context.CancelFunc, done <-chan struct{}) {
	stop()
	<-done
}
