// Command ingest runs a single ingestion pass and exits. Useful for cron
// style scheduling and for seeding a fresh environment.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/CatalogSyncGo/internal/app"
	"github.com/utafrali/CatalogSyncGo/internal/config"
	"github.com/utafrali/CatalogSyncGo/internal/ingest"
	"github.com/utafrali/CatalogSyncGo/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("catalog-ingest", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if err := application.Shutdown(); err != nil {
			log.Error("shutdown error", slog.String("error", err.Error()))
		}
	}()

	report, err := application.Orchestrator().Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion run: %w", err)
	}

	log.Info("ingestion finished",
		slog.String("state", string(report.State)),
		slog.Int("persisted", report.TotalPersisted),
		slog.Int("failed", report.TotalFailed),
		slog.Int("indexed", report.TotalIndexed),
	)

	if report.State == ingest.StateAborted {
		return fmt.Errorf("run aborted: %s", report.AbortReason)
	}
	return nil
}
