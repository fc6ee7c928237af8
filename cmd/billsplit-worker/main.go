package main

import (
	"context"
	"errors"
	"os"

	"billsplit/internal/amqp"
	"billsplit/internal/backend"
	"billsplit/internal/cli"
	"billsplit/internal/config"
	"billsplit/internal/log"
	gsheet "billsplit/internal/sheets/google"
	"billsplit/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout).WithComponent(log.ComponentWorker)
	logger.Info("Starting billsplit-worker")

	if err := cfg.ValidateWorker(); err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		cli.Fatal(logger, "Failed to open backend", err)
	}
	defer store.Cleanup()

	sheets, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
	}, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize Google Sheets client", err)
	}
	if err := sheets.EnsureHeader(ctx); err != nil {
		cli.Fatal(logger, "Failed to prepare sheet header", err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	syncWorker := worker.NewSyncWorker(sheets, store.Backend, logger)

	// Reconcile rows with changes missed while the worker was down.
	logger.Info("Performing startup sync")
	if err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Startup sync failed", log.FieldError, err)
	}

	err = client.ConsumeLedgerChanges(ctx, syncWorker.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	stats := syncWorker.Stats()
	logger.Info("Worker stopped", "synced", stats.Synced, "failed", stats.Failed)
}
