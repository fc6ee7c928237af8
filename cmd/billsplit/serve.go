package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"billsplit/internal/amqp"
	"billsplit/internal/cli"
	"billsplit/internal/config"
	"billsplit/internal/events"
	apphttp "billsplit/internal/http"
	"billsplit/internal/log"
)

type serveCmd struct {
	port string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the HTTP API" }
func (*serveCmd) Usage() string {
	return `serve [-port <port>]

  Serves the ledger over HTTP. Ledger changes are published to AMQP when
  AMQP_URL is set.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.port, "port", "", "listen port; overrides PORT")
}

func (c *serveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	if c.port != "" {
		cfg.Port = c.port
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stdout)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	app, err := cli.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, "backend", cfg.DataBackend)
		return subcommands.ExitFailure
	}
	defer app.Close()

	app.Rates.Start(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			return subcommands.ExitFailure
		}
		defer client.Close()

		publisher := events.NewPublisher(client, cfg.PublishBuffer, logger)
		publisher.Start()
		detach := publisher.Attach(app.Ledger)
		defer func() {
			detach()
			publisher.Shutdown()
			stats := publisher.Stats()
			logger.Info("Publisher stopped", "published", stats.Published, "failed", stats.Failed, "dropped", stats.Dropped)
		}()
		logger.Info("Publishing ledger changes", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Session:           app.Session,
		Ledger:            app.Ledger,
		Rates:             app.Rates,
		DB:                app.Backend,
		Logger:            logger,
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	if cfg.DataBackend != config.BackendMemory {
		// CLI commands and other servers may write to the same database.
		g.Go(func() error { return app.Ledger.Watch(gctx, cfg.LedgerSyncInterval) })
	}
	g.Go(func() error {
		logger.Info("Starting billsplit server", "port", cfg.Port, "backend", cfg.DataBackend, log.FieldCurrency, cfg.BaseCurrency)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		return subcommands.ExitFailure
	}
	logger.Info("Server stopped gracefully")
	return subcommands.ExitSuccess
}
