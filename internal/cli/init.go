// Package cli provides the initialization shared by cmd/billsplit and
// cmd/billsplit-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"billsplit/internal/backend"
	"billsplit/internal/config"
	"billsplit/internal/ledger"
	"billsplit/internal/log"
	"billsplit/internal/rates"
	"billsplit/internal/session"
)

// SetupLogger builds the process logger at the given level, writing text
// records to w, and installs it as the slog default.
func SetupLogger(level string, w io.Writer) *log.Logger {
	lvl := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM or when
// stop is called.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}

// App is the wired ledger stack every entry point runs on.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Backend backend.Backend
	Ledger  *ledger.Store
	Rates   *rates.Cache
	Session *session.Session

	cleanup backend.CleanupFunc
}

// Bootstrap opens the configured backend, loads the ledger from it and
// prepares an unrefreshed rate cache.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	store, err := ledger.Open(ctx, res.Backend, ledger.WithLogger(logger))
	if err != nil {
		_ = res.Cleanup()
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	cache := rates.NewCache(cfg.BaseCurrency,
		rates.NewHTTPProvider(cfg.RatesURL, cfg.RatesJSONPath, cfg.RatesTimeout),
		rates.WithTimeout(cfg.RatesTimeout),
		rates.WithLogger(logger),
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Backend: res.Backend,
		Ledger:  store,
		Rates:   cache,
		Session: session.New(store, cache, logger, session.WithDefaultEvent(cfg.DefaultEvent)),
		cleanup: res.Cleanup,
	}, nil
}

// Close releases the backend.
func (a *App) Close() error {
	if a.cleanup == nil {
		return nil
	}
	return a.cleanup()
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err)
	os.Exit(1)
}
