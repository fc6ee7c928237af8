package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"billsplit/internal/cli"
	"billsplit/internal/log"
	"billsplit/internal/session"
)

// openApp loads configuration and opens the ledger for a one-shot command.
// Logs go to stderr so command output stays clean on stdout.
func openApp(ctx context.Context) (*cli.App, subcommands.ExitStatus) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return nil, subcommands.ExitUsageError
	}
	logger := cli.SetupLogger(cfg.LogLevel, os.Stderr).WithComponent(log.ComponentCLI)

	app, err := cli.Bootstrap(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		return nil, subcommands.ExitFailure
	}
	return app, subcommands.ExitSuccess
}

// applyView configures the session for a read command. A non-base currency
// triggers one rate refresh; on failure amounts display at rate 1.
func applyView(ctx context.Context, app *cli.App, event, currency string, persons int) {
	s := app.Session
	s.SetEventFilter(event)
	s.SetCurrency(currency)
	if persons > 0 {
		s.SetPersonCount(persons)
	}

	code := s.State().Currency
	if code != app.Rates.Base() {
		if err := app.Rates.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not refresh rates, showing %s at rate 1: %v\n", code, err)
		} else if !app.Rates.Has(code) {
			fmt.Fprintf(os.Stderr, "Warning: no rate for %s, showing amounts at rate 1\n", code)
		}
	}
}

func currencyUsage() string {
	return "display currency (" + strings.Join(session.Currencies, ", ") + "); defaults to BASE_CURRENCY"
}
