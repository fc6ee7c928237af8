package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/google/subcommands"

	"billsplit/internal/charts"
	"billsplit/internal/core"
	"billsplit/internal/report"
)

type summaryCmd struct {
	event    string
	currency string
	persons  int
	style    string
	raw      bool
	share    bool
	items    bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "show totals, the split and the category breakdown" }
func (*summaryCmd) Usage() string {
	return `summary [-event <event>] [-currency <code>] [-persons <n>] [-style <glamour style>] [-raw] [-share] [-items]

  Prints the total for the selected event, what each person owes and how
  the spending divides between categories.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.event, "event", "", "only include this event")
	f.StringVar(&c.currency, "currency", "", currencyUsage())
	f.IntVar(&c.persons, "persons", 1, "number of people splitting the bill")
	f.StringVar(&c.style, "style", "auto", "glamour style: auto, dark, light, notty")
	f.BoolVar(&c.raw, "raw", false, "print markdown without rendering")
	f.BoolVar(&c.share, "share", false, "print the short share message only")
	f.BoolVar(&c.items, "items", false, "include every expense in the report")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.persons < 1 {
		fmt.Fprintln(os.Stderr, "Error: -persons must be at least 1")
		return subcommands.ExitUsageError
	}

	app, status := openApp(ctx)
	if app == nil {
		return status
	}
	defer app.Close()

	applyView(ctx, app, c.event, c.currency, c.persons)
	view := app.Session.View()

	if c.share {
		fmt.Println(view.ShareText)
		return subcommands.ExitSuccess
	}

	var lines []report.Line
	if c.items {
		lines = view.Lines()
	}
	var md bytes.Buffer
	report.Markdown(&md, view.State.Event, view.Summary, lines)

	if c.raw {
		fmt.Print(md.String())
		return subcommands.ExitSuccess
	}
	out, err := report.Render(md.String(), c.style)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}

type chartCmd struct {
	event    string
	currency string
	output   string
	size     int
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "write the category pie chart as PNG" }
func (*chartCmd) Usage() string {
	return `chart -o <file.png> [-event <event>] [-currency <code>] [-size <pixels>]
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.event, "event", "", "only include this event")
	f.StringVar(&c.currency, "currency", "", currencyUsage())
	f.StringVar(&c.output, "o", "", "output file (required)")
	f.IntVar(&c.size, "size", 600, "width and height in pixels")
}

func (c *chartCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.output == "" {
		fmt.Fprintln(os.Stderr, "Error: -o is required")
		return subcommands.ExitUsageError
	}

	app, status := openApp(ctx)
	if app == nil {
		return status
	}
	defer app.Close()

	applyView(ctx, app, c.event, c.currency, 0)
	view := app.Session.View()

	png, err := charts.CategoryPie(view.Summary, charts.Options{
		Title:  fmt.Sprintf("Total (%s): %s", view.State.Event, view.Total),
		Width:  c.size,
		Height: c.size,
	})
	if errors.Is(err, charts.ErrNoData) {
		fmt.Fprintln(os.Stderr, "No expenses to chart")
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(c.output, png, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("📊 Wrote %s\n", c.output)
	return subcommands.ExitSuccess
}

type ratesCmd struct {
	offline bool
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "fetch and print exchange rates" }
func (*ratesCmd) Usage() string {
	return `rates [-offline]

  Prints how many units of each currency one unit of the base currency buys.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.offline, "offline", false, "skip the network fetch")
}

func (c *ratesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, status := openApp(ctx)
	if app == nil {
		return status
	}
	defer app.Close()

	if !c.offline {
		if err := app.Rates.Refresh(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
	}

	table := app.Rates.Rates()
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "1 %s =\t\n", app.Rates.Base())
	for _, code := range codes {
		fmt.Fprintf(tw, "%s\t%s %g\n", code, core.Symbol(code), table[code])
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
