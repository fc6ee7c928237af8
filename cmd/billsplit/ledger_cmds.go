package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"billsplit/internal/core"
)

type addCmd struct {
	name     string
	amount   string
	category string
	event    string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record an expense" }
func (*addCmd) Usage() string {
	return `add -name <name> -amount <amount> [-category <category>] [-event <event>]

  Records an expense in the base currency. Without -event the expense goes
  to DEFAULT_EVENT.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "what the money was spent on (required)")
	f.StringVar(&c.amount, "amount", "", "amount in the base currency (required)")
	f.StringVar(&c.category, "category", string(core.Food), "Food, Travel, Home, Fun or Other")
	f.StringVar(&c.event, "event", "", "event the expense belongs to")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}

	app, status := openApp(ctx)
	if app == nil {
		return status
	}
	defer app.Close()

	e, err := app.Session.AddExpense(ctx, c.name, amount, core.Category(c.category), c.event)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if core.IsValidation(err) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	fmt.Printf("✅ Added #%d %s %s (%s, %s)\n", e.ID, e.Name,
		core.FormatAmount(e.Amount, app.Rates.Base()), e.Category, e.EventName)
	return subcommands.ExitSuccess
}

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete expenses by id" }
func (*rmCmd) Usage() string {
	return `rm <id> [<id>...]

  Deletes the given expenses. Unknown ids are ignored.
`
}

func (*rmCmd) SetFlags(*flag.FlagSet) {}

func (*rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one id is required")
		return subcommands.ExitUsageError
	}
	ids := make([]int64, 0, f.NArg())
	for _, arg := range f.Args() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			fmt.Fprintf(os.Stderr, "Error: invalid id %q\n", arg)
			return subcommands.ExitUsageError
		}
		ids = append(ids, id)
	}

	app, status := openApp(ctx)
	if app == nil {
		return status
	}
	defer app.Close()

	for _, id := range ids {
		if err := app.Session.RemoveExpense(ctx, id); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting #%d: %v\n", id, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("🗑  Deleted #%d\n", id)
	}
	return subcommands.ExitSuccess
}

type lsCmd struct {
	event    string
	currency string
}

func (*lsCmd) Name() string     { return "ls" }
func (*lsCmd) Synopsis() string { return "list expenses, newest first" }
func (*lsCmd) Usage() string {
	return `ls [-event <event>] [-currency <code>]
`
}

func (c *lsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.event, "event", "", "only show this event")
	f.StringVar(&c.currency, "currency", "", currencyUsage())
}

func (c *lsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, status := openApp(ctx)
	if app == nil {
		return status
	}
	defer app.Close()

	applyView(ctx, app, c.event, c.currency, 0)
	view := app.Session.View()

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "ID\tName\tCategory\tEvent\tDate\tAmount\t")
	for _, it := range view.Items {
		fmt.Fprintf(tw, "%d\t%s %s\t%s\t%s\t%s\t%s\t\n",
			it.ID, it.Icon, it.Name, it.Category, it.EventName,
			it.CreatedAt.Format("02 Jan, 03:04 PM"), it.Display)
	}
	fmt.Fprintf(tw, "\t\t\t\tTotal\t%s\t\n", view.Total)
	if err := tw.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type eventsCmd struct{}

func (*eventsCmd) Name() string           { return "events" }
func (*eventsCmd) Synopsis() string       { return "list event names" }
func (*eventsCmd) Usage() string          { return "events\n" }
func (*eventsCmd) SetFlags(*flag.FlagSet) {}

func (*eventsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	app, status := openApp(ctx)
	if app == nil {
		return status
	}
	defer app.Close()

	fmt.Println(strings.Join(app.Session.Events(), "\n"))
	return subcommands.ExitSuccess
}
