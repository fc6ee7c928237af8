package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"billsplit/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{}, "server")

	commander.Register(&addCmd{}, "ledger")
	commander.Register(&rmCmd{}, "ledger")
	commander.Register(&lsCmd{}, "ledger")
	commander.Register(&eventsCmd{}, "ledger")

	commander.Register(&summaryCmd{}, "reports")
	commander.Register(&chartCmd{}, "reports")
	commander.Register(&ratesCmd{}, "reports")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
