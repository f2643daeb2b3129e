package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "txreview",
		Usage: "Review bank transactions before they reach the ledger",
		Description: `A command-line tool for reviewing imported bank transactions and inspecting
what has been stored.

Use "review" to work through an export interactively, "preview" to see how the
server decodes a file, and the db and nats commands to inspect the results.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			reviewCommand(),
			previewCommand(),
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Database inspection commands",
				Subcommands: []*cli.Command{
					listTransactionsCommand(),
					listVocabulariesCommand(),
					migrateCommand(),
				},
			},
			// NATS event streaming commands
			{
				Name:  "nats",
				Usage: "NATS reviewed transaction streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Reviewer settings
			{
				Name:  "config",
				Usage: "Reviewer settings commands",
				Subcommands: []*cli.Command{
					showConfigCommand(),
					initConfigCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					remoteTransactionsCommand(),
				},
			},
			versionCommand(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Reviewer config file (default $XDG_CONFIG_HOME/txreview/config.yaml)",
				EnvVars: []string{"TXREVIEW_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "ws-url",
				Usage:   "Review endpoint, overrides server_url from the reviewer config",
				EnvVars: []string{"TXREVIEW_WS_URL"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for health checks",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8000",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
