package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/brojonat/txreview/client"
	"github.com/brojonat/txreview/service/review"
	"github.com/urfave/cli/v2"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 5 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			cl := client.NewClient(serverURL, &http.Client{Timeout: c.Duration("timeout")}, nil)
			if err := cl.Health(c.Context); err != nil {
				return err
			}

			fmt.Printf("✓ Server is healthy\n")
			fmt.Printf("  URL: %s\n", serverURL)
			return nil
		},
	}
}

func remoteTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "transactions",
		Usage:   "List reviewed transactions through the server API",
		Aliases: []string{"txs"},
		Flags:   listFlags(),
		Action: func(c *cli.Context) error {
			serverURL := c.String("server-url")
			if serverURL == "" {
				return fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
			}

			filter, err := listFilterFromFlags(c)
			if err != nil {
				return err
			}
			opts := client.ListOptions{
				Type:     string(filter.Type),
				Category: filter.Category,
				Currency: string(filter.Currency),
				Limit:    filter.Limit,
			}
			if filter.Since != nil {
				opts.Since = *filter.Since
			}

			transactions, err := client.NewClient(serverURL, nil, nil).ListTransactions(c.Context, opts)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(transactions)
			}

			printReviewed(os.Stdout, transactions, func(t *client.ReviewedTransaction) (review.Transaction, time.Time) {
				return t.Transaction, t.CreatedAt
			})
			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(transactions))
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			fmt.Printf("txreview CLI\n")
			fmt.Printf("  Version: %s\n", version)
			fmt.Printf("  Commit:  %s\n", commit)
			fmt.Printf("  Built:   %s\n", date)
			return nil
		},
	}
}
