package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/txreview/client"
	"github.com/brojonat/txreview/service/config"
	"github.com/brojonat/txreview/service/review"
	"github.com/urfave/cli/v2"
)

func reviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Review and correct the transactions of a bank export",
		ArgsUsage: "FILE",
		Description: `Uploads FILE to the review server and opens a form for each decoded transaction.

Keys:
  Ctrl-S   submit the current transaction
  Tab      next field (accepts a suggestion when the list is open)
  Ctrl-Q   quit

The TUI owns the terminal, so logs only go to --log-file (or log_file in the
reviewer config).

Example:
  txreview review ~/Downloads/extras_bt.json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Append JSON logs to this file",
				EnvVars: []string{"TXREVIEW_LOG_FILE"},
			},
			&cli.DurationFlag{
				Name:  "connect-timeout",
				Usage: "How long to wait for the server",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: file to review")
			}
			content, err := os.ReadFile(c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to read upload: %w", err)
			}

			conf, err := reviewerSettings(c)
			if err != nil {
				return err
			}
			if path := c.String("log-file"); path != "" {
				conf.LogFile = path
			}

			logger, closeLog, err := reviewLogger(conf.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()

			ch := client.NewChannel(conf.ServerURL, nil, logger)
			ctrl := review.NewController(ch, logger)
			ch.OnMessage(ctrl.HandleMessage)
			ch.OnStateChange(ctrl.ConnectionChanged)

			ui := newReviewer(ctrl, conf.SuggestionLimit)
			ui.attach()

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("connect-timeout"))
			defer cancel()
			if err := ch.Connect(ctx); err != nil {
				return err
			}
			defer ch.Close()

			if err := ctrl.Upload(string(content)); err != nil {
				return fmt.Errorf("failed to upload %s: %w", c.Args().First(), err)
			}

			logger.Info("review started", "file", c.Args().First(), "server_url", conf.ServerURL)
			return ui.run()
		},
	}
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Upload a file and print the decoded batch without submitting anything",
		ArgsUsage: "FILE",
		Description: `Shows what the server makes of an export before reviewing it.

Each --must-jq filter sees one transaction as JSON and must evaluate to a truthy
value for the transaction to be printed.

Example:
  txreview preview extras_bt.json --must-jq '.type == "withdrawal"' --must-jq '.amount | tonumber > 100'`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "How long to wait for the decoded batch",
				Value:   30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: file to preview")
			}
			content, err := os.ReadFile(c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to read upload: %w", err)
			}

			codes, err := compileFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			conf, err := reviewerSettings(c)
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelError,
			}))

			ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
			defer cancel()

			batch, err := fetchBatch(ctx, conf.ServerURL, string(content), logger)
			if err != nil {
				return err
			}

			kept, err := filterTransactions(codes, batch)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(kept)
			}

			printBatch(os.Stdout, kept)
			fmt.Fprintf(os.Stderr, "\nTotal: %d of %d transactions\n", len(kept), len(batch))
			return nil
		},
	}
}

// reviewerSettings loads the reviewer config and applies the --ws-url override.
func reviewerSettings(c *cli.Context) (config.Reviewer, error) {
	conf, _, err := config.LoadReviewer(c.String("config"))
	if err != nil {
		return conf, err
	}
	if u := c.String("ws-url"); u != "" {
		conf.ServerURL = u
		if err := conf.Validate(); err != nil {
			return conf, fmt.Errorf("invalid --ws-url: %w", err)
		}
	}
	return conf, nil
}

// reviewLogger logs to path, or nowhere when path is empty.
func reviewLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

// fetchBatch uploads content over a fresh connection and waits for the decoded batch.
func fetchBatch(ctx context.Context, url, content string, logger *slog.Logger) ([]review.Transaction, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	replies := make(chan review.InboundMessage, 1)

	// Every session opens with a vocabulary snapshot; the upload is answered by the next message.
	greeted := false
	ch := client.NewChannel(url, nil, logger)
	ch.OnMessage(func(data []byte) {
		if !greeted {
			greeted = true
			return
		}
		msg, err := review.DecodeInbound(data)
		if err != nil {
			logger.Error("dropping undecodable message", "error", err)
			return
		}
		select {
		case replies <- msg:
		default:
		}
	})

	if err := ch.Connect(ctx); err != nil {
		return nil, err
	}
	defer ch.Close()

	ch.Send(review.UploadMessage{Content: content})

	select {
	case msg := <-replies:
		if msg.Error != nil {
			return nil, fmt.Errorf("server rejected upload: %s", *msg.Error)
		}
		if msg.Transactions == nil {
			return nil, errors.New("server reply carried no transactions")
		}
		return msg.Transactions, nil
	case <-ch.Done():
		return nil, errors.New("connection closed before the batch arrived")
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out waiting for the batch: %w", ctx.Err())
	}
}

func printBatch(out io.Writer, txns []review.Transaction) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXTERNAL ID\tDATE\tAMOUNT\tCURRENCY\tTYPE\tDESTINATION\tDESCRIPTION")
	for _, txn := range txns {
		v := txn.FormValues()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ExternalID,
			v.Date,
			v.Amount,
			v.CurrencyCode,
			v.Type,
			v.DestinationAccount,
			v.Description,
		)
	}
	w.Flush()
}
