package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/txreview/service/nats"
	"github.com/brojonat/txreview/service/review"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams reviewed transaction events.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream reviewed transaction events",
		ArgsUsage: "[type]",
		Description: `Subscribe to events published to NATS JetStream each time a reviewed
transaction is stored.

Events are published to the subject reviewed.{type}. Without an argument every
type is streamed.

Example:
  txreview nats subscribe withdrawal --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "txreview-cli",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("at most one transaction type may be given")
			}

			subject := natspkg.StreamSubjects
			if c.NArg() == 1 {
				txnType := review.ParseTransactionType(c.Args().First())
				if !txnType.Valid() {
					return fmt.Errorf("invalid transaction type %q", c.Args().First())
				}
				subject = natspkg.SubjectPrefix + string(txnType)
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return streamReviewed(ctx, os.Stdout, streamOptions{
				subject:  subject,
				natsURL:  c.String("nats-url"),
				durable:  c.Bool("durable"),
				consumer: c.String("consumer-name"),
				json:     c.Bool("json"),
			})
		},
	}
}

type streamOptions struct {
	subject  string
	natsURL  string
	durable  bool
	consumer string
	json     bool
}

// streamReviewed prints events on opts.subject until ctx is done.
func streamReviewed(ctx context.Context, out io.Writer, opts streamOptions) error {
	nc, err := nats.Connect(opts.natsURL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: opts.subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if opts.durable {
		consumerConfig.Durable = opts.consumer
		consumerConfig.Name = opts.consumer
	}
	cons, err := js.CreateOrUpdateConsumer(ctx, natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	if !opts.json {
		fmt.Fprintf(out, "📡 Subscribing to: %s\n", opts.subject)
		fmt.Fprintf(out, "   NATS: %s\n", opts.natsURL)
		if opts.durable {
			fmt.Fprintf(out, "   Consumer: %s (durable)\n", opts.consumer)
		}
		fmt.Fprintf(out, "\nWaiting for reviewed transactions... (Ctrl-C to exit)\n\n")
	}

	// Consume callbacks run on one goroutine, so count needs no lock until ctx is done.
	var count int
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		defer msg.Ack()

		var event natspkg.ReviewedTransactionEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing event on %s: %v\n", msg.Subject(), err)
			return
		}
		count++
		if opts.json {
			data, _ := json.Marshal(event)
			fmt.Fprintln(out, string(data))
			return
		}
		printEvent(out, count, &event)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	<-ctx.Done()
	consumeCtx.Stop()
	<-consumeCtx.Closed()

	if !opts.json {
		fmt.Fprintf(out, "\n✅ Received %d reviewed transactions\n", count)
	}
	return nil
}

func printEvent(out io.Writer, n int, event *natspkg.ReviewedTransactionEvent) {
	txn := event.Transaction
	rule := "─────────────────────────────────────────────────────"
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Reviewed transaction #%d\n", n)
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "External ID:  %s\n", txn.ExternalID)
	fmt.Fprintf(out, "Date:         %s\n", txn.Date)
	fmt.Fprintf(out, "Description:  %s\n", txn.Description)
	fmt.Fprintf(out, "From:         %s\n", txn.SourceAccount)
	fmt.Fprintf(out, "To:           %s\n", txn.DestinationAccount)
	fmt.Fprintf(out, "Amount:       %s %s\n", txn.Amount.StringFixed(2), txn.CurrencyCode)
	if txn.ForeignAmount != nil && txn.ForeignCurrencyCode != nil {
		fmt.Fprintf(out, "Foreign:      %s %s\n", txn.ForeignAmount.StringFixed(2), *txn.ForeignCurrencyCode)
	}
	fmt.Fprintf(out, "Type:         %s\n", txn.Type)
	if txn.CategoryName != "" {
		fmt.Fprintf(out, "Category:     %s\n", txn.CategoryName)
	}
	if txn.Notes != "" {
		fmt.Fprintf(out, "Notes:        %s\n", txn.Notes)
	}
	if event.RequestID != "" {
		fmt.Fprintf(out, "Request:      %s\n", event.RequestID)
	}
	fmt.Fprintf(out, "Stored:       %s\n", event.StoredAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Published:    %s\n\n", event.PublishedAt.Format(time.RFC3339))
}

// inspectStreamCommand shows information about the NATS JetStream stream.
func inspectStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect-stream",
		Usage: "Inspect the REVIEWED JetStream stream",
		Description: `Show information about the JetStream stream including:
- Message count
- Consumers
- Storage usage
- Stream configuration

Example:
  txreview nats inspect-stream`,
		Action: func(c *cli.Context) error {
			nc, err := nats.Connect(c.String("nats-url"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			defer nc.Close()

			js, err := jetstream.New(nc)
			if err != nil {
				return fmt.Errorf("failed to create JetStream context: %w", err)
			}

			stream, err := js.Stream(c.Context, natspkg.StreamName)
			if err != nil {
				return fmt.Errorf("failed to get stream: %w", err)
			}

			info, err := stream.Info(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stream info: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(info)
			}

			fmt.Printf("Stream: %s\n", info.Config.Name)
			fmt.Printf("─────────────────────────────────────────────────────\n")
			fmt.Printf("Description:  %s\n", info.Config.Description)
			fmt.Printf("Subjects:     %v\n", info.Config.Subjects)
			fmt.Printf("Messages:     %d\n", info.State.Msgs)
			fmt.Printf("Bytes:        %d\n", info.State.Bytes)
			fmt.Printf("First Seq:    %d\n", info.State.FirstSeq)
			fmt.Printf("Last Seq:     %d\n", info.State.LastSeq)
			fmt.Printf("Consumers:    %d\n", info.State.Consumers)
			fmt.Printf("Max Age:      %s\n", info.Config.MaxAge)
			fmt.Printf("Storage:      %s\n", info.Config.Storage)
			fmt.Printf("\n")
			return nil
		},
	}
}
