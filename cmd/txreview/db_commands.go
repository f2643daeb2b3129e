package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/review"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-transactions",
		Usage:   "List reviewed transactions, newest first",
		Aliases: []string{"txs"},
		Flags:   listFlags(),
		Action: func(c *cli.Context) error {
			filter, err := listFilterFromFlags(c)
			if err != nil {
				return err
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			transactions, err := store.ListTransactions(c.Context, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(transactions)
			}

			printReviewed(os.Stdout, transactions, func(t *db.StoredTransaction) (review.Transaction, time.Time) {
				return t.Transaction, t.CreatedAt
			})
			fmt.Fprintf(os.Stderr, "\nTotal: %d transactions\n", len(transactions))
			return nil
		},
	}
}

func listVocabulariesCommand() *cli.Command {
	return &cli.Command{
		Name:    "vocabularies",
		Usage:   "Show the accounts, categories and descriptions offered as suggestions",
		Aliases: []string{"vocab"},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			accounts, err := store.ListAccounts(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			categories, err := store.ListCategories(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}
			descriptions, err := store.ListDescriptions(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list descriptions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(map[string][]string{
					"accounts":     accounts,
					"categories":   categories,
					"descriptions": descriptions,
				})
			}

			printSection("Accounts", accounts)
			printSection("Categories", categories)
			printSection("Descriptions", descriptions)
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the reviewed transactions table if it does not exist",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "✓ Schema is up to date")
			return nil
		},
	}
}

// listFlags are the filters shared by the database and API listings.
func listFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "type",
			Usage: "Filter by type (withdrawal, deposit, transfer)",
		},
		&cli.StringFlag{
			Name:    "category",
			Aliases: []string{"c"},
			Usage:   "Filter by category",
		},
		&cli.StringFlag{
			Name:  "currency",
			Usage: "Filter by currency code (RON, EUR)",
		},
		&cli.StringFlag{
			Name:  "since",
			Usage: "Show transactions on or after this date (YYYY-MM-DD)",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"n"},
			Usage:   "Limit number of transactions",
			Value:   50,
		},
	}
}

// listFilterFromFlags validates the list flags before any connection is made.
func listFilterFromFlags(c *cli.Context) (db.ListTransactionsFilter, error) {
	filter := db.ListTransactionsFilter{
		Category: c.String("category"),
		Limit:    c.Int("limit"),
	}

	if v := c.String("type"); v != "" {
		filter.Type = review.ParseTransactionType(v)
		if !filter.Type.Valid() {
			return filter, fmt.Errorf("invalid --type %q", v)
		}
	}
	if v := c.String("currency"); v != "" {
		filter.Currency = review.ParseCurrency(v)
		if !filter.Currency.Valid() {
			return filter, fmt.Errorf("invalid --currency %q", v)
		}
	}
	if v := c.String("since"); v != "" {
		since, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return filter, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		filter.Since = &since
	}
	if filter.Limit < 1 {
		return filter, fmt.Errorf("--limit must be at least 1")
	}
	return filter, nil
}

// Helper function to connect to database
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool), pool.Close, nil
}

// Helper function to output JSON
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReviewed renders stored transactions as a table. split extracts the
// transaction and the time it was stored.
func printReviewed[T any](out io.Writer, rows []T, split func(T) (review.Transaction, time.Time)) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXTERNAL ID\tDATE\tAMOUNT\tCURRENCY\tTYPE\tCATEGORY\tDESTINATION\tREVIEWED")
	for _, row := range rows {
		txn, reviewed := split(row)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			txn.ExternalID,
			txn.Date,
			txn.Amount.StringFixed(2),
			txn.CurrencyCode,
			txn.Type,
			txn.CategoryName,
			txn.DestinationAccount,
			reviewed.Format(time.RFC3339),
		)
	}
	w.Flush()
}

func printSection(title string, values []string) {
	fmt.Printf("%s (%d)\n", title, len(values))
	for _, v := range values {
		fmt.Printf("  %s\n", v)
	}
	fmt.Println()
}
