package db

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/brojonat/txreview/service/review"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned when a transaction with the same external id was already stored.
var ErrDuplicate = errors.New("transaction already stored")

// DefaultListLimit caps ListTransactions when the filter does not set a limit.
const DefaultListLimit = 100

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS reviewed_transactions (
	external_id           TEXT PRIMARY KEY,
	description           TEXT NOT NULL,
	date                  DATE NOT NULL,
	source_account        TEXT NOT NULL,
	destination_account   TEXT NOT NULL,
	amount                NUMERIC(18, 2) NOT NULL,
	type                  TEXT NOT NULL,
	category_name         TEXT NOT NULL DEFAULT '',
	currency_code         TEXT NOT NULL,
	foreign_amount        NUMERIC(18, 2),
	foreign_currency_code TEXT,
	notes                 TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_reviewed_transactions_date ON reviewed_transactions (date DESC);
CREATE INDEX IF NOT EXISTS idx_reviewed_transactions_category ON reviewed_transactions (category_name);
`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var transactionColumns = []string{
	"external_id",
	"description",
	"date::text",
	"source_account",
	"destination_account",
	"amount::text",
	"type",
	"category_name",
	"currency_code",
	"foreign_amount::text",
	"foreign_currency_code",
	"notes",
	"created_at",
}

// Store provides database operations for reviewed transactions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// StoredTransaction is a reviewed transaction as persisted.
type StoredTransaction struct {
	review.Transaction
	CreatedAt time.Time
}

// ListTransactionsFilter narrows ListTransactions. Zero values match everything.
type ListTransactionsFilter struct {
	Type     review.TransactionType
	Category string
	Currency review.Currency
	Since    *time.Time
	Limit    int
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// CreateTransaction stores a reviewed transaction. The date is normalized to a calendar
// day first; a date that cannot be normalized is rejected.
func (s *Store) CreateTransaction(ctx context.Context, txn review.Transaction) (*StoredTransaction, error) {
	day := review.NormalizeDate(string(txn.Date))
	if day == "" {
		return nil, fmt.Errorf("invalid date %q", txn.Date)
	}

	var foreignAmount, foreignCurrency *string
	if txn.ForeignAmount != nil {
		v := txn.ForeignAmount.StringFixed(2)
		foreignAmount = &v
	}
	if txn.ForeignCurrencyCode != nil {
		v := string(*txn.ForeignCurrencyCode)
		foreignCurrency = &v
	}

	query, args, err := psql.Insert("reviewed_transactions").
		Columns(
			"external_id", "description", "date", "source_account", "destination_account",
			"amount", "type", "category_name", "currency_code",
			"foreign_amount", "foreign_currency_code", "notes",
		).
		Values(
			txn.ExternalID, txn.Description, sq.Expr("?::date", day), txn.SourceAccount, txn.DestinationAccount,
			sq.Expr("?::numeric", txn.Amount.StringFixed(2)), string(txn.Type), txn.CategoryName, string(txn.CurrencyCode),
			sq.Expr("?::numeric", foreignAmount), foreignCurrency, txn.Notes,
		).
		Suffix("RETURNING " + strings.Join(transactionColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert: %w", err)
	}

	stored, err := scanTransaction(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, txn.ExternalID)
		}
		return nil, fmt.Errorf("failed to insert transaction %s: %w", txn.ExternalID, err)
	}
	return stored, nil
}

// TransactionExists reports whether a transaction with the given external id is stored.
func (s *Store) TransactionExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM reviewed_transactions WHERE external_id = $1)",
		externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction %s: %w", externalID, err)
	}
	return exists, nil
}

// ListTransactions returns stored transactions matching filter, newest date first.
func (s *Store) ListTransactions(ctx context.Context, filter ListTransactionsFilter) ([]*StoredTransaction, error) {
	query, args, err := buildListQuery(filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*StoredTransaction
	for rows.Next() {
		stored, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return out, nil
}

func buildListQuery(filter ListTransactionsFilter) sq.SelectBuilder {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	q := psql.Select(transactionColumns...).
		From("reviewed_transactions").
		OrderBy("date DESC", "external_id").
		Limit(uint64(limit))

	if filter.Type != "" {
		q = q.Where(sq.Eq{"type": string(filter.Type)})
	}
	if filter.Category != "" {
		q = q.Where(sq.Eq{"category_name": filter.Category})
	}
	if filter.Currency != "" {
		q = q.Where(sq.Eq{"currency_code": string(filter.Currency)})
	}
	if filter.Since != nil {
		q = q.Where(sq.GtOrEq{"date": filter.Since.UTC().Format("2006-01-02")})
	}
	return q
}

// ListAccounts returns every account seen as a source or destination.
func (s *Store) ListAccounts(ctx context.Context) ([]string, error) {
	return s.listStrings(ctx, `
		SELECT source_account FROM reviewed_transactions WHERE source_account <> ''
		UNION
		SELECT destination_account FROM reviewed_transactions WHERE destination_account <> ''`)
}

// ListCategories returns every category used so far.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	return s.listStrings(ctx,
		"SELECT DISTINCT category_name FROM reviewed_transactions WHERE category_name <> ''")
}

// ListDescriptions returns every description used so far.
func (s *Store) ListDescriptions(ctx context.Context) ([]string, error) {
	return s.listStrings(ctx,
		"SELECT DISTINCT description FROM reviewed_transactions WHERE description <> ''")
}

// listStrings runs a single-column query and returns the values sorted with Go's
// ordering so they match the client's vocabulary order regardless of collation.
func (s *Store) listStrings(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vocabulary: %w", err)
	}
	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect vocabulary: %w", err)
	}
	sort.Strings(values)
	return values, nil
}

func scanTransaction(row pgx.Row) (*StoredTransaction, error) {
	var (
		stored          StoredTransaction
		date            string
		amount          string
		txnType         string
		currency        string
		foreignAmount   *string
		foreignCurrency *string
	)
	err := row.Scan(
		&stored.ExternalID,
		&stored.Description,
		&date,
		&stored.SourceAccount,
		&stored.DestinationAccount,
		&amount,
		&txnType,
		&stored.CategoryName,
		&currency,
		&foreignAmount,
		&foreignCurrency,
		&stored.Notes,
		&stored.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	stored.Date = review.RawDate(date)
	stored.Type = review.TransactionType(txnType)
	stored.CurrencyCode = review.Currency(currency)
	if stored.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	if foreignAmount != nil {
		v, err := decimal.NewFromString(*foreignAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid stored foreign amount %q: %w", *foreignAmount, err)
		}
		stored.ForeignAmount = &v
	}
	if foreignCurrency != nil {
		c := review.Currency(*foreignCurrency)
		stored.ForeignCurrencyCode = &c
	}
	return &stored, nil
}
