package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/brojonat/txreview/service/config"
	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/review"
	"github.com/shopspring/decimal"
)

// fakeStore is an in-memory TransactionStore.
type fakeStore struct {
	mu      sync.Mutex
	rows    map[string]*db.StoredTransaction
	order   []string
	failAll error
	// failVocab makes the List* vocabulary calls fail.
	failVocab error
	// lastFilter records the filter ListTransactions was called with.
	lastFilter db.ListTransactionsFilter
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]*db.StoredTransaction)}
}

func (f *fakeStore) CreateTransaction(ctx context.Context, txn review.Transaction) (*db.StoredTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return nil, f.failAll
	}
	if _, ok := f.rows[txn.ExternalID]; ok {
		return nil, db.ErrDuplicate
	}
	txn.Date = review.RawDate(review.NormalizeDate(string(txn.Date)))
	stored := &db.StoredTransaction{Transaction: txn, CreatedAt: time.Now().UTC()}
	f.rows[txn.ExternalID] = stored
	f.order = append(f.order, txn.ExternalID)
	return stored, nil
}

func (f *fakeStore) TransactionExists(ctx context.Context, externalID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return false, f.failAll
	}
	_, ok := f.rows[externalID]
	return ok, nil
}

func (f *fakeStore) ListTransactions(ctx context.Context, filter db.ListTransactionsFilter) ([]*db.StoredTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []*db.StoredTransaction
	for _, id := range f.order {
		row := f.rows[id]
		if filter.Type != "" && row.Type != filter.Type {
			continue
		}
		if filter.Category != "" && row.CategoryName != filter.Category {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeStore) ListAccounts(ctx context.Context) ([]string, error) {
	return f.distinct(func(t *db.StoredTransaction) []string {
		return []string{t.SourceAccount, t.DestinationAccount}
	})
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]string, error) {
	return f.distinct(func(t *db.StoredTransaction) []string { return []string{t.CategoryName} })
}

func (f *fakeStore) ListDescriptions(ctx context.Context) ([]string, error) {
	return f.distinct(func(t *db.StoredTransaction) []string { return []string{t.Description} })
}

func (f *fakeStore) distinct(pick func(*db.StoredTransaction) []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failVocab != nil {
		return nil, f.failVocab
	}
	seen := make(map[string]bool)
	var out []string
	for _, row := range f.rows {
		for _, v := range pick(row) {
			if v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

var errStoreDown = errors.New("store down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		ServerAddr:     ":0",
		DatabaseURL:    "postgres://unused",
		DecoderJQ:      ".",
		MaxUploadBytes: 1 << 20,
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

func sampleTransaction(id string) review.Transaction {
	return review.Transaction{
		ExternalID:         id,
		Description:        "Mancare comandata",
		Date:               "2023-01-15",
		SourceAccount:      "Banca Transilvania",
		DestinationAccount: "Tazz",
		Amount:             decimal.RequireFromString("45.50"),
		Type:               review.TypeWithdrawal,
		CategoryName:       "Food",
		CurrencyCode:       review.CurrencyRON,
	}
}
