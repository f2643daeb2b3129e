package main

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *db.TestStore {
	t.Helper()
	db.SkipIfNoTestDB(t)

	store := db.NewTestStore(t)
	store.Cleanup(t)
	t.Cleanup(func() {
		store.Cleanup(t)
		store.Close()
	})

	os.Setenv("DATABASE_URL", db.TestDatabaseURL())
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })
	return store
}

func TestListTransactionsCommand_InvalidFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "type", args: []string{"--type", "refund"}, wantErr: "invalid --type"},
		{name: "currency", args: []string{"--currency", "USD"}, wantErr: "invalid --currency"},
		{name: "since", args: []string{"--since", "15/01/2023"}, wantErr: "use YYYY-MM-DD"},
		{name: "limit", args: []string{"--limit", "0"}, wantErr: "at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Validation happens before connecting, so no database is needed.
			args := append([]string{"txreview", "--database-url", "postgres://nowhere:1/none", "db", "list-transactions"}, tt.args...)
			err := newApp().Run(args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestListTransactionsCommand_RequiresDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")

	err := newApp().Run([]string{"txreview", "db", "list-transactions"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database-url is required")
}

func TestListTransactionsCommand(t *testing.T) {
	store := setupTestDB(t)

	food := sampleTransaction("BT-1")
	food.CategoryName = "Food"
	salary := sampleTransaction("BT-2")
	salary.Type = review.TypeDeposit
	salary.Date = "2023-02-01"
	salary.CategoryName = "Salary"
	store.Seed(t, food, salary)

	t.Run("json", func(t *testing.T) {
		var err error
		out := captureStdout(t, func() {
			err = newApp().Run([]string{"txreview", "--json", "db", "list-transactions"})
		})
		require.NoError(t, err)

		var rows []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &rows))
		require.Len(t, rows, 2)
		assert.Equal(t, "BT-2", rows[0]["external_id"], "newest first")
	})

	t.Run("filter by type", func(t *testing.T) {
		var err error
		out := captureStdout(t, func() {
			err = newApp().Run([]string{"txreview", "db", "list-transactions", "--type", "deposit"})
		})
		require.NoError(t, err)
		assert.Contains(t, out, "BT-2")
		assert.NotContains(t, out, "BT-1")
	})

	t.Run("since", func(t *testing.T) {
		var err error
		out := captureStdout(t, func() {
			err = newApp().Run([]string{"txreview", "db", "list-transactions", "--since", "2023-01-20"})
		})
		require.NoError(t, err)
		assert.Contains(t, out, "BT-2")
		assert.NotContains(t, out, "BT-1")
	})
}

func TestVocabulariesCommand(t *testing.T) {
	store := setupTestDB(t)

	txn := sampleTransaction("BT-1")
	txn.CategoryName = "Food"
	store.Seed(t, txn)

	var runErr error
	out := captureStdout(t, func() {
		runErr = newApp().Run([]string{"txreview", "--json", "db", "vocabularies"})
	})
	require.NoError(t, runErr)

	var vocab map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &vocab))
	assert.Equal(t, []string{"Banca Transilvania", "Tazz"}, vocab["accounts"])
	assert.Equal(t, []string{"Food"}, vocab["categories"])
	assert.Equal(t, []string{"Mancare comandata"}, vocab["descriptions"])
}
