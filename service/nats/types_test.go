package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/review"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedTransaction(txnType review.TransactionType) *db.StoredTransaction {
	return &db.StoredTransaction{
		Transaction: review.Transaction{
			ExternalID:         "T-1",
			Description:        "Salariu",
			Date:               "2023-01-10",
			SourceAccount:      "Employer",
			DestinationAccount: "Banca Transilvania",
			Amount:             decimal.RequireFromString("5000.00"),
			Type:               txnType,
			CurrencyCode:       review.CurrencyRON,
		},
		CreatedAt: time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestFromStoredTransaction(t *testing.T) {
	event := FromStoredTransaction(storedTransaction(review.TypeDeposit), "req-1")

	assert.Equal(t, "T-1", event.Transaction.ExternalID)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC), event.StoredAt)
	assert.WithinDuration(t, time.Now(), event.PublishedAt, 5*time.Second)
	assert.Equal(t, "reviewed.deposit", event.Subject())
}

func TestSubject_UnknownType(t *testing.T) {
	event := FromStoredTransaction(storedTransaction(""), "")
	assert.Equal(t, "reviewed.unknown", event.Subject())
}

func TestEventJSON(t *testing.T) {
	event := FromStoredTransaction(storedTransaction(review.TypeWithdrawal), "")
	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "request_id")
	txn, ok := decoded["transaction"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "5000", txn["amount"])
	assert.Equal(t, "withdrawal", txn["type"])
}

func TestStreamConfig(t *testing.T) {
	cfg := StreamConfig()
	assert.Equal(t, "REVIEWED", cfg.Name)
	assert.Equal(t, []string{"reviewed.*"}, cfg.Subjects)
	assert.Equal(t, 30*24*time.Hour, cfg.MaxAge)
	assert.Equal(t, DuplicateWindow, cfg.Duplicates)
	assert.Equal(t, jetstream.LimitsPolicy, cfg.Retention)
}

func TestMockPublisher(t *testing.T) {
	ctx := context.Background()
	mock := NewMockPublisher()

	require.NoError(t, mock.PublishReviewed(ctx, FromStoredTransaction(storedTransaction(review.TypeDeposit), "")))
	require.NoError(t, mock.PublishReviewed(ctx, FromStoredTransaction(storedTransaction(review.TypeWithdrawal), "")))
	assert.Equal(t, 2, mock.GetPublishedEventCount())
	assert.Len(t, mock.GetPublishedEventsForSubject("reviewed.deposit"), 1)
	assert.Len(t, mock.PublishedExternalIDs(), 2)

	mock.SetPublishError(errors.New("nats down"))
	assert.Error(t, mock.PublishReviewed(ctx, FromStoredTransaction(storedTransaction(review.TypeDeposit), "")))
	assert.Equal(t, 2, mock.GetPublishedEventCount())

	require.NoError(t, mock.Close())
	assert.True(t, mock.IsClosed())

	mock.Reset()
	assert.Equal(t, 0, mock.GetPublishedEventCount())
	assert.False(t, mock.IsClosed())
}
