package nats

import (
	"time"

	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/review"
)

// ReviewedTransactionEvent is published to "reviewed.{type}" once a reviewed
// transaction has been stored.
type ReviewedTransactionEvent struct {
	Transaction review.Transaction `json:"transaction"`

	// RequestID correlates the event with the submission that produced it.
	RequestID string `json:"request_id,omitempty"`

	StoredAt    time.Time `json:"stored_at"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject returns the subject the event is published to.
func (e *ReviewedTransactionEvent) Subject() string {
	txnType := string(e.Transaction.Type)
	if txnType == "" {
		txnType = "unknown"
	}
	return SubjectPrefix + txnType
}

// FromStoredTransaction converts a stored transaction to an event for publishing.
func FromStoredTransaction(stored *db.StoredTransaction, requestID string) *ReviewedTransactionEvent {
	return &ReviewedTransactionEvent{
		Transaction: stored.Transaction,
		RequestID:   requestID,
		StoredAt:    stored.CreatedAt,
		PublishedAt: time.Now().UTC(),
	}
}
