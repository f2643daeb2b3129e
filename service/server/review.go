package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/txreview/service/db"
	"github.com/brojonat/txreview/service/metrics"
	natspkg "github.com/brojonat/txreview/service/nats"
	"github.com/brojonat/txreview/service/review"
)

// TransactionStore is the persistence the review endpoint needs. *db.Store satisfies it.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn review.Transaction) (*db.StoredTransaction, error)
	TransactionExists(ctx context.Context, externalID string) (bool, error)
	ListTransactions(ctx context.Context, filter db.ListTransactionsFilter) ([]*db.StoredTransaction, error)
	ListAccounts(ctx context.Context) ([]string, error)
	ListCategories(ctx context.Context) ([]string, error)
	ListDescriptions(ctx context.Context) ([]string, error)
}

const (
	msgUnrecognized = "unrecognized message"
	msgDuplicate    = "duplicate"
)

// reviewService answers review messages. It holds no per-session state.
type reviewService struct {
	store          TransactionStore
	publisher      natspkg.Publisher
	decoder        Decoder
	maxUploadBytes int64
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// handle answers one raw client message with exactly one reply.
func (s *reviewService) handle(ctx context.Context, data []byte) review.InboundMessage {
	var msg review.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.recordMessage("in", "invalid")
		s.logger.Debug("invalid client message", "error", err)
		return errorReply(msgUnrecognized, "")
	}

	switch {
	case msg.Content != nil:
		s.recordMessage("in", "content")
		return s.decode(ctx, *msg.Content)
	case msg.Transaction != nil:
		s.recordMessage("in", "transaction")
		return s.submit(ctx, msg)
	default:
		s.recordMessage("in", "unrecognized")
		return errorReply(msgUnrecognized, msg.RequestID)
	}
}

// decode turns an upload into a batch reply carrying the current vocabularies.
func (s *reviewService) decode(ctx context.Context, content string) review.InboundMessage {
	if s.maxUploadBytes > 0 && int64(len(content)) > s.maxUploadBytes {
		s.logger.Warn("upload too large", "bytes", len(content), "max_bytes", s.maxUploadBytes)
		return errorReply(fmt.Sprintf("upload too large: %d bytes exceeds %d", len(content), s.maxUploadBytes), "")
	}

	start := time.Now()
	batch, err := s.decoder.Decode(ctx, content)
	if s.metrics != nil {
		s.metrics.RecordDecode(len(content), len(batch), time.Since(start).Seconds(), err)
	}
	if err != nil {
		s.logger.Info("failed to decode upload", "bytes", len(content), "error", err)
		return errorReply(fmt.Sprintf("failed to decode upload: %v", err), "")
	}

	reply, err := s.vocabularies(ctx)
	if err != nil {
		s.logger.Error("failed to load vocabularies", "error", err)
		return errorReply("failed to load vocabularies", "")
	}
	reply.Transactions = batch
	reply.Info = review.Text(fmt.Sprintf("decoded %d transactions", len(batch)))

	s.logger.Info("decoded upload", "bytes", len(content), "transactions", len(batch))
	return reply
}

// submit stores one reviewed transaction and publishes it.
func (s *reviewService) submit(ctx context.Context, msg review.ClientMessage) review.InboundMessage {
	txn, requestID := *msg.Transaction, msg.RequestID
	logger := s.logger.With("external_id", txn.ExternalID, "request_id", requestID)

	if err := msg.ValidateTransaction(); err != nil {
		s.recordSubmission("invalid")
		logger.Debug("rejected incomplete transaction", "error", err)
		return errorReply(err.Error(), requestID)
	}

	start := time.Now()
	exists, err := s.store.TransactionExists(ctx, txn.ExternalID)
	s.recordDB("exists", start, err)
	if err != nil {
		s.recordSubmission("error")
		logger.Error("failed to check for duplicate", "error", err)
		return errorReply(fmt.Sprintf("failed to store %s", txn.ExternalID), requestID)
	}
	if exists {
		s.recordSubmission("duplicate")
		logger.Info("duplicate transaction")
		return errorReply(msgDuplicate, requestID)
	}

	start = time.Now()
	stored, err := s.store.CreateTransaction(ctx, txn)
	s.recordDB("insert", start, err)
	if errors.Is(err, db.ErrDuplicate) {
		// Lost a race with another session.
		s.recordSubmission("duplicate")
		logger.Info("duplicate transaction")
		return errorReply(msgDuplicate, requestID)
	}
	if err != nil {
		s.recordSubmission("error")
		logger.Error("failed to store transaction", "error", err)
		return errorReply(fmt.Sprintf("failed to store %s", txn.ExternalID), requestID)
	}
	s.recordSubmission("stored")

	s.publish(ctx, stored, requestID)

	reply, err := s.vocabularies(ctx)
	if err != nil {
		// The transaction is stored; the client keeps its merged vocabularies.
		logger.Warn("failed to load vocabularies after store", "error", err)
		reply = review.InboundMessage{}
	}
	reply.Info = review.Text("stored " + txn.ExternalID)
	reply.RequestID = requestID

	logger.Info("stored transaction")
	return reply
}

// publish emits the stored event. Failures are logged and never reach the client.
func (s *reviewService) publish(ctx context.Context, stored *db.StoredTransaction, requestID string) {
	if s.publisher == nil {
		return
	}
	event := natspkg.FromStoredTransaction(stored, requestID)
	start := time.Now()
	err := s.publisher.PublishReviewed(ctx, event)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordNATSPublish(event.Subject(), status, time.Since(start).Seconds())
	}
	if err != nil {
		s.logger.Error("failed to publish reviewed transaction",
			"external_id", stored.ExternalID,
			"subject", event.Subject(),
			"error", err,
		)
	}
}

// vocabularies builds a reply carrying the full server vocabularies.
func (s *reviewService) vocabularies(ctx context.Context) (reply review.InboundMessage, err error) {
	start := time.Now()
	defer func() { s.recordDB("vocabularies", start, err) }()

	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return review.InboundMessage{}, fmt.Errorf("failed to list accounts: %w", err)
	}
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return review.InboundMessage{}, fmt.Errorf("failed to list categories: %w", err)
	}
	descriptions, err := s.store.ListDescriptions(ctx)
	if err != nil {
		return review.InboundMessage{}, fmt.Errorf("failed to list descriptions: %w", err)
	}

	return review.InboundMessage{
		Accounts:     orEmpty(accounts),
		Categories:   orEmpty(categories),
		Descriptions: orEmpty(descriptions),
	}, nil
}

func (s *reviewService) recordMessage(direction, kind string) {
	if s.metrics != nil {
		s.metrics.RecordMessage(direction, kind)
	}
}

func (s *reviewService) recordSubmission(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSubmission(outcome)
	}
}

func (s *reviewService) recordDB(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, "reviewed_transactions", time.Since(start).Seconds(), err)
	}
}

func errorReply(message, requestID string) review.InboundMessage {
	return review.InboundMessage{Error: review.Text(message), RequestID: requestID}
}

// orEmpty keeps an empty vocabulary on the wire as [] rather than null,
// which the client reads as "replace with nothing".
func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
