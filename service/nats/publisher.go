package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Publisher announces stored reviewed transactions.
type Publisher interface {
	// PublishReviewed publishes event on event.Subject().
	PublishReviewed(ctx context.Context, event *ReviewedTransactionEvent) error
	Close() error
}

const (
	StreamName = "REVIEWED"

	// SubjectPrefix is followed by the transaction type, e.g. "reviewed.deposit".
	SubjectPrefix  = "reviewed."
	StreamSubjects = SubjectPrefix + "*"

	StreamRetention = 30 * 24 * time.Hour

	// DuplicateWindow bounds JetStream's message-id dedup of retried publishes.
	DuplicateWindow = 10 * time.Minute

	setupTimeout = 10 * time.Second
)

// JetStreamPublisher publishes reviewed transaction events to the REVIEWED stream.
type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewPublisher connects to natsURL and creates or updates the REVIEWED stream.
func NewPublisher(natsURL string, logger *slog.Logger) (*JetStreamPublisher, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("txreview-publisher"),
		nats.Timeout(setupTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()
	stream, err := js.CreateOrUpdateStream(ctx, StreamConfig())
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", StreamName, err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
		"messages", stream.CachedInfo().State.Msgs,
	)
	return &JetStreamPublisher{nc: nc, js: js, logger: logger}, nil
}

// StreamConfig is the configuration of the REVIEWED stream.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Reviewed transactions accepted by the review server",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Duplicates:  DuplicateWindow,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}
}

func (p *JetStreamPublisher) PublishReviewed(ctx context.Context, event *ReviewedTransactionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reviewed transaction event: %w", err)
	}

	// External ids are unique in the store, so they double as message ids.
	ack, err := p.js.Publish(ctx, event.Subject(), data, jetstream.WithMsgID(event.Transaction.ExternalID))
	if err != nil {
		return fmt.Errorf("failed to publish reviewed transaction: %w", err)
	}

	p.logger.Debug("published reviewed transaction event",
		"subject", event.Subject(),
		"external_id", event.Transaction.ExternalID,
		"request_id", event.RequestID,
		"seq", ack.Sequence,
		"duplicate", ack.Duplicate,
	)
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	p.logger.Info("NATS publisher closed")
	return nil
}
