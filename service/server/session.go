package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txreview/service/review"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const reviewEndpoint = "/ws"

// sessionOptions bounds a review websocket session.
type sessionOptions struct {
	writeTimeout time.Duration
	pingInterval time.Duration
	// readLimit caps a single inbound frame.
	readLimit int64
}

func (o sessionOptions) pongWait() time.Duration {
	return o.pingInterval + o.writeTimeout
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// CORS is open on every route; the review endpoint follows suit.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleReviewSession upgrades to a websocket and serves one review session.
// GET /ws
// The session pushes a vocabulary snapshot, then answers each client message
// with one reply, in order, until the client goes away.
func handleReviewSession(svc *reviewService, opts sessionOptions, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error.
			logger.Debug("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
			return
		}
		defer conn.Close()

		sessionID := uuid.NewString()
		log := logger.With("session_id", sessionID, "remote_addr", r.RemoteAddr)
		log.Info("review session opened")

		if svc.metrics != nil {
			svc.metrics.RecordSessionChange(reviewEndpoint, 1)
			defer svc.metrics.RecordSessionChange(reviewEndpoint, -1)
		}

		ctx := r.Context()
		conn.SetReadLimit(opts.readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(opts.pongWait()))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(opts.pongWait()))
		})

		stopPing := make(chan struct{})
		defer close(stopPing)
		go keepAlive(conn, opts, stopPing, log)

		send := func(msg review.InboundMessage) error {
			_ = conn.SetWriteDeadline(time.Now().Add(opts.writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
			svc.recordMessage("out", replyKind(msg))
			return nil
		}

		snapshot, err := svc.vocabularies(ctx)
		if err != nil {
			log.Error("failed to load vocabularies", "error", err)
			snapshot = errorReply("failed to load vocabularies", "")
		}
		if err := send(snapshot); err != nil {
			log.Warn("failed to send vocabulary snapshot", "error", err)
			svc.recordSessionEnded("write_error")
			return
		}

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				reason := closeReason(err)
				if reason == "normal" {
					log.Info("review session closed")
				} else {
					log.Warn("review session ended", "reason", reason, "error", err)
				}
				svc.recordSessionEnded(reason)
				return
			}
			if msgType != websocket.TextMessage {
				log.Debug("ignoring non-text frame", "type", msgType)
				continue
			}

			if err := send(svc.handle(ctx, data)); err != nil {
				log.Warn("failed to write reply", "error", err)
				svc.recordSessionEnded("write_error")
				return
			}
		}
	})
}

// keepAlive pings the client until stop is closed. The pongs keep the read deadline
// moving while a reviewer sits on one transaction.
func keepAlive(conn *websocket.Conn, opts sessionOptions, stop <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(opts.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.writeTimeout)); err != nil {
				log.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

func (s *reviewService) recordSessionEnded(reason string) {
	if s.metrics != nil {
		s.metrics.RecordSessionEnded(reviewEndpoint, reason)
	}
}

func closeReason(err error) string {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr) && (closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway):
		return "normal"
	case errors.Is(err, websocket.ErrReadLimit):
		return "read_limit"
	case errors.As(err, &closeErr):
		return "abnormal"
	default:
		return "read_error"
	}
}

func replyKind(msg review.InboundMessage) string {
	switch {
	case msg.Error != nil:
		return "error"
	case msg.Transactions != nil:
		return "batch"
	case msg.Info != nil:
		return "info"
	default:
		return "vocabularies"
	}
}
