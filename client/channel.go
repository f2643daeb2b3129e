package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/brojonat/txreview/service/review"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// closeGrace is how long Close waits for the server to acknowledge the close frame.
	closeGrace = 2 * time.Second
)

// DefaultURL is the review endpoint of a locally running server.
const DefaultURL = "ws://127.0.0.1:8000/ws"

// Channel is a persistent websocket connection to the review server.
//
// A Channel is single use: once it reaches Closed it stays closed, and reconnecting
// means creating a new Channel. It never retries on its own.
type Channel struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	state     review.ConnectionState
	last      []byte
	onMessage []func([]byte)
	onState   []func(review.ConnectionState)
	done      chan struct{}
	doneOnce  sync.Once

	writeMu sync.Mutex
}

// NewChannel creates an unconnected channel for url.
func NewChannel(url string, dialer *websocket.Dialer, logger *slog.Logger) *Channel {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Channel{
		url:    url,
		dialer: dialer,
		logger: logger,
		state:  review.ConnUninstantiated,
		done:   make(chan struct{}),
	}
}

// OnMessage registers fn to receive every inbound message, in receipt order.
// Handlers run on the channel's read goroutine, one message at a time.
func (c *Channel) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = append(c.onMessage, fn)
}

// OnStateChange registers fn to be called after every state transition.
func (c *Channel) OnStateChange(fn func(review.ConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = append(c.onState, fn)
}

// Connect dials the server and starts reading. It may be called once.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != review.ConnUninstantiated {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("channel already used (state %s)", state)
	}
	c.mu.Unlock()

	c.setState(review.ConnConnecting)
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.setState(review.ConnClosed)
		c.finish()
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("connected to review server", "url", c.url)
	c.setState(review.ConnOpen)
	go c.readLoop(conn)
	return nil
}

// Send encodes payload as JSON and writes it. It silently does nothing unless the
// channel is open; callers gate on State when delivery matters.
func (c *Channel) Send(payload any) {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if state != review.ConnOpen || conn == nil {
		c.logger.Debug("dropping message, channel not open", "state", state.String())
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("failed to marshal outbound message", "error", err)
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Warn("failed to write message", "error", err)
	}
}

// State returns the current connection state.
func (c *Channel) State() review.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastMessage returns the most recently received message, or nil.
func (c *Channel) LastMessage() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return nil
	}
	return append([]byte(nil), c.last...)
}

// Done is closed once the channel reaches Closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close performs the websocket closing handshake and waits for the read loop to stop.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn, state := c.conn, c.state
	c.mu.Unlock()

	if conn == nil || state != review.ConnOpen {
		return nil
	}

	c.setState(review.ConnClosing)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}

	select {
	case <-c.done:
	case <-time.After(closeGrace):
		// The server never answered; dropping the socket ends the read loop.
		conn.Close()
		<-c.done
	}
	if err != nil {
		return fmt.Errorf("failed to send close frame: %w", err)
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	defer func() {
		conn.Close()
		c.setState(review.ConnClosed)
		c.finish()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection lost", "error", err)
			} else {
				c.logger.Debug("connection closed", "error", err)
			}
			return
		}

		c.mu.Lock()
		c.last = data
		handlers := slices.Clone(c.onMessage)
		c.mu.Unlock()

		for _, fn := range handlers {
			fn(data)
		}
	}
}

func (c *Channel) setState(state review.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	handlers := slices.Clone(c.onState)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(state)
	}
}

func (c *Channel) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}
