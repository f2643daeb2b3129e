package review

import (
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Channel is the transport the controller talks through.
// Send must silently drop the payload when the connection is not open.
type Channel interface {
	Send(payload any)
	State() ConnectionState
}

// View is everything the presentation layer needs, computed from State on read.
type View struct {
	// Version increases with every transition so listeners can drop stale views.
	Version            uint64
	Phase              Phase
	ConnectionStatus   string
	WSConnectionClosed bool
	ShowLoadingSpinner bool
	Current            FormValues
	// Position is the 1-based index of the current transaction, 0 when idle.
	Position     int
	Total        int
	Accounts     []string
	Categories   []string
	Descriptions []string
	Log          []string
	LogText      string
}

// Controller owns the review State and serializes every transition through one lock.
// Upload and Submit are the reviewer's stimuli; HandleMessage is the server's.
type Controller struct {
	mu        sync.Mutex
	state     State
	version   uint64
	channel   Channel
	newID     func() string
	logger    *slog.Logger
	listeners []func(View)
}

// NewController creates a controller sending through channel.
func NewController(channel Channel, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Controller{
		channel: channel,
		newID:   uuid.NewString,
		logger:  logger,
	}
}

// Subscribe registers fn to receive a View after every transition.
// fn runs on the goroutine that caused the transition, after the lock is released.
func (c *Controller) Subscribe(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Upload sends the content of a file for decoding. It does nothing and returns
// ErrNotConnected when the connection is not open.
func (c *Controller) Upload(content string) error {
	c.mu.Lock()
	if c.channel.State() != ConnOpen {
		c.mu.Unlock()
		c.logger.Debug("upload ignored, connection not open")
		return ErrNotConnected
	}

	next, msg := c.state.Upload(content)
	c.channel.Send(msg)
	view := c.commit(next)
	c.mu.Unlock()

	c.logger.Debug("file uploaded", "bytes", len(content))
	c.notify(view)
	return nil
}

// Submit sends an edited transaction and optimistically moves to the next one.
func (c *Controller) Submit(edited Transaction) error {
	c.mu.Lock()
	if c.channel.State() != ConnOpen {
		c.mu.Unlock()
		return ErrNotConnected
	}

	if edited.ExternalID == "" {
		if current, ok := c.state.Current(); ok {
			edited.ExternalID = current.ExternalID
		}
	}

	next, msg, err := c.state.Submit(edited, c.newID())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.channel.Send(msg)
	view := c.commit(next)
	c.mu.Unlock()

	c.logger.Debug("transaction submitted",
		"external_id", edited.ExternalID,
		"request_id", msg.RequestID,
		"phase", view.Phase.String(),
	)
	c.notify(view)
	return nil
}

// SubmitForm parses edited form values and submits them.
func (c *Controller) SubmitForm(values FormValues) error {
	t, err := values.Transaction()
	if err != nil {
		return err
	}
	return c.Submit(t)
}

// HandleMessage processes one raw message from the channel. Undecodable or
// unrecognized payloads are dropped without touching the state.
func (c *Controller) HandleMessage(data []byte) {
	msg, err := DecodeInbound(data)
	if err != nil {
		c.logger.Debug("dropping malformed message", "error", err)
		return
	}
	if msg.Empty() {
		c.logger.Debug("dropping message with no recognized fields")
		return
	}
	c.Receive(msg)
}

// Receive applies a decoded server message.
func (c *Controller) Receive(msg InboundMessage) {
	c.mu.Lock()
	next := c.state.Receive(msg)
	view := c.commit(next)
	c.mu.Unlock()

	if msg.Error != nil {
		c.logger.Debug("server reported error", "error", *msg.Error, "request_id", msg.RequestID)
	}
	c.notify(view)
}

// ConnectionChanged republishes the view when the transport changes state.
func (c *Controller) ConnectionChanged(state ConnectionState) {
	c.mu.Lock()
	c.version++
	view := c.view()
	c.mu.Unlock()

	c.logger.Debug("connection state changed", "state", state.String())
	c.notify(view)
}

// Snapshot returns the current View.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

// State returns a copy of the current State.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// commit installs next as the current state and returns its view. Callers hold mu.
func (c *Controller) commit(next State) View {
	c.state = next
	c.version++
	return c.view()
}

// view builds a View from the current state. Callers hold mu.
func (c *Controller) view() View {
	s := c.state
	conn := c.channel.State()
	v := View{
		Version:            c.version,
		Phase:              s.Phase(),
		ConnectionStatus:   conn.String(),
		WSConnectionClosed: conn != ConnOpen,
		ShowLoadingSpinner: s.ShowLoadingSpinner(),
		Current:            s.CurrentFormValues(),
		Total:              s.Batch.Len(),
		Accounts:           s.Vocabularies.Accounts.Values(),
		Categories:         s.Vocabularies.Categories.Values(),
		Descriptions:       s.Vocabularies.Descriptions.Values(),
		Log:                append([]string(nil), s.Log...),
		LogText:            s.LogText(),
	}
	if v.Phase == PhaseReviewing {
		v.Position = s.Cursor.Offset + 1
	}
	return v
}

func (c *Controller) notify(v View) {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

// Suggest returns completions for a form field from the matching vocabulary.
// Fields without a vocabulary return nil.
func (c *Controller) Suggest(field, text string, limit int) []string {
	c.mu.Lock()
	vocab := c.state.Vocabularies
	c.mu.Unlock()

	switch strings.ToLower(field) {
	case "source_account", "destination_account":
		return vocab.Accounts.Suggest(text, limit)
	case "category_name":
		return vocab.Categories.Suggest(text, limit)
	case "description":
		return vocab.Descriptions.Suggest(text, limit)
	}
	return nil
}
