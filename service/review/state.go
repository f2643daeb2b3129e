package review

import (
	"errors"
	"slices"
	"strings"
)

// Phase is the coarse review state derived from State.
type Phase int

const (
	// PhaseIdle means no batch is loaded and no upload is outstanding.
	PhaseIdle Phase = iota
	// PhaseAwaitingBatch means a file was sent and the server has not answered with a batch yet.
	PhaseAwaitingBatch
	// PhaseReviewing means a batch is loaded and the cursor points at a transaction.
	PhaseReviewing
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingBatch:
		return "awaiting_batch"
	case PhaseReviewing:
		return "reviewing"
	}
	return "unknown"
}

// ConnectionState mirrors the lifecycle of the transport.
type ConnectionState int

const (
	ConnUninstantiated ConnectionState = iota
	ConnConnecting
	ConnOpen
	ConnClosing
	ConnClosed
)

// String returns the label shown to the reviewer.
func (c ConnectionState) String() string {
	switch c {
	case ConnUninstantiated:
		return "Uninstantiated"
	case ConnConnecting:
		return "Connecting"
	case ConnOpen:
		return "Open"
	case ConnClosing:
		return "Closing"
	case ConnClosed:
		return "Closed"
	}
	return "Unknown"
}

var (
	// ErrNotConnected is returned when an action needs an open connection.
	ErrNotConnected = errors.New("connection is not open")
	// ErrNoActiveBatch is returned when submitting without a transaction under review.
	ErrNoActiveBatch = errors.New("no transaction under review")
)

// State is the complete review state. Transition methods take a value receiver and
// return the next State; a State is never modified in place.
type State struct {
	Batch        Batch
	Cursor       Cursor
	FileSent     bool
	Vocabularies Vocabularies
	// Log holds server info and error texts, newest first.
	Log []string

	// Request ids of submissions the server has not answered yet, oldest first.
	pending []string
}

// Phase derives the review phase.
func (s State) Phase() Phase {
	switch {
	case s.Cursor.Active && s.Cursor.Offset < s.Batch.Len():
		return PhaseReviewing
	case s.FileSent:
		return PhaseAwaitingBatch
	default:
		return PhaseIdle
	}
}

// ShowLoadingSpinner is true while an upload is waiting for its batch.
func (s State) ShowLoadingSpinner() bool {
	return s.Phase() == PhaseAwaitingBatch
}

// Current returns the transaction under review.
func (s State) Current() (Transaction, bool) {
	if s.Phase() != PhaseReviewing {
		return Transaction{}, false
	}
	return s.Batch.At(s.Cursor.Offset)
}

// CurrentFormValues returns the form view of the transaction under review,
// or the defaults when nothing is under review.
func (s State) CurrentFormValues() FormValues {
	if t, ok := s.Current(); ok {
		return t.FormValues()
	}
	return DefaultFormValues()
}

// LogText joins the session log, newest first, one entry per line.
func (s State) LogText() string {
	return strings.Join(s.Log, "\n")
}

// Pending returns the request ids still awaiting a server answer.
func (s State) Pending() []string {
	return slices.Clone(s.pending)
}

// Upload records that content is being sent and returns the message to send.
// Any previous batch is dropped and the cursor returns to zero.
func (s State) Upload(content string) (State, UploadMessage) {
	s.Batch = Batch{}
	s.Cursor = Cursor{}
	s.FileSent = true
	s.pending = nil
	return s, UploadMessage{Content: content}
}

// Submit applies the optimistic transition for an edited transaction and returns the
// message to send. The cursor advances when another transaction remains; submitting the
// last one clears the batch. The edited values feed the vocabularies in both cases.
func (s State) Submit(edited Transaction, requestID string) (State, SubmitMessage, error) {
	if s.Phase() != PhaseReviewing {
		return s, SubmitMessage{}, ErrNoActiveBatch
	}

	s.Vocabularies = s.Vocabularies.Learn(edited)
	if s.Cursor.HasNext(s.Batch.Len()) {
		s.Cursor = s.Cursor.Advance()
	} else {
		s.Batch = Batch{}
		s.Cursor = Cursor{}
		s.FileSent = false
	}
	if requestID != "" {
		s.pending = append(slices.Clone(s.pending), requestID)
	}
	return s, SubmitMessage{Transaction: edited, RequestID: requestID}, nil
}

// Receive applies an inbound server message. A message with no recognized field is ignored.
//
// An error rolls the cursor back one step (never below zero) to undo the optimistic advance of
// the submission it answers. When the error names a request id, only a pending submission is
// rolled back; an error without an id rolls back unconditionally. With no batch under review
// the error is only logged.
func (s State) Receive(msg InboundMessage) State {
	if msg.Empty() {
		return s
	}

	if msg.Error != nil {
		rollback := msg.RequestID == "" || slices.Contains(s.pending, msg.RequestID)
		if rollback && s.Cursor.Active {
			s.Cursor = s.Cursor.Retreat()
		}
	}
	s.pending = settle(s.pending, msg)

	if msg.Transactions != nil {
		s.Batch = NewBatch(msg.Transactions)
		s.Cursor = Start(s.Batch.Len())
		s.FileSent = false
		s.pending = nil
	}

	if msg.Accounts != nil {
		s.Vocabularies.Accounts = s.Vocabularies.Accounts.Replace(msg.Accounts)
	}
	if msg.Categories != nil {
		s.Vocabularies.Categories = s.Vocabularies.Categories.Replace(msg.Categories)
	}
	if msg.Descriptions != nil {
		s.Vocabularies.Descriptions = s.Vocabularies.Descriptions.Replace(msg.Descriptions)
	}

	if msg.Info != nil {
		s.Log = prepend(s.Log, *msg.Info)
	}
	if msg.Error != nil {
		s.Log = prepend(s.Log, *msg.Error)
	}
	return s
}

// settle drops the submission a reply answers. Replies without an id answer the oldest
// pending submission when they are errors.
func settle(pending []string, msg InboundMessage) []string {
	if len(pending) == 0 {
		return pending
	}
	if msg.RequestID != "" {
		i := slices.Index(pending, msg.RequestID)
		if i < 0 {
			return pending
		}
		return slices.Delete(slices.Clone(pending), i, i+1)
	}
	if msg.Error != nil {
		return slices.Clone(pending[1:])
	}
	return pending
}

func prepend(log []string, entry string) []string {
	out := make([]string, 0, len(log)+1)
	out = append(out, entry)
	return append(out, log...)
}
