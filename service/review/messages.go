package review

import (
	"encoding/json"
	"fmt"
)

// UploadMessage carries the raw text of an uploaded file to the server.
type UploadMessage struct {
	Content string `json:"content"`
}

// SubmitMessage carries one reviewed transaction to the server.
type SubmitMessage struct {
	Transaction Transaction `json:"transaction"`
	RequestID   string      `json:"request_id,omitempty"`
}

// InboundMessage is what the server sends. Any subset of fields may be present.
// A nil slice means the field was absent or null; an empty slice is an explicit empty list,
// and the list fields carry no omitempty.
type InboundMessage struct {
	Transactions []Transaction `json:"transactions"`
	Accounts     []string      `json:"accounts"`
	Categories   []string      `json:"categories"`
	Descriptions []string      `json:"descriptions"`
	Info         *string       `json:"info,omitempty"`
	Error        *string       `json:"error,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
}

// Empty reports whether the message carries none of the recognized fields.
func (m InboundMessage) Empty() bool {
	return m.Transactions == nil &&
		m.Accounts == nil &&
		m.Categories == nil &&
		m.Descriptions == nil &&
		m.Info == nil &&
		m.Error == nil
}

// DecodeInbound parses a server message.
func DecodeInbound(data []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("failed to decode inbound message: %w", err)
	}
	return msg, nil
}

// ClientMessage is the server-side view of an outbound message: exactly one of
// Content or Transaction is expected to be set.
type ClientMessage struct {
	Content     *string      `json:"content,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	RequestID   string       `json:"request_id,omitempty"`

	// amountAbsent is set when the transaction carried no amount, or a null one.
	// A decoded decimal cannot tell that apart from 0.
	amountAbsent bool
}

func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	type plain ClientMessage
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*m = ClientMessage(p)
	if m.Transaction == nil {
		return nil
	}

	var amount struct {
		Transaction struct {
			Amount json.RawMessage `json:"amount"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(data, &amount); err != nil {
		return err
	}
	raw := amount.Transaction.Amount
	m.amountAbsent = len(raw) == 0 || string(raw) == "null"
	return nil
}

// ValidateTransaction checks that the submitted transaction has every required field,
// including an amount, which may be zero but must be sent.
func (m ClientMessage) ValidateTransaction() error {
	if m.Transaction == nil {
		return incomplete([]string{"transaction"})
	}
	missing := m.Transaction.missingFields()
	if m.amountAbsent {
		missing = append(missing, "amount")
	}
	return incomplete(missing)
}

// Text returns a pointer to s, for building InboundMessage values.
func Text(s string) *string {
	return &s
}
