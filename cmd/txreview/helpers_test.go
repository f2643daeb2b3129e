package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/brojonat/txreview/service/review"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleTransaction(id string) review.Transaction {
	return review.Transaction{
		ExternalID:         id,
		Description:        "Mancare comandata",
		Date:               "2023-01-15T12:30:00",
		SourceAccount:      "Banca Transilvania",
		DestinationAccount: "Tazz",
		Amount:             decimal.RequireFromString("45.5"),
		Type:               review.TypeWithdrawal,
		CurrencyCode:       review.CurrencyRON,
	}
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	out := make(chan string)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		out <- buf.String()
	}()

	fn()
	w.Close()
	os.Stdout = old
	return <-out
}

// newStubReviewServer serves the review endpoint: it greets with an empty vocabulary
// snapshot and answers every upload by decoding its content as a JSON array.
func newStubReviewServer(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		empty := []string{}
		if err := conn.WriteJSON(review.InboundMessage{Accounts: empty, Categories: empty, Descriptions: empty}); err != nil {
			return
		}

		for {
			var msg review.ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			reply := review.InboundMessage{Error: review.Text("unrecognized message")}
			if msg.Content != nil {
				var txns []review.Transaction
				if err := json.Unmarshal([]byte(*msg.Content), &txns); err != nil {
					reply = review.InboundMessage{Error: review.Text("failed to decode upload: " + err.Error())}
				} else {
					if txns == nil {
						txns = []review.Transaction{}
					}
					reply = review.InboundMessage{Transactions: txns, Info: review.Text("decoded")}
				}
			}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// fakeChannel is an always-open review.Channel that records what was sent.
type fakeChannel struct {
	mu    sync.Mutex
	state review.ConnectionState
	sent  []any
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{state: review.ConnOpen}
}

func (f *fakeChannel) Send(payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != review.ConnOpen {
		return
	}
	f.sent = append(f.sent, payload)
}

func (f *fakeChannel) State() review.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeChannel) last() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}
