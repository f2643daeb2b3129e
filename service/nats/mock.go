package nats

import (
	"context"
	"sync"
)

// MockPublisher records reviewed events in memory. Safe for concurrent sessions.
type MockPublisher struct {
	mu     sync.RWMutex
	events []*ReviewedTransactionEvent
	err    error
	closed bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishReviewed records event unless SetPublishError armed a failure.
func (m *MockPublisher) PublishReviewed(ctx context.Context, event *ReviewedTransactionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// GetPublishedEvents returns a copy of the recorded events in publish order.
func (m *MockPublisher) GetPublishedEvents() []*ReviewedTransactionEvent {
	return m.matching(func(*ReviewedTransactionEvent) bool { return true })
}

func (m *MockPublisher) GetPublishedEventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// GetPublishedEventsForSubject returns the events routed to subject, e.g. "reviewed.deposit".
func (m *MockPublisher) GetPublishedEventsForSubject(subject string) []*ReviewedTransactionEvent {
	return m.matching(func(e *ReviewedTransactionEvent) bool { return e.Subject() == subject })
}

// PublishedExternalIDs lists the external ids of the recorded events in publish order.
func (m *MockPublisher) PublishedExternalIDs() []string {
	events := m.GetPublishedEvents()
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.Transaction.ExternalID
	}
	return ids
}

func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// Reset forgets events, the armed error and the closed flag.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.err = nil
	m.closed = false
}

func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *MockPublisher) matching(keep func(*ReviewedTransactionEvent) bool) []*ReviewedTransactionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*ReviewedTransactionEvent, 0, len(m.events))
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
