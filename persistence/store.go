// Package persistence provides opt-in transcript storage. The agent loop
// itself keeps no state between sends; callers that want durable
// conversations append the messages each send returns and replay them later
// through agent.WithHistory.
package persistence

import (
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/loopkit/loopkit/chat"
)

// Record is one stored message plus storage bookkeeping. Message is the
// canonical value; everything else is assigned by the store.
type Record struct {
	ID        int64        `json:"id"`
	Message   chat.Message `json:"message"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Store persists conversation transcripts keyed by conversation ID.
// Implementations must preserve append order within a conversation.
type Store interface {
	// Append adds messages to the end of a conversation's transcript.
	Append(conversationID string, msgs ...chat.Message) error

	// Messages returns the full transcript in append order.
	Messages(conversationID string) ([]chat.Message, error)

	// Records returns the transcript with storage bookkeeping attached.
	Records(conversationID string) ([]Record, error)

	// ListConversations returns every conversation ID in the store.
	ListConversations() ([]string, error)

	// DeleteConversation removes a conversation and its transcript.
	DeleteConversation(conversationID string) error

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is an in-memory Store, useful for tests and ephemeral runs.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string][]Record
	nextID        int64
}

var _ Store = &MemoryStore{}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]Record),
		nextID:        1,
	}
}

// Append implements Store.
func (m *MemoryStore) Append(conversationID string, msgs ...chat.Message) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, msg := range msgs {
		m.conversations[conversationID] = append(m.conversations[conversationID], Record{
			ID:        m.nextID,
			Message:   msg,
			CreatedAt: now,
		})
		m.nextID++
	}
	return nil
}

// Messages implements Store.
func (m *MemoryStore) Messages(conversationID string) ([]chat.Message, error) {
	records, err := m.Records(conversationID)
	if err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.Message)
	}
	return msgs, nil
}

// Records implements Store.
func (m *MemoryStore) Records(conversationID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.conversations[conversationID]), nil
}

// ListConversations implements Store.
func (m *MemoryStore) ListConversations() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.conversations))
	for id := range m.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteConversation implements Store.
func (m *MemoryStore) DeleteConversation(conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.conversations, conversationID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}
