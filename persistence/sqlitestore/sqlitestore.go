// Package sqlitestore implements persistence.Store on SQLite. Messages are
// stored as canonical JSON, so everything the message model can express
// (tool calls, tool results, attachments, metadata) survives a round trip
// through the database.
package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loopkit/loopkit/chat"
	"github.com/loopkit/loopkit/persistence"
)

// SQLiteStore implements persistence.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ persistence.Store = &SQLiteStore{}

// New creates a store backed by the database at dbPath, creating the schema
// if needed. Use ":memory:" for an in-memory database.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS messages (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    message         TEXT NOT NULL,
    created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
`
	_, err := s.db.Exec(ddl)
	return err
}

// Append implements persistence.Store. Messages are inserted in one
// transaction so a transcript never gains a partial send.
func (s *SQLiteStore) Append(conversationID string, msgs ...chat.Message) error {
	if conversationID == "" {
		return fmt.Errorf("conversation ID required")
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for i, msg := range msgs {
		raw, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode message %d: %w", i, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (conversation_id, message, created_at) VALUES (?, ?, ?)`,
			conversationID, string(raw), now,
		); err != nil {
			return fmt.Errorf("insert message %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Messages implements persistence.Store.
func (s *SQLiteStore) Messages(conversationID string) ([]chat.Message, error) {
	records, err := s.Records(conversationID)
	if err != nil {
		return nil, err
	}
	msgs := make([]chat.Message, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.Message)
	}
	return msgs, nil
}

// Records implements persistence.Store.
func (s *SQLiteStore) Records(conversationID string) ([]persistence.Record, error) {
	rows, err := s.db.Query(
		`SELECT id, message, created_at FROM messages WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var records []persistence.Record
	for rows.Next() {
		var r persistence.Record
		var raw string
		if err := rows.Scan(&r.ID, &raw, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &r.Message); err != nil {
			return nil, fmt.Errorf("decode message %d: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return records, nil
}

// ListConversations implements persistence.Store.
func (s *SQLiteStore) ListConversations() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT conversation_id FROM messages ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return ids, nil
}

// DeleteConversation implements persistence.Store.
func (s *SQLiteStore) DeleteConversation(conversationID string) error {
	if _, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// Close implements persistence.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
