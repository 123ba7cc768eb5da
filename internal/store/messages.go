// Package store persists chat messages in a relational backend through
// database/sql. Retrieval is always returned oldest-first even though the
// underlying queries fetch newest-first.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/zhouzirui/chat-relay/internal/model/chat"
)

// MessageStore is the append-only log of chat messages.
type MessageStore struct {
	db *sql.DB
}

// New wraps an already-open database handle.
func New(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

// Open connects to the backend, verifies it is reachable, and applies
// conservative pool limits.
func Open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the messages table and session index if absent. Safe to
// run on every startup.
func (s *MessageStore) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id VARCHAR(36) PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			is_ai BOOLEAN NOT NULL DEFAULT FALSE,
			session_id VARCHAR(36) NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create messages table: %w", err)
	}

	index := `CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id)`
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to create session index: %w", err)
	}

	return nil
}

// Append durably records one message.
func (s *MessageStore) Append(ctx context.Context, msg chat.StoredMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, username, message, timestamp, is_ai, session_id) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.Username, msg.Body, msg.Timestamp, msg.IsAI, msg.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// RecentBySession returns up to limit most-recent messages for one session,
// oldest first.
func (s *MessageStore) RecentBySession(ctx context.Context, sessionID string, limit int) ([]chat.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, message, timestamp, is_ai, session_id FROM messages WHERE session_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query session messages: %w", err)
	}
	defer rows.Close()

	return collectChronological(rows)
}

// RecentGlobal returns up to limit most-recent messages across all
// sessions, oldest first. Used by the single shared room variant.
func (s *MessageStore) RecentGlobal(ctx context.Context, limit int) ([]chat.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, message, timestamp, is_ai, session_id FROM messages ORDER BY timestamp DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return collectChronological(rows)
}

func collectChronological(rows *sql.Rows) ([]chat.StoredMessage, error) {
	var messages []chat.StoredMessage
	for rows.Next() {
		var msg chat.StoredMessage
		if err := rows.Scan(&msg.ID, &msg.Username, &msg.Body, &msg.Timestamp, &msg.IsAI, &msg.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	// Rows arrive newest-first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
