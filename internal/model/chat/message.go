package chat

import "time"

// Message is the wire form exchanged with clients over the WebSocket.
// Timestamps travel as epoch milliseconds for display ordering only.
type Message struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Body      string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	IsAI      bool   `json:"is_ai"`
	SessionID string `json:"session_id"`
}

// StoredMessage is the durable projection of a Message. Immutable once
// written; retention is not this service's concern.
type StoredMessage struct {
	ID        string
	Username  string
	Body      string
	Timestamp time.Time
	IsAI      bool
	SessionID string
}

// Stored converts the wire form for persistence. A zero or negative
// timestamp falls back to now rather than producing a degenerate row.
func (m Message) Stored() StoredMessage {
	ts := time.UnixMilli(m.Timestamp).UTC()
	if m.Timestamp <= 0 {
		ts = time.Now().UTC()
	}
	return StoredMessage{
		ID:        m.ID,
		Username:  m.Username,
		Body:      m.Body,
		Timestamp: ts,
		IsAI:      m.IsAI,
		SessionID: m.SessionID,
	}
}

// Wire converts a stored message back to the client-facing form.
func (m StoredMessage) Wire() Message {
	return Message{
		ID:        m.ID,
		Username:  m.Username,
		Body:      m.Body,
		Timestamp: m.Timestamp.UnixMilli(),
		IsAI:      m.IsAI,
		SessionID: m.SessionID,
	}
}
