// Package ws owns the lifecycle of one chat connection: identity
// validation, session attachment, history replay, the paired read/write
// loops, and idempotent teardown.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/chat-relay/internal/config"
	"github.com/zhouzirui/chat-relay/internal/model/chat"
	"github.com/zhouzirui/chat-relay/internal/service/broadcast"
	"github.com/zhouzirui/chat-relay/internal/service/responder"
	"github.com/zhouzirui/chat-relay/internal/service/session"
	"github.com/zhouzirui/chat-relay/internal/store"
)

// GlobalSession is the implicit session shared by every connection when
// the service runs as a single room.
const GlobalSession = "global"

// Handler upgrades chat connections and streams messages between the
// client and the broadcast router.
type Handler struct {
	registry  *session.Registry
	messages  *store.MessageStore
	router    *broadcast.Router
	responder *responder.Service
	cfg       config.ChatConfig
	upgrader  websocket.Upgrader
}

// New wires the connection handler against the shared services.
func New(registry *session.Registry, messages *store.MessageStore, router *broadcast.Router, responderSvc *responder.Service, cfg config.ChatConfig) *Handler {
	return &Handler{
		registry:  registry,
		messages:  messages,
		router:    router,
		responder: responderSvc,
		cfg:       cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		log.Printf("[websocket] connection rejected: missing username")
		http.Error(w, "username query parameter is required", http.StatusBadRequest)
		return
	}

	identity := r.URL.Query().Get("email")
	if !h.cfg.GlobalRoom && identity == "" {
		log.Printf("[websocket] connection rejected: missing email")
		http.Error(w, "email query parameter is required", http.StatusBadRequest)
		return
	}

	// Each connect gets a brand-new session; identities never resume an
	// old one. In the single-room mode everyone shares one session and
	// the registry stays out of the picture.
	sessionID := GlobalSession
	if !h.cfg.GlobalRoom {
		sessionID = h.registry.Attach(identity)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		if !h.cfg.GlobalRoom {
			h.registry.Detach(identity)
		}
		return
	}

	log.Printf("[websocket] user %s (%s) connected with session %s", username, identity, sessionID)

	sub := h.router.Subscribe()

	var once sync.Once
	teardown := func() {
		once.Do(func() {
			sub.Close()
			if !h.cfg.GlobalRoom {
				h.registry.Detach(identity)
			}
			conn.Close()
			log.Printf("[websocket] user %s (%s) disconnected from session %s", username, identity, sessionID)
		})
	}
	defer teardown()

	if !h.replayHistory(r.Context(), conn, sessionID) {
		return
	}

	go func() {
		defer teardown()
		h.readLoop(r.Context(), conn, username, sessionID)
	}()

	h.writeLoop(conn, sub, sessionID)
}

// replayHistory sends the session's persisted backlog before live
// delivery begins. Store failures degrade to an empty backlog; a write
// failure means the client is already gone.
func (h *Handler) replayHistory(ctx context.Context, conn *websocket.Conn, sessionID string) bool {
	var (
		history []chat.StoredMessage
		err     error
	)
	if h.cfg.GlobalRoom {
		history, err = h.messages.RecentGlobal(ctx, h.cfg.HistoryLimit)
	} else {
		history, err = h.messages.RecentBySession(ctx, sessionID, h.cfg.HistoryLimit)
	}
	if err != nil {
		log.Printf("[websocket] failed to load history for session %s: %v", sessionID, err)
		return true
	}

	for _, msg := range history {
		if err := conn.WriteJSON(msg.Wire()); err != nil {
			return false
		}
	}
	return true
}

// readLoop consumes client frames until the transport fails. Malformed
// frames are skipped silently; well-formed ones are re-stamped with the
// connection's true identity, persisted, published, and offered to the
// auto-responder.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, username, sessionID string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error for session %s: %v", sessionID, err)
			}
			return
		}

		var msg chat.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Not a protocol violation worth killing the connection over.
			continue
		}

		// Client-supplied attribution is never trusted.
		msg.Username = username
		msg.SessionID = sessionID
		msg.IsAI = false
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp <= 0 {
			msg.Timestamp = time.Now().UnixMilli()
		}

		if err := h.messages.Append(ctx, msg.Stored()); err != nil {
			// Live delivery still proceeds on a failed insert.
			log.Printf("[websocket] failed to persist message %s: %v", msg.ID, err)
		}

		h.router.Publish(msg)

		if h.responder != nil {
			h.responder.MaybeReply(ctx, msg)
		}
	}
}

// writeLoop forwards published messages to the client, applying the
// session filter at this consuming edge. Ends when the subscription is
// closed or a write fails.
func (h *Handler) writeLoop(conn *websocket.Conn, sub *broadcast.Subscription, sessionID string) {
	for msg := range sub.C() {
		if !h.cfg.GlobalRoom && msg.SessionID != sessionID {
			continue
		}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
