// Package responder decides when a human message deserves an automated
// reply, generates one via an external service, and feeds it back through
// the store and the broadcast router.
package responder

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/chat-relay/internal/model/chat"
	"github.com/zhouzirui/chat-relay/internal/service/broadcast"
	"github.com/zhouzirui/chat-relay/internal/store"
)

// AssistantName is the display name carried by every automated message.
const AssistantName = "AI Assistant"

// Generator produces a reply for a prompt. The boolean is false when no
// reply could be obtained for any reason.
type Generator interface {
	GenerateReply(ctx context.Context, prompt string) (string, bool)
}

// Service orchestrates one automated reply per triggering message.
type Service struct {
	store        *store.MessageStore
	router       *broadcast.Router
	generator    Generator
	contextLimit int
	delay        time.Duration
}

// NewService wires the responder against the shared store and router.
// contextLimit bounds how much history is fetched for the prompt; delay is
// the artificial pacing wait before an automated reply is published.
func NewService(messages *store.MessageStore, router *broadcast.Router, generator Generator, contextLimit int, delay time.Duration) *Service {
	return &Service{
		store:        messages,
		router:       router,
		generator:    generator,
		contextLimit: contextLimit,
		delay:        delay,
	}
}

// MaybeReply evaluates the trigger policy for one inbound human message
// and, when it fires, produces the automated follow-up: generate, persist,
// wait the pacing delay, publish. It runs synchronously in the caller's
// read loop and only ever suspends that one connection's inbound
// processing. Returns true when an automated message was published.
func (s *Service) MaybeReply(ctx context.Context, trigger chat.Message) bool {
	if !ShouldRespond(trigger.Body) {
		return false
	}

	contextMessages, err := s.store.RecentBySession(ctx, trigger.SessionID, s.contextLimit)
	if err != nil {
		// A reply without context beats no reply.
		log.Printf("[responder] failed to load context for session %s: %v", trigger.SessionID, err)
		contextMessages = nil
	}

	prompt := BuildPrompt(trigger.Body, trigger.Username, contextMessages)

	text, ok := s.generator.GenerateReply(ctx, prompt)
	if !ok {
		return false
	}

	reply := chat.Message{
		ID:        uuid.NewString(),
		Username:  AssistantName,
		Body:      text,
		Timestamp: time.Now().UnixMilli(),
		IsAI:      true,
		SessionID: trigger.SessionID,
	}

	if err := s.store.Append(ctx, reply.Stored()); err != nil {
		log.Printf("[responder] failed to persist automated message: %v", err)
	}

	// Pacing: make the reply feel typed rather than instantaneous. The
	// connection going away mid-wait still publishes; nobody may be
	// listening, which the router tolerates.
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}

	s.router.Publish(reply)
	return true
}
