package responder_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zhouzirui/chat-relay/internal/model/chat"
	"github.com/zhouzirui/chat-relay/internal/service/broadcast"
	"github.com/zhouzirui/chat-relay/internal/service/responder"
	"github.com/zhouzirui/chat-relay/internal/store"
)

type stubGenerator struct {
	reply   string
	ok      bool
	prompts []string
}

func (g *stubGenerator) GenerateReply(_ context.Context, prompt string) (string, bool) {
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.ok
}

func newServiceUnderTest(t *testing.T, gen responder.Generator) (*responder.Service, *store.MessageStore, *broadcast.Router) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite err: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	messages := store.New(db)
	if err := messages.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate err: %v", err)
	}

	router := broadcast.NewRouter(10)
	svc := responder.NewService(messages, router, gen, 10, time.Millisecond)
	return svc, messages, router
}

func TestMaybeReplyPublishesAutomatedMessage(t *testing.T) {
	gen := &stubGenerator{reply: "happy to help!", ok: true}
	svc, messages, router := newServiceUnderTest(t, gen)

	sub := router.Subscribe()
	defer sub.Close()

	trigger := chat.Message{
		ID:        "m1",
		Username:  "alice",
		Body:      "hello?",
		Timestamp: time.Now().UnixMilli(),
		SessionID: "s1",
	}

	if !svc.MaybeReply(context.Background(), trigger) {
		t.Fatal("expected an automated reply")
	}

	select {
	case got := <-sub.C():
		if !got.IsAI {
			t.Fatal("automated message must carry is_ai=true")
		}
		if got.Username != responder.AssistantName {
			t.Fatalf("unexpected author: %q", got.Username)
		}
		if got.SessionID != "s1" {
			t.Fatalf("reply must stay in the triggering session, got %q", got.SessionID)
		}
		if got.Body != "happy to help!" {
			t.Fatalf("unexpected body: %q", got.Body)
		}
		if got.ID == "" || got.ID == trigger.ID {
			t.Fatalf("reply needs a fresh id, got %q", got.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for automated reply")
	}

	stored, err := messages.RecentBySession(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("RecentBySession err: %v", err)
	}
	if len(stored) != 1 || !stored[0].IsAI {
		t.Fatalf("expected the automated message persisted, got %+v", stored)
	}
}

func TestMaybeReplySkipsNonTriggeringMessages(t *testing.T) {
	gen := &stubGenerator{reply: "unused", ok: true}
	svc, _, _ := newServiceUnderTest(t, gen)

	msg := chat.Message{Username: "bob", Body: "no trigger words at all.", SessionID: "s1"}
	if svc.MaybeReply(context.Background(), msg) {
		t.Fatal("expected no reply for a non-triggering message")
	}
	if len(gen.prompts) != 0 {
		t.Fatal("generator must not be called when the policy does not fire")
	}
}

func TestMaybeReplyGenerationFailureIsSilent(t *testing.T) {
	gen := &stubGenerator{ok: false}
	svc, messages, router := newServiceUnderTest(t, gen)

	sub := router.Subscribe()
	defer sub.Close()

	msg := chat.Message{Username: "bob", Body: "hello?", SessionID: "s1"}
	if svc.MaybeReply(context.Background(), msg) {
		t.Fatal("expected no reply when generation fails")
	}

	select {
	case got := <-sub.C():
		t.Fatalf("nothing should be published on failure, got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	stored, err := messages.RecentBySession(context.Background(), "s1", 10)
	if err != nil {
		t.Fatalf("RecentBySession err: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("nothing should be persisted on failure, got %+v", stored)
	}
}

func TestMaybeReplyFeedsContextIntoPrompt(t *testing.T) {
	gen := &stubGenerator{reply: "ok", ok: true}
	svc, messages, _ := newServiceUnderTest(t, gen)
	ctx := context.Background()

	earlier := chat.Message{
		ID:        "m0",
		Username:  "bob",
		Body:      "we were talking about go",
		Timestamp: time.Now().Add(-time.Minute).UnixMilli(),
		SessionID: "s1",
	}
	if err := messages.Append(ctx, earlier.Stored()); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	trigger := chat.Message{ID: "m1", Username: "alice", Body: "really?", SessionID: "s1"}
	if !svc.MaybeReply(ctx, trigger) {
		t.Fatal("expected a reply")
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("expected one generation call, got %d", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "bob: we were talking about go") {
		t.Fatalf("prompt missing session context: %q", prompt)
	}
	if !strings.Contains(prompt, "Current message from alice: really?") {
		t.Fatalf("prompt missing trigger message: %q", prompt)
	}
}
