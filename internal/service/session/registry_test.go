package session_test

import (
	"sync"
	"testing"

	"github.com/zhouzirui/chat-relay/internal/service/session"
)

func TestAttachRecordsMapping(t *testing.T) {
	reg := session.NewRegistry()

	id := reg.Attach("a@x.com")
	if id == "" {
		t.Fatal("expected non-empty session id")
	}

	got, ok := reg.Lookup("a@x.com")
	if !ok {
		t.Fatal("expected identity to be attached")
	}
	if got != id {
		t.Fatalf("unexpected session: got %s want %s", got, id)
	}
}

func TestReattachRotatesSession(t *testing.T) {
	reg := session.NewRegistry()

	first := reg.Attach("a@x.com")
	second := reg.Attach("a@x.com")

	if first == second {
		t.Fatal("expected a fresh session on reconnect")
	}

	got, ok := reg.Lookup("a@x.com")
	if !ok || got != second {
		t.Fatalf("registry should point at the newest session: got %s want %s", got, second)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", reg.Len())
	}
}

func TestDetachIsIdempotent(t *testing.T) {
	reg := session.NewRegistry()

	reg.Attach("a@x.com")
	reg.Detach("a@x.com")
	reg.Detach("a@x.com")
	reg.Detach("never-attached")

	if _, ok := reg.Lookup("a@x.com"); ok {
		t.Fatal("expected identity to be gone after detach")
	}
	if reg.Len() != 0 {
		t.Fatalf("expected empty registry, got %d entries", reg.Len())
	}
}

func TestConcurrentAttachDetach(t *testing.T) {
	reg := session.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			identity := string(rune('a'+n%26)) + "@x.com"
			reg.Attach(identity)
			reg.Lookup(identity)
			reg.Detach(identity)
		}(i)
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Fatalf("expected empty registry after churn, got %d", reg.Len())
	}
}
