package responder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/chat-relay/internal/config"
)

func geminiClientFor(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGeminiClient(config.GeminiConfig{
		URL:     srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestGenerateReplySuccess(t *testing.T) {
	var gotKey string
	var gotBody geminiRequest
	client := geminiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request err: %v", err)
		}
		json.NewEncoder(w).Encode(geminiResponse{
			Candidates: []geminiCandidate{{
				Content: geminiContent{Parts: []geminiPart{{Text: "hi there!"}}},
			}},
		})
	})

	text, ok := client.GenerateReply(context.Background(), "a prompt")
	if !ok {
		t.Fatal("expected a reply")
	}
	if text != "hi there!" {
		t.Fatalf("unexpected reply: %q", text)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected api key in query, got %q", gotKey)
	}
	if len(gotBody.Contents) != 1 || len(gotBody.Contents[0].Parts) != 1 || gotBody.Contents[0].Parts[0].Text != "a prompt" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestGenerateReplyNonSuccessStatus(t *testing.T) {
	client := geminiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	if _, ok := client.GenerateReply(context.Background(), "prompt"); ok {
		t.Fatal("expected no reply on non-success status")
	}
}

func TestGenerateReplyEmptyCandidates(t *testing.T) {
	client := geminiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse{})
	})

	if _, ok := client.GenerateReply(context.Background(), "prompt"); ok {
		t.Fatal("expected no reply when candidates are missing")
	}
}

func TestGenerateReplyMalformedResponse(t *testing.T) {
	client := geminiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	if _, ok := client.GenerateReply(context.Background(), "prompt"); ok {
		t.Fatal("expected no reply on malformed response")
	}
}

func TestGenerateReplyTimeout(t *testing.T) {
	client := geminiClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	client.httpClient.Timeout = 20 * time.Millisecond

	if _, ok := client.GenerateReply(context.Background(), "prompt"); ok {
		t.Fatal("expected timeout to be treated as no reply")
	}
}
