package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/zhouzirui/chat-relay/internal/config"
)

// GeminiClient calls the external generation service over its REST API.
// Every failure mode — transport error, non-success status, unexpected
// response shape, timeout — is logged and reported as "no reply"; the
// service never surfaces generation errors to chat participants.
type GeminiClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewGeminiClient creates a client with a bounded request timeout.
func NewGeminiClient(cfg config.GeminiConfig) *GeminiClient {
	return &GeminiClient{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

// GenerateReply sends the prompt and returns the first candidate's first
// text part. The second return is false whenever no usable reply came back.
func (c *GeminiClient) GenerateReply(ctx context.Context, prompt string) (string, bool) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[responder] failed to encode generation request: %v", err)
		return "", false
	}

	url := fmt.Sprintf("%s?key=%s", c.url, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[responder] failed to build generation request: %v", err)
		return "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[responder] generation request failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("[responder] generation request failed with status: %s", resp.Status)
		return "", false
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("[responder] failed to parse generation response: %v", err)
		return "", false
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		log.Printf("[responder] no valid response content from generation service")
		return "", false
	}

	return parsed.Candidates[0].Content.Parts[0].Text, true
}
