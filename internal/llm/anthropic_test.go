package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAnthropicProvider_CompleteJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("Expected anthropic-version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.System == "" {
			t.Error("Expected system prompt in request")
		}

		resp := anthropicResponse{
			ID:    "msg_123",
			Type:  "message",
			Role:  "assistant",
			Model: "claude-3-5-sonnet-20241022",
		}
		resp.Content = []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{
			{Type: "text", Text: "```json\n{\"summary\": \"ok\"}\n```"},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	config := Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}
	provider, err := NewAnthropicProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	raw, err := provider.CompleteJSON(context.Background(), "system prompt", "user content")
	if err != nil {
		t.Fatalf("CompleteJSON failed: %v", err)
	}

	// Fenced replies pass through; the caller's parser strips the fences
	var out struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal(extractJSON(raw), &out); err != nil {
		t.Fatalf("Failed to parse fenced reply: %v", err)
	}
	if out.Summary != "ok" {
		t.Errorf("Unexpected summary: %s", out.Summary)
	}
}

func TestAnthropicProvider_CompleteJSON_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`))
	}))
	defer server.Close()

	config := Config{
		APIKey:  "bad-key",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	}
	provider, err := NewAnthropicProvider(config)
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "authentication_error") {
		t.Errorf("Expected API error type in message, got %v", err)
	}
}

func TestAnthropicProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(Config{})
	if err == nil {
		t.Fatal("Expected error for missing API key, got nil")
	}
}
