package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acheng/runbox/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendMessage(t *testing.T) {
	var gotReq apiRequest
	var gotVersion, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("Anthropic-Version")
		gotKey = r.Header.Get("X-API-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(apiResponse{
			Content:    []apiContentBlock{{Type: "text", Text: `{"type":"git","commands":["git status"]}`}},
			StopReason: "end_turn",
			Usage:      apiUsage{InputTokens: 10, OutputTokens: 20},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", "test-model", testLogger(), WithBaseURL(srv.URL))
	resp, err := c.SendMessage(context.Background(), &llm.Request{
		SystemPrompt: "translate",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "show git status"}},
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if resp.Content != `{"type":"git","commands":["git status"]}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 20 {
		t.Errorf("usage = %+v", resp.Usage)
	}

	if gotKey != "test-key" {
		t.Errorf("X-API-Key = %q", gotKey)
	}
	if gotVersion != apiVersion {
		t.Errorf("Anthropic-Version = %q", gotVersion)
	}
	if gotReq.Model != "test-model" || gotReq.System != "translate" || gotReq.MaxTokens != 256 {
		t.Errorf("request = %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestSendMessage_MultipleTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{
			Content: []apiContentBlock{
				{Type: "text", Text: "part one "},
				{Type: "thinking", Text: "ignored"},
				{Type: "text", Text: "part two"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("k", "m", testLogger(), WithBaseURL(srv.URL))
	resp, err := c.SendMessage(context.Background(), &llm.Request{})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if resp.Content != "part one part two" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"type": "authentication_error"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-key", "m", testLogger(), WithBaseURL(srv.URL))
	if _, err := c.SendMessage(context.Background(), &llm.Request{}); err == nil {
		t.Fatal("expected an error for a 401 response")
	}
}
