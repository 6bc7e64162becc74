package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stellarlinkco/prompt-registry/internal/claude"
)

func TestToClaudeRequest(t *testing.T) {
	t.Parallel()

	if _, err := toClaudeRequest(nil); err == nil {
		t.Fatalf("toClaudeRequest(nil): expected error")
	}

	got, err := toClaudeRequest(&Request{
		Messages: []Message{
			{Role: " ", Content: "a"},
			{Role: "assistant", Content: "b"},
		},
		System:      "sys",
		MaxTokens:   7,
		Temperature: 0.5,
	})
	if err != nil {
		t.Fatalf("toClaudeRequest: %v", err)
	}
	if got == nil {
		t.Fatalf("toClaudeRequest: nil request")
	}
	if len(got.Messages) != 2 {
		t.Fatalf("len(Messages): got %d want %d", len(got.Messages), 2)
	}
	if got.Messages[0].Role != "user" || got.Messages[0].Content != "a" {
		t.Fatalf("Messages[0]: %#v", got.Messages[0])
	}
	if got.Messages[1].Role != "assistant" || got.Messages[1].Content != "b" {
		t.Fatalf("Messages[1]: %#v", got.Messages[1])
	}
	if got.System != "sys" || got.MaxTokens != 7 || got.Temperature != 0.5 {
		t.Fatalf("fields: %#v", got)
	}
}

func TestFromClaudeResponse(t *testing.T) {
	t.Parallel()

	if got := fromClaudeResponse(nil); got != nil {
		t.Fatalf("fromClaudeResponse(nil): got %#v", got)
	}

	out := fromClaudeResponse(&claude.Response{
		StopReason: "end_turn",
		Usage:      claude.Usage{InputTokens: 1, OutputTokens: 2},
		Content: []claude.ContentBlock{
			{Type: "text", Text: "a"},
			{Type: "thinking"},
			{Type: "text", Text: "b"},
		},
	})
	if out == nil {
		t.Fatalf("fromClaudeResponse: nil")
	}
	if out.StopReason != "end_turn" {
		t.Fatalf("StopReason: got %q", out.StopReason)
	}
	if out.Usage.InputTokens != 1 || out.Usage.OutputTokens != 2 {
		t.Fatalf("Usage: %#v", out.Usage)
	}
	if len(out.Content) != 2 {
		t.Fatalf("len(Content): got %d want %d", len(out.Content), 2)
	}
	if Text(out) != "ab" {
		t.Fatalf("Text: got %q want %q", Text(out), "ab")
	}
}

func TestClaudeProvider_Complete(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			http.NotFound(w, r)
			return
		}
		_ = r.Body.Close()

		w.Header().Set("content-type", "application/json")
		_ = json.NewEncoder(w).Encode(claudeMessageResponse(
			"msg_1",
			"test-model",
			"end_turn",
			[]map[string]any{
				claudeTextBlock("a"),
				claudeTextBlock("b"),
			},
			1,
			2,
		))
	}))
	t.Cleanup(srv.Close)

	p := NewClaudeProvider("k", srv.URL+"/v1", "m")
	resp, err := p.Complete(context.Background(), &Request{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 7,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp == nil {
		t.Fatalf("Complete: nil response")
	}
	if Text(resp) != "ab" {
		t.Fatalf("Text(resp): got %q want %q", Text(resp), "ab")
	}
	if resp.Usage.InputTokens != 1 || resp.Usage.OutputTokens != 2 {
		t.Fatalf("Usage: %#v", resp.Usage)
	}

	var pnil *ClaudeProvider
	if _, err := pnil.Complete(context.Background(), &Request{}); err == nil {
		t.Fatalf("Complete(nil provider): expected error")
	}
}

func TestClaudeProvider_ErrorBranches(t *testing.T) {
	t.Parallel()

	p := NewClaudeProvider("k", " ", " ")
	if _, err := p.Complete(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "nil request") {
		t.Fatalf("Complete(nil req): %v", err)
	}
}

func claudeMessageResponse(id, model, stopReason string, content []map[string]any, inTok, outTok int) map[string]any {
	return map[string]any{
		"id":            id,
		"type":          "message",
		"role":          "assistant",
		"content":       content,
		"model":         model,
		"stop_reason":   stopReason,
		"stop_sequence": "",
		"usage": map[string]any{
			"input_tokens":                inTok,
			"output_tokens":               outTok,
			"cache_creation":              map[string]any{"ephemeral_1h_input_tokens": 0, "ephemeral_5m_input_tokens": 0},
			"cache_creation_input_tokens": 0,
			"cache_read_input_tokens":     0,
			"server_tool_use":             map[string]any{"web_search_requests": 0},
			"service_tier":                "standard",
		},
	}
}

func claudeTextBlock(text string) map[string]any {
	return map[string]any{
		"type": "text",
		"text": text,
	}
}
