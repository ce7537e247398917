package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAIProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return newOpenAICompatible("test-key", server.URL+"/v1", "gpt-4o-2024-08-06")
}

func verdictSchema() *Schema {
	return &Schema{
		Name: "test-verdict",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"isCorrect":   map[string]any{"type": "boolean"},
				"explanation": map[string]any{"type": "string"},
			},
			"required":             []string{"isCorrect", "explanation"},
			"additionalProperties": false,
		},
	}
}

func TestOpenAIProvider_GenerateWithSchema(t *testing.T) {
	var got openai.ChatCompletionRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "gpt-4o-2024-08-06",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": `{"isCorrect":false,"explanation":"Lyon is not the capital of France."}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	resp, err := p.Generate(context.Background(), Request{
		System:    "Check the answer.",
		Messages:  UserMessage("The student answered: \"Lyon\""),
		Schema:    verdictSchema(),
		MaxTokens: 200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 25 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.JSONSchema == nil || got.ResponseFormat.JSONSchema.Name != "test-verdict" {
		t.Fatalf("expected json_schema response format, got %+v", got.ResponseFormat)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected system + user messages, got %+v", got.Messages)
	}
}

func TestOpenAIProvider_GenerateRejectsSchemaMismatch(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-2024-08-06",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": `{"correct":"yes"}`},
				"finish_reason": "stop",
			}},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{Messages: UserMessage("x"), Schema: verdictSchema()})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %T (%v)", err, err)
	}
}

func TestOpenAIProvider_GenerateTruncated(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-2024-08-06",
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": `{"isCorrect":tr`},
				"finish_reason": "length",
			}},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{Messages: UserMessage("x"), Schema: verdictSchema()})
	var maxTok *ErrMaxTokensExceeded
	if !errors.As(err, &maxTok) {
		t.Fatalf("expected ErrMaxTokensExceeded, got %T (%v)", err, err)
	}
}

func TestOpenAIProvider_RateLimit(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Rate limit exceeded", "type": "rate_limit_error", "code": "rate_limit_exceeded"},
		})
	}

	p := newTestOpenAIProvider(t, handler)
	_, err := p.Generate(context.Background(), Request{Messages: UserMessage("x")})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T (%v)", err, err)
	}

	_, err = p.Stream(context.Background(), Request{Messages: UserMessage("x")})
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit from Stream, got: %T (%v)", err, err)
	}
}

func TestOpenAIProvider_Stream(t *testing.T) {
	var got openai.ChatCompletionRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{`{"sections":`, `[]}`} {
			b, _ := json.Marshal(map[string]any{
				"model":   "gpt-4o-2024-08-06",
				"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": piece}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
		b, _ := json.Marshal(map[string]any{
			"model":   "gpt-4o-2024-08-06",
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{}, "finish_reason": "length"}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		b, _ = json.Marshal(map[string]any{
			"model":   "gpt-4o-2024-08-06",
			"choices": []any{},
			"usage":   map[string]any{"prompt_tokens": 30, "completion_tokens": 6, "total_tokens": 36},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		fmt.Fprint(w, "data: [DONE]\n\n")
	}

	p := newTestOpenAIProvider(t, handler)
	ch, err := p.Stream(context.Background(), Request{Messages: UserMessage("learn"), MaxTokens: 360})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, final, err := ReadAll(context.Background(), ch)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if text != `{"sections":[]}` {
		t.Fatalf("unexpected text %q", text)
	}
	if final.StopReason != "max_tokens" {
		t.Fatalf("expected max_tokens stop reason, got %q", final.StopReason)
	}
	if final.Usage.TotalTokens != 36 {
		t.Fatalf("expected usage from trailing chunk, got %+v", final.Usage)
	}
	if !got.Stream || got.StreamOptions == nil || !got.StreamOptions.IncludeUsage {
		t.Fatalf("expected streaming request with usage, got stream=%v opts=%+v", got.Stream, got.StreamOptions)
	}
}

func TestOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "gpt-4o-2024-08-06" {
		t.Fatalf("expected friendly name to resolve, got %q", p.ModelID())
	}
}
