package llm

import "testing"

func TestNewOpenRouterProvider(t *testing.T) {
	if _, err := NewOpenRouterProvider(OpenRouterConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}

	p, err := NewOpenRouterProvider(OpenRouterConfig{APIKey: "k", Model: "openai/gpt-4o-2024-08-06"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "openai/gpt-4o-2024-08-06" {
		t.Fatalf("OpenRouter ids must pass through untouched, got %q", p.ModelID())
	}

	var _ StreamProvider = p
}
