package llm

import (
	"errors"
	"net/http"
	"testing"

	"google.golang.org/genai"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.5-flash"},
		{"gemini-pro", "gemini-2.5-pro"},
		{"gemini-2.0-flash", "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, geminiModels); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema_Union(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sections": map[string]any{
				"type": "array",
				"items": map[string]any{
					"anyOf": []any{
						map[string]any{
							"type":       "object",
							"properties": map[string]any{"end_section": map[string]any{"type": "object"}},
							"required":   []string{"end_section"},
						},
						map[string]any{
							"type": "object",
							"properties": map[string]any{
								"paragraph_section": map[string]any{
									"type": "object",
									"properties": map[string]any{
										"paragraph_title":      map[string]any{"type": "string"},
										"n_sections_remaining": map[string]any{"type": "integer"},
									},
									"required": []any{"paragraph_title", "n_sections_remaining"},
								},
							},
							"required": []string{"paragraph_section"},
						},
					},
				},
			},
		},
		"required": []string{"sections"},
	}

	schema := buildGeminiSchema(def)
	if schema.Type != genai.TypeObject {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	items := schema.Properties["sections"].Items
	if items == nil || len(items.AnyOf) != 2 {
		t.Fatalf("expected two union variants, got %+v", items)
	}
	para := items.AnyOf[1].Properties["paragraph_section"]
	if para.Properties["n_sections_remaining"].Type != genai.TypeInteger {
		t.Fatalf("expected INTEGER remaining count")
	}
	if len(para.PropertyOrdering) != 2 || para.PropertyOrdering[0] != "paragraph_title" {
		t.Fatalf("expected property ordering from required, got %v", para.PropertyOrdering)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "sections" {
		t.Fatalf("expected []string required to be honoured, got %v", schema.Required)
	}
}

func TestMapGeminiError(t *testing.T) {
	err := mapGeminiError(genai.APIError{Code: http.StatusTooManyRequests})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %T", err)
	}

	err = mapGeminiError(genai.APIError{Code: http.StatusInternalServerError})
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got %T", err)
	}
}
