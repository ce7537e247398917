package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"isCorrect":true,"explanation":""}`, false},
		{"missing required", `{"isCorrect":true}`, true},
		{"wrong type", `{"isCorrect":"yes","explanation":""}`, true},
		{"extra field", `{"isCorrect":true,"explanation":"","score":1}`, true},
		{"not json", `isCorrect: true`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateResponse(verdictSchema(), json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("validateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var inv *ErrInvalidResponse
				if !errors.As(err, &inv) {
					t.Fatalf("expected ErrInvalidResponse, got %T", err)
				}
			}
		})
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`anything`)); err != nil {
		t.Fatalf("expected nil error without schema, got %v", err)
	}
}

func TestCompileSchema_Cached(t *testing.T) {
	s := verdictSchema()
	a, err := CompileSchema(s)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := CompileSchema(s)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if a != b {
		t.Fatal("expected cached schema instance")
	}
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(&Schema{
		Name:       "broken-schema",
		Definition: map[string]any{"type": "no-such-type"},
	})
	if err == nil {
		t.Fatal("expected compile error")
	}
}
