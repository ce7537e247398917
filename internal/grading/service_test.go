package grading

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abhisek/lessonstream/internal/llm"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	failGet bool
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, errors.New("connection refused")
	}
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, v any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.entries[key] = data
	c.ttls[key] = ttl
	return nil
}

func verdictJSON(correct bool, explanation string) json.RawMessage {
	data, _ := json.Marshal(Verdict{IsCorrect: correct, Explanation: explanation})
	return data
}

func TestService_GradesShortAnswer(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: verdictJSON(true, "")})
	svc := NewService(mock, DefaultConfig(), nil)

	v, err := svc.Grade(t.Context(), Request{
		Question:       "What is the capital of France?",
		UserAnswer:     "Paris",
		ExpectedAnswer: "Paris",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsCorrect {
		t.Error("expected answer to be correct")
	}

	req := mock.LastCall()
	if req.Schema != VerdictSchema {
		t.Error("expected verdict schema on request")
	}
	if req.MaxTokens != 200 {
		t.Errorf("expected 200 max tokens, got %d", req.MaxTokens)
	}
	if !strings.Contains(req.System, "partially correct") {
		t.Errorf("system prompt missing partial credit rule: %q", req.System)
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		`The question was: "What is the capital of France?"`,
		`The student answered: "Paris"`,
		`The correct answer is: "Paris"`,
		"Is the student's answer correct? If not, explain why.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "The choices were") {
		t.Error("short answer prompt should not list choices")
	}
}

func TestService_IncorrectAnswerCarriesExplanation(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: verdictJSON(false, "  Lyon is a different city.  ")})
	svc := NewService(mock, DefaultConfig(), nil)

	v, err := svc.Grade(t.Context(), Request{Question: "Capital of France?", UserAnswer: "Lyon", ExpectedAnswer: "Paris"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.IsCorrect {
		t.Error("expected answer to be incorrect")
	}
	if v.Explanation != "Lyon is a different city." {
		t.Errorf("unexpected explanation %q", v.Explanation)
	}
}

func TestService_MultipleChoicePromptListsChoices(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: verdictJSON(true, "")})
	svc := NewService(mock, DefaultConfig(), nil)

	_, err := svc.Grade(t.Context(), Request{
		Question:       "Which river flows through Paris?",
		UserAnswer:     "the seine",
		ExpectedAnswer: "Seine",
		Choices:        []string{"Seine", "Thames", "Danube"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := mock.LastCall().Messages[0].Content
	if !strings.Contains(prompt, "The choices were: 1. Seine, 2. Thames, 3. Danube") {
		t.Errorf("prompt missing numbered choices:\n%s", prompt)
	}
}

func TestService_ProviderErrorIsWrapped(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{RetryAfter: time.Second}})
	svc := NewService(mock, DefaultConfig(), nil)

	_, err := svc.Grade(t.Context(), Request{Question: "q", UserAnswer: "a", ExpectedAnswer: "a"})
	var rl *llm.ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
}

func TestService_RejectsEmptyQuestion(t *testing.T) {
	mock := llm.NewMockProvider()
	svc := NewService(mock, DefaultConfig(), nil)

	if _, err := svc.Grade(t.Context(), Request{Question: "  ", UserAnswer: "a"}); !errors.Is(err, ErrNoQuestion) {
		t.Fatalf("expected ErrNoQuestion, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Errorf("expected no LLM calls, got %d", mock.CallCount())
	}
}

func TestService_CachesVerdicts(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: verdictJSON(true, "")})
	cache := newMemCache()
	svc := NewService(mock, DefaultConfig(), nil).WithCache(cache)

	req := Request{Question: "Capital of France?", UserAnswer: "Paris", ExpectedAnswer: "Paris"}
	if _, err := svc.Grade(t.Context(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req.UserAnswer = "  paris "
	v, err := svc.Grade(t.Context(), req)
	if err != nil {
		t.Fatalf("unexpected error on cached call: %v", err)
	}
	if !v.IsCorrect {
		t.Error("expected cached verdict to be correct")
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 LLM call, got %d", mock.CallCount())
	}
	if ttl := cache.ttls[CacheKey(req)]; ttl != 24*time.Hour {
		t.Errorf("expected 24h ttl, got %s", ttl)
	}
}

func TestService_CacheFailureFallsBackToProvider(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: verdictJSON(false, "no")})
	cache := newMemCache()
	cache.failGet = true
	svc := NewService(mock, DefaultConfig(), nil).WithCache(cache)

	v, err := svc.Grade(t.Context(), Request{Question: "q", UserAnswer: "a", ExpectedAnswer: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.IsCorrect {
		t.Error("expected incorrect verdict")
	}
	if mock.CallCount() != 1 {
		t.Errorf("expected 1 LLM call, got %d", mock.CallCount())
	}
}

func TestCacheKey_DistinguishesQuestions(t *testing.T) {
	a := CacheKey(Request{Question: "q1", UserAnswer: "a", ExpectedAnswer: "a"})
	b := CacheKey(Request{Question: "q2", UserAnswer: "a", ExpectedAnswer: "a"})
	c := CacheKey(Request{Question: "q1", UserAnswer: "a", ExpectedAnswer: "a", Choices: []string{"a", "b"}})
	if a == b || a == c {
		t.Error("expected distinct cache keys")
	}
	if !strings.HasPrefix(a, "verdict:") {
		t.Errorf("unexpected key %q", a)
	}
}
