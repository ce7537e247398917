package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/abhisek/lessonstream/internal/store"
)

type recordingRepo struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
	done   chan struct{}
}

func newRecordingRepo() *recordingRepo {
	return &recordingRepo{done: make(chan struct{}, 8)}
}

func (r *recordingRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	r.events = append(r.events, data)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingRepo) AppendSessionEvent(context.Context, store.SessionEventData) error {
	return nil
}

func (r *recordingRepo) last() store.LLMRequestEventData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestLogging_RecordsGenerate(t *testing.T) {
	repo := newRecordingRepo()
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(`{"isCorrect":true,"explanation":""}`),
		Usage:   Usage{InputTokens: 7, OutputTokens: 3},
	})
	p := WithLogging(mock, "mock", repo, nil)

	ctx := WithSession(WithPurpose(context.Background(), PurposeGrading), "sess-1")
	if _, err := p.Generate(ctx, Request{System: "grade", Messages: UserMessage("Paris")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ev := repo.last()
	if !ev.Success || ev.Purpose != PurposeGrading || ev.SessionID != "sess-1" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.InputTokens != 7 || ev.Provider != "mock" {
		t.Fatalf("unexpected usage/provider %+v", ev)
	}
	if !strings.Contains(ev.RequestBody, "[system]\ngrade") || !strings.Contains(ev.RequestBody, "Paris") {
		t.Fatalf("request body not captured: %q", ev.RequestBody)
	}
}

func TestLogging_RecordsGenerateFailure(t *testing.T) {
	repo := newRecordingRepo()
	mock := NewMockProvider(MockResponse{Err: errors.New("boom")})
	p := WithLogging(mock, "mock", repo, nil)

	if _, err := p.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error")
	}
	if ev := repo.last(); ev.Success || ev.ErrorMessage != "boom" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLogging_RecordsStreamAtEnd(t *testing.T) {
	repo := newRecordingRepo()
	mock := NewMockProvider()
	mock.AddTextStream(`{"sections":[]}`, 3)
	p := WithLogging(mock, "mock", repo, nil)

	ch, err := p.Stream(WithPurpose(context.Background(), PurposeCurriculum), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := ReadAll(context.Background(), ch); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	<-repo.done

	ev := repo.last()
	if !ev.Success || ev.ResponseBody != `{"sections":[]}` || ev.Purpose != PurposeCurriculum {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLogging_RecordsStreamFailure(t *testing.T) {
	repo := newRecordingRepo()
	mock := NewMockProvider()
	mock.AddStream(MockStream{Chunks: []string{"{"}, Err: errors.New("reset")})
	p := WithLogging(mock, "mock", repo, nil)

	ch, err := p.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ReadAll(context.Background(), ch)
	<-repo.done

	if ev := repo.last(); ev.Success || ev.ErrorMessage != "reset" || ev.ResponseBody != "{" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestLogging_NilRepo(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	p := WithLogging(mock, "mock", nil, nil)
	if _, err := p.Generate(context.Background(), Request{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
