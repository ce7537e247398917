package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/store"
)

type fakeGrader struct {
	mu     sync.Mutex
	calls  []grading.Request
	called chan struct{}
	grade  func(ctx context.Context, req grading.Request) (*grading.Verdict, error)
}

func newFakeGrader(grade func(ctx context.Context, req grading.Request) (*grading.Verdict, error)) *fakeGrader {
	return &fakeGrader{called: make(chan struct{}, 16), grade: grade}
}

func (g *fakeGrader) Grade(ctx context.Context, req grading.Request) (*grading.Verdict, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	g.called <- struct{}{}
	return g.grade(ctx, req)
}

func (g *fakeGrader) Calls() []grading.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]grading.Request(nil), g.calls...)
}

// acceptExpected grades by exact match against the expected answer.
func acceptExpected(_ context.Context, req grading.Request) (*grading.Verdict, error) {
	if req.UserAnswer == req.ExpectedAnswer {
		return &grading.Verdict{IsCorrect: true}, nil
	}
	return &grading.Verdict{IsCorrect: false, Explanation: "The answer is " + req.ExpectedAnswer + "."}, nil
}

type eventLog struct {
	mu      sync.Mutex
	actions []string
}

func (e *eventLog) AppendLLMRequest(context.Context, store.LLMRequestEventData) error { return nil }

func (e *eventLog) AppendSessionEvent(_ context.Context, data store.SessionEventData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions = append(e.actions, data.Action)
	return nil
}

func (e *eventLog) Actions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.actions...)
}

func parisSections() []curriculum.Section {
	return []curriculum.Section{
		curriculum.NewParagraph("France", "Paris is the capital of France.", 3),
		curriculum.NewShortAnswer("What is the capital of France?", "Paris", 2),
		curriculum.NewMultipleChoice("Which river flows through Paris?", []string{"Seine", "Thames", "Danube"}, "Seine", 1),
		curriculum.NewEnd(),
	}
}

func curriculumText(t *testing.T, sections []curriculum.Section) string {
	t.Helper()
	data, err := json.Marshal(map[string][]curriculum.Section{"sections": sections})
	require.NoError(t, err)
	return string(data)
}

type fixture struct {
	ctrl   *Controller
	mock   *llm.MockProvider
	grader *fakeGrader
	events *eventLog
}

func newFixture(t *testing.T, total int, grade func(context.Context, grading.Request) (*grading.Verdict, error)) *fixture {
	t.Helper()
	mock := llm.NewMockProvider()
	grader := newFakeGrader(grade)
	events := &eventLog{}
	ctrl := NewController("s-1", Config{TotalSections: total, GradeTimeout: time.Second}, Deps{
		Curriculum: curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil),
		Grader:     grader,
		Events:     events,
	})
	return &fixture{ctrl: ctrl, mock: mock, grader: grader, events: events}
}

// start requests a curriculum streamed from text and waits for the stream
// to end.
func (f *fixture) start(t *testing.T, text string) {
	t.Helper()
	f.mock.AddTextStream(text, 9)
	require.NoError(t, f.ctrl.RequestCurriculum(context.Background(), "France"))
	h := f.ctrl.Handle()
	require.NotNil(t, h)
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("curriculum stream did not finish")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestController_ParisScenario(t *testing.T) {
	f := newFixture(t, 4, acceptExpected)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())

	f.start(t, curriculumText(t, parisSections()))
	require.Equal(t, PhasePresenting, f.ctrl.Phase())

	sec, ok := f.ctrl.CurrentSection()
	require.True(t, ok)
	assert.Equal(t, curriculum.KindParagraph, sec.Kind)

	res := f.ctrl.SubmitAnswer(context.Background(), "ignored text")
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 1, res.Position)
	assert.Empty(t, f.grader.Calls(), "paragraphs are not graded")

	f.ctrl.SetInput("Lyon")
	res = f.ctrl.SubmitAnswer(context.Background(), "Lyon")
	assert.Equal(t, OutcomeIncorrect, res.Outcome)
	assert.Equal(t, 1, res.Position)
	require.NotNil(t, res.Verdict)
	assert.Equal(t, "The answer is Paris.", res.Verdict.Explanation)
	assert.Equal(t, "Lyon", f.ctrl.State().Input, "input survives a wrong answer")
	view := f.ctrl.View()
	require.NotNil(t, view.Feedback)
	assert.Equal(t, "The answer is Paris.", view.Feedback.Explanation)

	res = f.ctrl.SubmitAnswer(context.Background(), "Paris")
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 2, res.Position)
	assert.Empty(t, f.ctrl.State().Input)
	assert.Nil(t, f.ctrl.View().Feedback)

	assert.Equal(t, OutcomeNoop, f.ctrl.Skip().Outcome, "questions cannot be skipped")

	res = f.ctrl.SubmitAnswer(context.Background(), "Seine")
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	calls := f.grader.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, grading.Request{
		Question:       "Which river flows through Paris?",
		UserAnswer:     "Seine",
		ExpectedAnswer: "Seine",
		Choices:        []string{"Seine", "Thames", "Danube"},
	}, calls[2])

	sec, ok = f.ctrl.CurrentSection()
	require.True(t, ok)
	assert.Equal(t, curriculum.KindEnd, sec.Kind)
	res = f.ctrl.Skip()
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 4, res.Position)

	assert.Equal(t, PhaseFinished, f.ctrl.Phase())
	assert.Equal(t, OutcomeNoop, f.ctrl.SubmitAnswer(context.Background(), "more").Outcome)
	assert.Equal(t, OutcomeNoop, f.ctrl.Skip().Outcome)
	assert.Equal(t, 4, f.ctrl.State().Position)
	_, ok = f.ctrl.CurrentSection()
	assert.False(t, ok)

	waitFor(t, "stream end event", func() bool {
		for _, a := range f.events.Actions() {
			if a == store.SessionStreamEnd {
				return true
			}
		}
		return false
	})
	actions := f.events.Actions()
	assert.Equal(t, store.SessionStarted, actions[0])
	assert.Contains(t, actions, store.SessionFinished)
}

func TestController_ProgressRatios(t *testing.T) {
	f := newFixture(t, 4, acceptExpected)
	f.start(t, curriculumText(t, parisSections()))
	f.ctrl.Skip()

	p := f.ctrl.Progress()
	assert.Equal(t, Progress{Resolved: 4, Position: 1, Total: 4}, p)
	assert.InDelta(t, 1.0, p.StreamRatio(), 1e-9)
	assert.InDelta(t, 0.25, p.PositionRatio(), 1e-9)
	assert.Zero(t, Progress{}.StreamRatio())
}

func TestController_DuplicateSubmissionDoesNotDoubleAdvance(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, 4, func(ctx context.Context, req grading.Request) (*grading.Verdict, error) {
		<-release
		return &grading.Verdict{IsCorrect: true}, nil
	})
	f.start(t, curriculumText(t, parisSections()))
	f.ctrl.Skip()

	first := make(chan Result, 1)
	go func() { first <- f.ctrl.SubmitAnswer(context.Background(), "Paris") }()
	<-f.grader.called

	assert.True(t, f.ctrl.View().Grading)
	dup := f.ctrl.SubmitAnswer(context.Background(), "Paris")
	assert.Equal(t, OutcomeIgnored, dup.Outcome)

	close(release)
	res := <-first
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Equal(t, 2, f.ctrl.State().Position)
	assert.Len(t, f.grader.Calls(), 1)
}

func TestController_GradingTimeoutIsUngraded(t *testing.T) {
	f := newFixture(t, 4, func(ctx context.Context, req grading.Request) (*grading.Verdict, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	f.ctrl.cfg.GradeTimeout = 20 * time.Millisecond
	f.start(t, curriculumText(t, parisSections()))
	f.ctrl.Skip()

	f.ctrl.SetInput("Par")
	res := f.ctrl.SubmitAnswer(context.Background(), "Par")
	assert.Equal(t, OutcomeUngraded, res.Outcome)
	assert.Equal(t, UngradedMessage, res.Message)
	assert.Equal(t, 1, f.ctrl.State().Position)
	assert.Equal(t, "Par", f.ctrl.State().Input)
	assert.False(t, f.ctrl.View().Grading)
}

func TestController_SubmittedAnswerBecomesInput(t *testing.T) {
	f := newFixture(t, 4, acceptExpected)
	f.start(t, curriculumText(t, parisSections()))
	f.ctrl.Skip()

	res := f.ctrl.SubmitAnswer(context.Background(), "Lyon")
	assert.Equal(t, OutcomeIncorrect, res.Outcome)
	assert.Equal(t, "Lyon", f.ctrl.State().Input)

	res = f.ctrl.SubmitAnswer(context.Background(), f.ctrl.State().Input)
	assert.Equal(t, OutcomeIncorrect, res.Outcome)
	calls := f.grader.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "Lyon", calls[1].UserAnswer)

	res = f.ctrl.SubmitAnswer(context.Background(), "Paris")
	assert.Equal(t, OutcomeAdvanced, res.Outcome)
	assert.Empty(t, f.ctrl.State().Input, "input is cleared on advance")
}

func TestController_GradingErrorIsUngraded(t *testing.T) {
	f := newFixture(t, 4, func(context.Context, grading.Request) (*grading.Verdict, error) {
		return nil, errors.New("boom")
	})
	f.start(t, curriculumText(t, parisSections()))
	f.ctrl.Skip()

	res := f.ctrl.SubmitAnswer(context.Background(), "Paris")
	assert.Equal(t, OutcomeUngraded, res.Outcome)
	assert.Equal(t, "Paris", f.ctrl.State().Input, "input kept for resubmission")
	view := f.ctrl.View()
	require.NotNil(t, view.Feedback)
	assert.Equal(t, UngradedMessage, view.Feedback.Message)
}

func TestController_ResetDuringGradingDiscardsReply(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, 4, func(ctx context.Context, req grading.Request) (*grading.Verdict, error) {
		<-release
		return &grading.Verdict{IsCorrect: true}, nil
	})
	f.start(t, curriculumText(t, parisSections()))
	f.ctrl.Skip()

	out := make(chan Result, 1)
	go func() { out <- f.ctrl.SubmitAnswer(context.Background(), "Paris") }()
	<-f.grader.called

	f.ctrl.Reset()
	close(release)
	res := <-out
	assert.Equal(t, OutcomeStale, res.Outcome)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	assert.Equal(t, 0, f.ctrl.State().Position)
}

func TestController_StreamingPhaseWaitsForSections(t *testing.T) {
	f := newFixture(t, 4, acceptExpected)
	source := make(chan string)
	f.mock.AddStream(llm.MockStream{Source: source})
	require.NoError(t, f.ctrl.RequestCurriculum(context.Background(), "France"))

	assert.Equal(t, PhaseStreaming, f.ctrl.Phase())
	_, ok := f.ctrl.CurrentSection()
	assert.False(t, ok)
	assert.Equal(t, OutcomeNoop, f.ctrl.SubmitAnswer(context.Background(), "x").Outcome)
	assert.Equal(t, OutcomeNoop, f.ctrl.Skip().Outcome)

	text := curriculumText(t, parisSections())
	source <- text[:len(`{"sections":[`)+len(`{"paragraph_section":{"paragraph_title":"France","paragraph_content":"Paris is the capital of France.","n_sections_remaining":3}}`)]
	waitFor(t, "first section", func() bool { return f.ctrl.Phase() == PhasePresenting })

	assert.Equal(t, OutcomeAdvanced, f.ctrl.Skip().Outcome)
	assert.Equal(t, PhaseStreaming, f.ctrl.Phase())
	assert.Equal(t, Progress{Resolved: 1, Position: 1, Total: 4}, f.ctrl.Progress())

	close(source)
	waitFor(t, "degraded finish", func() bool { return f.ctrl.Phase() == PhaseFinished })
	view := f.ctrl.View()
	require.NotNil(t, view.Stream)
	assert.True(t, view.Stream.Degraded)
	assert.Equal(t, 1, view.State.Position)
}

func TestController_DegradedCurriculumCanBeFinished(t *testing.T) {
	f := newFixture(t, 4, acceptExpected)
	f.start(t, curriculumText(t, parisSections()[:2]))

	f.ctrl.Skip()
	assert.Equal(t, OutcomeAdvanced, f.ctrl.SubmitAnswer(context.Background(), "Paris").Outcome)
	assert.Equal(t, PhaseFinished, f.ctrl.Phase())
	assert.Equal(t, 2, f.ctrl.State().Position)
	assert.Equal(t, OutcomeNoop, f.ctrl.Skip().Outcome)
}

func TestController_RequestCurriculumOnlyWhenIdle(t *testing.T) {
	f := newFixture(t, 4, acceptExpected)
	f.start(t, curriculumText(t, parisSections()))

	require.NoError(t, f.ctrl.RequestCurriculum(context.Background(), "Germany"))
	assert.Equal(t, 1, f.mock.CallCount())
	assert.Equal(t, "France", f.ctrl.View().Topic)

	f.ctrl.Reset()
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
	assert.Nil(t, f.ctrl.Handle())

	f.start(t, curriculumText(t, parisSections()))
	assert.Equal(t, 2, f.mock.CallCount())
	assert.Contains(t, f.events.Actions(), store.SessionReset)
}

func TestController_RequestCurriculumRejectsEmptyTopic(t *testing.T) {
	f := newFixture(t, 4, acceptExpected)
	err := f.ctrl.RequestCurriculum(context.Background(), " ")
	assert.ErrorIs(t, err, curriculum.ErrEmptyTopic)
	assert.Equal(t, PhaseIdle, f.ctrl.Phase())
}

func TestController_PositionNeverExceedsTotal(t *testing.T) {
	f := newFixture(t, 2, acceptExpected)
	f.start(t, curriculumText(t, []curriculum.Section{
		curriculum.NewParagraph("t", "c", 1),
		curriculum.NewEnd(),
	}))

	for range 5 {
		f.ctrl.SubmitAnswer(context.Background(), "")
		f.ctrl.Skip()
	}
	assert.Equal(t, 2, f.ctrl.State().Position)
	assert.Equal(t, PhaseFinished, f.ctrl.Phase())
}
