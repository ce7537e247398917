// Package session drives a learner through a streamed curriculum: it tracks
// the position, grades answers and advances only on confirmed progress.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/logger"
	"github.com/abhisek/lessonstream/internal/store"
)

// Grader checks an answer. *grading.Service implements it.
type Grader interface {
	Grade(ctx context.Context, req grading.Request) (*grading.Verdict, error)
}

// Starter starts a curriculum stream. *curriculum.Decoder implements it.
type Starter interface {
	Start(ctx context.Context, topic string, total int) (*curriculum.Handle, error)
}

// Config holds session settings.
type Config struct {
	TotalSections int           `yaml:"total_sections"`
	GradeTimeout  time.Duration `yaml:"grade_timeout"`
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		TotalSections: curriculum.DefaultSections,
		GradeTimeout:  30 * time.Second,
	}
}

// Deps are the collaborators of a Controller. Events and Log may be nil.
type Deps struct {
	Curriculum Starter
	Grader     Grader
	Events     store.EventRepo
	Log        *logger.Logger
}

// Controller owns one learner session. It is safe for concurrent use; the
// lock is never held while a grading call runs.
type Controller struct {
	id   string
	cfg  Config
	deps Deps
	log  *logger.Logger

	mu       sync.Mutex
	topic    string
	handle   *curriculum.Handle
	state    State
	grading  bool
	feedback *Feedback
	finished bool

	// epoch changes on Reset so that late grading replies and stream
	// watchers from an earlier curriculum are dropped.
	epoch int
}

// NewController creates an idle session.
func NewController(id string, cfg Config, deps Deps) *Controller {
	if cfg.TotalSections <= 0 {
		cfg.TotalSections = curriculum.DefaultSections
	}
	if cfg.GradeTimeout <= 0 {
		cfg.GradeTimeout = DefaultConfig().GradeTimeout
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		id:   id,
		cfg:  cfg,
		deps: deps,
		log:  log.Named("session").With("session", id),
	}
}

func (c *Controller) ID() string { return c.id }

// Total returns the number of sections requested per curriculum.
func (c *Controller) Total() int { return c.cfg.TotalSections }

// RequestCurriculum starts streaming a curriculum about topic. It returns
// as soon as the stream is started and does nothing unless the session is
// idle. The stream outlives ctx; Reset stops it.
func (c *Controller) RequestCurriculum(ctx context.Context, topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != nil {
		return nil
	}

	sctx := llm.WithSession(context.WithoutCancel(ctx), c.id)
	h, err := c.deps.Curriculum.Start(sctx, topic, c.cfg.TotalSections)
	if err != nil {
		return err
	}
	c.handle = h
	c.topic = h.Topic()
	c.state = State{}
	c.finished = false
	c.feedback = nil
	c.recordLocked(store.SessionStarted, "")
	c.log.Info("curriculum requested", "topic", c.topic, "total", c.cfg.TotalSections)

	go c.watch(h, c.epoch)
	return nil
}

// watch records the end of the stream and a possible degraded finish.
func (c *Controller) watch(h *curriculum.Handle, epoch int) {
	<-h.Done()
	res := h.Result()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	detail := string(res.Status)
	if len(res.Problems) > 0 {
		detail += ": " + strings.Join(res.Problems, "; ")
	}
	c.recordLocked(store.SessionStreamEnd, detail)
	c.maybeFinishLocked()
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

func (c *Controller) phaseLocked() Phase {
	if c.handle == nil {
		return PhaseIdle
	}
	if c.state.Position >= c.cfg.TotalSections {
		return PhaseFinished
	}
	snap := c.handle.Snapshot()
	if c.state.Position < snap.Resolved() {
		return PhasePresenting
	}
	if snap.Complete {
		return PhaseFinished
	}
	return PhaseStreaming
}

// CurrentSection returns the resolved section at the current position.
func (c *Controller) CurrentSection() (curriculum.Section, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Controller) currentLocked() (curriculum.Section, bool) {
	if c.phaseLocked() != PhasePresenting {
		return curriculum.Section{}, false
	}
	return c.handle.Snapshot().Section(c.state.Position)
}

// SubmitAnswer handles the learner's response at the current position.
// Paragraph and end sections advance unconditionally. Questions are graded
// and advance only when the grader accepts the answer.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) Result {
	c.mu.Lock()
	sec, ok := c.currentLocked()
	if !ok {
		defer c.mu.Unlock()
		return c.noopLocked("")
	}
	if !sec.Answerable() {
		defer c.mu.Unlock()
		c.recordLocked(store.SessionAnswered, string(sec.Kind))
		c.advanceLocked()
		return Result{Outcome: OutcomeAdvanced, Position: c.state.Position}
	}
	if c.grading {
		defer c.mu.Unlock()
		return Result{Outcome: OutcomeIgnored, Message: "already checking your answer", Position: c.state.Position}
	}

	c.grading = true
	c.state.Input = text
	pos, epoch := c.state.Position, c.epoch
	req := gradingRequest(sec, text)
	c.mu.Unlock()

	gctx, cancel := context.WithTimeout(llm.WithSession(ctx, c.id), c.cfg.GradeTimeout)
	verdict, err := c.deps.Grader.Grade(gctx, req)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return Result{Outcome: OutcomeStale, Position: c.state.Position}
	}
	c.grading = false
	if c.state.Position != pos {
		return Result{Outcome: OutcomeStale, Position: c.state.Position}
	}

	if err != nil {
		c.log.Warn("grading failed", "position", pos, "transient", llm.IsTransient(err), "error", err)
		c.feedback = &Feedback{Outcome: OutcomeUngraded, Message: UngradedMessage}
		return Result{Outcome: OutcomeUngraded, Message: UngradedMessage, Position: pos}
	}

	c.recordLocked(store.SessionAnswered, answerDetail(verdict.IsCorrect))
	if verdict.IsCorrect {
		c.advanceLocked()
		return Result{Outcome: OutcomeAdvanced, Verdict: verdict, Position: c.state.Position}
	}

	msg := "That's not quite right, try again."
	c.feedback = &Feedback{Outcome: OutcomeIncorrect, Message: msg, Explanation: verdict.Explanation}
	return Result{Outcome: OutcomeIncorrect, Verdict: verdict, Message: msg, Position: pos}
}

func answerDetail(correct bool) string {
	if correct {
		return "correct"
	}
	return "incorrect"
}

func gradingRequest(sec curriculum.Section, answer string) grading.Request {
	switch sec.Kind {
	case curriculum.KindShortAnswer:
		return grading.Request{
			Question:       sec.ShortAnswer.Question,
			UserAnswer:     answer,
			ExpectedAnswer: sec.ShortAnswer.ExpectedAnswer,
		}
	case curriculum.KindMultipleChoice:
		return grading.Request{
			Question:       sec.MultipleChoice.Question,
			UserAnswer:     answer,
			ExpectedAnswer: sec.MultipleChoice.CorrectChoice,
			Choices:        sec.MultipleChoice.Choices,
		}
	}
	return grading.Request{}
}

// Skip moves past a paragraph or end section. Questions cannot be skipped.
func (c *Controller) Skip() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	sec, ok := c.currentLocked()
	if !ok {
		return c.noopLocked("")
	}
	if sec.Answerable() {
		return c.noopLocked("answer the question to continue")
	}
	c.recordLocked(store.SessionSkipped, string(sec.Kind))
	c.advanceLocked()
	return Result{Outcome: OutcomeAdvanced, Position: c.state.Position}
}

func (c *Controller) noopLocked(msg string) Result {
	if msg == "" {
		switch c.phaseLocked() {
		case PhaseIdle:
			msg = "no curriculum has been requested"
		case PhaseStreaming:
			msg = "the next section is still on its way"
		case PhaseFinished:
			msg = "the curriculum is finished"
		}
	}
	return Result{Outcome: OutcomeNoop, Message: msg, Position: c.state.Position}
}

func (c *Controller) advanceLocked() {
	if c.state.Position < c.cfg.TotalSections {
		c.state.Position++
	}
	c.state.Input = ""
	c.feedback = nil
	c.maybeFinishLocked()
}

func (c *Controller) maybeFinishLocked() {
	if c.finished || c.phaseLocked() != PhaseFinished {
		return
	}
	c.finished = true
	c.recordLocked(store.SessionFinished, "")
	c.log.Info("curriculum finished", "position", c.state.Position)
}

// SetInput stores the learner's in-progress answer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Input = text
}

// State returns a copy of the learner state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns resolved/total and position/total.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked()
}

func (c *Controller) progressLocked() Progress {
	p := Progress{Position: c.state.Position, Total: c.cfg.TotalSections}
	if c.handle != nil {
		p.Resolved = c.handle.Snapshot().Resolved()
	}
	return p
}

// Handle returns the active curriculum stream, or nil when idle.
func (c *Controller) Handle() *curriculum.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// View returns a consistent read of the session.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		ID:       c.id,
		Phase:    c.phaseLocked(),
		Topic:    c.topic,
		State:    c.state,
		Progress: c.progressLocked(),
		Grading:  c.grading,
	}
	if sec, ok := c.currentLocked(); ok {
		v.Current = &sec
	}
	if c.feedback != nil {
		fb := *c.feedback
		v.Feedback = &fb
	}
	if c.handle != nil && c.handle.Complete() {
		res := c.handle.Result()
		v.Stream = &StreamInfo{Status: res.Status, Degraded: res.Degraded, Problems: res.Problems}
		if res.Err != nil {
			v.Stream.Error = res.Err.Error()
		}
	}
	return v
}

// Reset cancels the stream and returns the session to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	h := c.handle
	if h != nil {
		c.recordLocked(store.SessionReset, "")
	}
	c.handle = nil
	c.topic = ""
	c.state = State{}
	c.grading = false
	c.feedback = nil
	c.finished = false
	c.epoch++
	c.mu.Unlock()

	if h != nil {
		h.Cancel()
	}
}

func (c *Controller) recordLocked(action, detail string) {
	if c.deps.Events == nil {
		return
	}
	err := c.deps.Events.AppendSessionEvent(context.Background(), store.SessionEventData{
		SessionID: c.id,
		Action:    action,
		Topic:     c.topic,
		Position:  c.state.Position,
		Total:     c.cfg.TotalSections,
		Detail:    detail,
	})
	if err != nil {
		c.log.Warn("record session event failed", "action", action, "error", err)
	}
}
