// Package lesson presents a streamed curriculum one section at a time.
package lesson

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/router"
	"github.com/abhisek/lessonstream/internal/screen"
	"github.com/abhisek/lessonstream/internal/session"
	"github.com/abhisek/lessonstream/internal/ui/components"
	"github.com/abhisek/lessonstream/internal/ui/layout"
)

type Screen struct {
	ctrl   *session.Controller
	ctx    context.Context
	cancel context.CancelFunc

	view session.View
	snap *curriculum.Snapshot

	input   components.TextInput
	choices components.MultiChoice
	// builtFor is the position input and choices were set up for.
	builtFor int
	pending  bool
	last     *session.Result
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)
var _ screen.StatusProvider = (*Screen)(nil)
var _ screen.Closer = (*Screen)(nil)

// New presents the curriculum ctrl is streaming. The screen resets the
// session when it is closed.
func New(ctrl *session.Controller) *Screen {
	ctx, cancel := context.WithCancel(context.Background())
	return &Screen{
		ctrl:     ctrl,
		ctx:      ctx,
		cancel:   cancel,
		input:    components.NewTextInput("Type your answer...", false, 500),
		builtFor: -1,
	}
}

func (s *Screen) Init() tea.Cmd {
	wait := s.wait()
	s.refresh()
	return tea.Batch(s.input.Init(), wait)
}

func (s *Screen) Title() string {
	return s.view.Topic
}

func (s *Screen) Status() string {
	return fmt.Sprintf("%d/%d", s.view.Progress.Position, s.view.Progress.Total)
}

func (s *Screen) Close() {
	s.cancel()
	s.ctrl.Reset()
}

func (s *Screen) KeyHints() []layout.KeyHint {
	back := layout.KeyHint{Key: "Esc", Description: "New topic"}
	switch s.view.Phase {
	case session.PhaseFinished:
		return []layout.KeyHint{{Key: "Enter", Description: "New topic"}}
	case session.PhaseStreaming:
		return []layout.KeyHint{back}
	}
	if s.view.Current != nil {
		switch s.view.Current.Kind {
		case curriculum.KindShortAnswer:
			return []layout.KeyHint{{Key: "Enter", Description: "Check"}, back}
		case curriculum.KindMultipleChoice:
			return []layout.KeyHint{{Key: "↑↓", Description: "Choose"}, {Key: "Enter", Description: "Check"}, back}
		}
	}
	return []layout.KeyHint{{Key: "Enter/S", Description: "Continue"}, back}
}

// wait blocks until the snapshot changes. It returns nil once the stream
// is over.
func (s *Screen) wait() tea.Cmd {
	h := s.ctrl.Handle()
	if h == nil || h.Complete() {
		return nil
	}
	ch := h.Changed()
	return func() tea.Msg {
		<-ch
		return streamUpdateMsg{handle: h}
	}
}

// refresh reads the session and sets up the answer widgets when a new
// section is shown.
func (s *Screen) refresh() {
	s.view = s.ctrl.View()
	if h := s.ctrl.Handle(); h != nil {
		s.snap = h.Snapshot()
	}

	cur := s.view.Current
	if cur == nil || s.builtFor == s.view.State.Position {
		return
	}
	s.builtFor = s.view.State.Position
	s.input.Reset()
	if cur.Kind == curriculum.KindShortAnswer && s.view.State.Input != "" {
		s.input.SetValue(s.view.State.Input)
	}
	if cur.Kind == curriculum.KindMultipleChoice {
		s.choices = components.NewMultiChoice(cur.MultipleChoice.Choices)
		s.choices.Select(s.view.State.Input)
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case streamUpdateMsg:
		if msg.handle != s.ctrl.Handle() {
			return s, nil
		}
		wait := s.wait()
		s.refresh()
		return s, wait

	case gradedMsg:
		s.pending = false
		res := msg.Result
		s.last = &res
		s.refresh()
		return s, nil

	case tea.KeyPressMsg:
		return s.handleKey(msg)
	}

	if s.answering(curriculum.KindShortAnswer) {
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *Screen) answering(kind curriculum.Kind) bool {
	return s.view.Phase == session.PhasePresenting && s.view.Current != nil && s.view.Current.Kind == kind
}

func (s *Screen) handleKey(msg tea.KeyPressMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()
	if s.view.Phase == session.PhaseFinished {
		if key == "enter" {
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
		return s, nil
	}
	if s.view.Phase != session.PhasePresenting || s.view.Current == nil {
		return s, nil
	}

	switch s.view.Current.Kind {
	case curriculum.KindShortAnswer:
		if key == "enter" {
			return s, s.grade(s.input.Value())
		}
		var cmd tea.Cmd
		s.input, cmd = s.input.Update(msg)
		s.ctrl.SetInput(s.input.Value())
		return s, cmd

	case curriculum.KindMultipleChoice:
		if key == "enter" {
			return s, s.grade(s.choices.Choice())
		}
		s.choices, _ = s.choices.Update(msg)
		s.ctrl.SetInput(s.choices.Choice())
		return s, nil
	}

	if key == "enter" || key == "space" || key == "s" {
		res := s.ctrl.Skip()
		s.last = &res
		s.refresh()
	}
	return s, nil
}

// grade submits answer in the background. Repeated presses while a check
// is running are dropped.
func (s *Screen) grade(answer string) tea.Cmd {
	if s.pending {
		return nil
	}
	s.pending = true
	s.last = nil
	ctrl, ctx := s.ctrl, s.ctx
	return func() tea.Msg {
		return gradedMsg{Result: ctrl.SubmitAnswer(ctx, answer)}
	}
}
