package app

import (
	"context"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
	"github.com/abhisek/lessonstream/internal/llm"
	"github.com/abhisek/lessonstream/internal/session"
)

type noGrader struct{}

func (noGrader) Grade(context.Context, grading.Request) (*grading.Verdict, error) {
	return &grading.Verdict{}, nil
}

func send(m AppModel, msg tea.Msg) AppModel {
	next, _ := m.Update(msg)
	return next.(AppModel)
}

// navigate applies msg and then the navigation message its command
// produces.
func navigate(t *testing.T, m AppModel, msg tea.Msg) AppModel {
	t.Helper()
	next, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatalf("expected a command for %v", msg)
	}
	return send(next.(AppModel), cmd())
}

func TestTopicOpensLessonAndEscapeReturns(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddStream(llm.MockStream{Source: make(chan string)})

	var ctrl *session.Controller
	m := newAppModel(Options{
		DefaultSections: 3,
		NewSession: func(sections int) *session.Controller {
			ctrl = session.NewController("tui", session.Config{TotalSections: sections}, session.Deps{
				Curriculum: curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil),
				Grader:     noGrader{},
			})
			return ctrl
		},
	})
	m = send(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	for _, r := range "Go" {
		m = send(m, tea.KeyPressMsg{Code: r, Text: string(r)})
	}
	m = navigate(t, m, tea.KeyPressMsg{Code: tea.KeyEnter})

	if m.router.Depth() != 2 {
		t.Fatalf("expected the lesson screen, depth %d", m.router.Depth())
	}
	if ctrl == nil || ctrl.Total() != 3 {
		t.Fatal("expected a session with the default section count")
	}
	if m.router.Active().Title() != "Go" {
		t.Errorf("lesson title = %q", m.router.Active().Title())
	}

	m = navigate(t, m, tea.KeyPressMsg{Code: tea.KeyEscape})
	if m.router.Depth() != 1 {
		t.Fatalf("expected to be back on the topic screen, depth %d", m.router.Depth())
	}

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Phase() != session.PhaseIdle && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ctrl.Phase() != session.PhaseIdle {
		t.Errorf("leaving the lesson should reset the session, phase %s", ctrl.Phase())
	}
}

func TestRunRequiresSessionFactory(t *testing.T) {
	if err := Run(Options{}); err == nil {
		t.Error("expected an error without NewSession")
	}
}

func TestTopicOptionStartsLesson(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.AddStream(llm.MockStream{Source: make(chan string)})

	var ctrl *session.Controller
	m := newAppModel(Options{
		DefaultSections: 5,
		Topic:           "Photosynthesis",
		NewSession: func(sections int) *session.Controller {
			ctrl = session.NewController("tui", session.Config{TotalSections: sections}, session.Deps{
				Curriculum: curriculum.NewDecoder(mock, curriculum.DefaultConfig(), nil),
				Grader:     noGrader{},
			})
			return ctrl
		},
	})
	defer m.router.CloseAll()

	if m.router.Depth() != 2 {
		t.Fatalf("expected to start on the lesson screen, depth %d", m.router.Depth())
	}
	if ctrl.Phase() != session.PhaseStreaming {
		t.Errorf("expected the curriculum to be streaming, phase %s", ctrl.Phase())
	}
}
