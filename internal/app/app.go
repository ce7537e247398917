// Package app wires the terminal UI: a topic screen that opens lesson
// screens driving a session.
package app

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lessonstream/internal/router"
	"github.com/abhisek/lessonstream/internal/screen"
	"github.com/abhisek/lessonstream/internal/screens/lesson"
	"github.com/abhisek/lessonstream/internal/screens/topic"
	"github.com/abhisek/lessonstream/internal/session"
	"github.com/abhisek/lessonstream/internal/ui/layout"
)

// Options configure the terminal UI.
type Options struct {
	// NewSession builds an idle session for a curriculum of sections
	// sections.
	NewSession func(sections int) *session.Controller

	// DefaultSections prefills the section count.
	DefaultSections int

	// Topic, when set, skips the topic screen and starts right away.
	Topic string
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router  *router.Router
	initCmd tea.Cmd
	width   int
	height  int
}

func newAppModel(opts Options) AppModel {
	open := func(name string, sections int) (screen.Screen, error) {
		ctrl := opts.NewSession(sections)
		if err := ctrl.RequestCurriculum(context.Background(), name); err != nil {
			return nil, err
		}
		return lesson.New(ctrl), nil
	}
	m := AppModel{router: router.New(topic.New(open, opts.DefaultSections))}
	m.initCmd = m.router.Active().Init()
	if opts.Topic != "" {
		if next, err := open(opts.Topic, opts.DefaultSections); err == nil {
			m.initCmd = m.router.Push(next)
		}
	}
	return m
}

func (m AppModel) Init() tea.Cmd {
	return m.initCmd
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			m.router.CloseAll()
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}
	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	var title, status string
	hints := []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	if active != nil {
		title = active.Title()
		if sp, ok := active.(screen.StatusProvider); ok {
			status = sp.Status()
		}
		if kp, ok := active.(screen.KeyHintProvider); ok {
			hints = kp.KeyHints()
		}
	}

	header := layout.RenderHeader(title, status, m.width)
	footer := layout.RenderFooter(hints, m.width)
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}

	content := m.router.View(m.width, contentHeight)
	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

// Run starts the program and blocks until the learner quits.
func Run(opts Options) error {
	if opts.NewSession == nil {
		return fmt.Errorf("app: NewSession is required")
	}
	p := tea.NewProgram(newAppModel(opts))
	_, err := p.Run()
	return err
}
