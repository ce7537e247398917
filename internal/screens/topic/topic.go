// Package topic is the start screen: the learner names what they want to
// learn and how many sections the curriculum should have.
package topic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/router"
	"github.com/abhisek/lessonstream/internal/screen"
	"github.com/abhisek/lessonstream/internal/ui/components"
	"github.com/abhisek/lessonstream/internal/ui/layout"
	"github.com/abhisek/lessonstream/internal/ui/theme"
)

// Opener starts a curriculum and returns the screen that presents it.
type Opener func(topic string, sections int) (screen.Screen, error)

const (
	fieldTopic = iota
	fieldSections
)

type Screen struct {
	open     Opener
	topic    components.TextInput
	sections components.TextInput
	focus    int
	errMsg   string
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)

func New(open Opener, defaultSections int) *Screen {
	sections := components.NewTextInput(strconv.Itoa(defaultSections), true, 2)
	sections.SetValue(strconv.Itoa(defaultSections))
	sections.Blur()
	return &Screen{
		open:     open,
		topic:    components.NewTextInput("e.g. the French revolution", false, 200),
		sections: sections,
	}
}

func (s *Screen) Init() tea.Cmd {
	return s.topic.Init()
}

func (s *Screen) Title() string {
	return "New curriculum"
}

func (s *Screen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Start"},
		{Key: "Tab", Description: "Switch field"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyPressMsg); ok {
		switch kmsg.String() {
		case "tab", "shift+tab", "up", "down":
			return s, s.toggleFocus()
		case "enter":
			return s, s.submit()
		}
	}

	var cmd tea.Cmd
	if s.focus == fieldTopic {
		s.topic, cmd = s.topic.Update(msg)
	} else {
		s.sections, cmd = s.sections.Update(msg)
	}
	return s, cmd
}

func (s *Screen) toggleFocus() tea.Cmd {
	if s.focus == fieldTopic {
		s.focus = fieldSections
		s.topic.Blur()
		return s.sections.Focus()
	}
	s.focus = fieldTopic
	s.sections.Blur()
	return s.topic.Focus()
}

func (s *Screen) submit() tea.Cmd {
	topic := strings.TrimSpace(s.topic.Value())
	n, err := s.sections.NumericValue()
	switch {
	case topic == "":
		s.errMsg = "Type a topic first."
		return nil
	case err != nil || n < 1 || n > curriculum.MaxSections:
		s.errMsg = fmt.Sprintf("Pick between 1 and %d sections.", curriculum.MaxSections)
		return nil
	}

	next, err := s.open(topic, n)
	if err != nil {
		s.errMsg = describe(err)
		return nil
	}
	s.errMsg = ""
	return func() tea.Msg { return router.PushScreenMsg{Screen: next} }
}

func describe(err error) string {
	switch {
	case errors.Is(err, curriculum.ErrEmptyTopic):
		return "Type a topic first."
	case errors.Is(err, curriculum.ErrInvalidSectionCount):
		return fmt.Sprintf("Pick between 1 and %d sections.", curriculum.MaxSections)
	}
	return "Could not start: " + err.Error()
}

func (s *Screen) View(width, height int) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("What do you want to learn today?"))
	b.WriteString("\n\n")
	b.WriteString(label("Topic", s.focus == fieldTopic) + s.topic.View())
	b.WriteString("\n")
	b.WriteString(label("Sections", s.focus == fieldSections) + s.sections.View())
	if s.errMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(theme.Incorrect.Render(s.errMsg))
	}
	b.WriteString("\n\n")
	b.WriteString(theme.Hint.Render("Sections appear as soon as they are written."))

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, b.String())
}

func label(name string, focused bool) string {
	style := theme.Unselected
	if focused {
		style = theme.Selected
	}
	return style.Render(fmt.Sprintf("%-10s", name))
}
