package lesson

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/session"
	"github.com/abhisek/lessonstream/internal/ui/components"
	"github.com/abhisek/lessonstream/internal/ui/layout"
	"github.com/abhisek/lessonstream/internal/ui/theme"
)

func (s *Screen) View(width, height int) string {
	w := layout.ContentWidth(width)

	var b strings.Builder
	b.WriteString(s.renderProgress(w))
	b.WriteString("\n\n")

	switch s.view.Phase {
	case session.PhaseStreaming:
		b.WriteString(s.renderPending(w))
	case session.PhasePresenting:
		b.WriteString(s.renderLast(w))
		b.WriteString(theme.Card.Width(w).Render(s.renderSection(w - 6)))
		b.WriteString(s.renderFeedback(w))
	case session.PhaseFinished:
		b.WriteString(s.renderFinished(w))
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Top, b.String())
}

func (s *Screen) renderProgress(w int) string {
	p := s.view.Progress
	written := components.NewProgressBar("Written ", p.Resolved, p.Total, w)
	done := components.NewProgressBar("Progress", p.Position, p.Total, w)
	done.Fill = lipgloss.NewStyle().Background(theme.Primary)
	return written.View() + "\n" + done.View()
}

// renderPending shows the section being written, as far as it has arrived.
func (s *Screen) renderPending(w int) string {
	line := fmt.Sprintf("Writing section %d...", s.view.State.Position+1)
	if s.snap != nil && s.snap.Draft != nil && s.snap.Draft.Index == s.view.State.Position {
		if heading, ok := s.snap.Draft.Heading(); ok {
			line = heading + " ..."
		}
	}
	return theme.Draft.Width(w).Render(line)
}

func (s *Screen) renderSection(w int) string {
	sec := s.view.Current
	wrap := lipgloss.NewStyle().Width(w)

	switch sec.Kind {
	case curriculum.KindParagraph:
		return theme.Title.Render(sec.Paragraph.Title) + "\n\n" +
			theme.Body.Width(w).Render(sec.Paragraph.Content)

	case curriculum.KindShortAnswer:
		return wrap.Bold(true).Render(sec.ShortAnswer.Question) + "\n\n" +
			"Answer: " + s.input.View()

	case curriculum.KindMultipleChoice:
		return wrap.Bold(true).Render(sec.MultipleChoice.Question) + "\n\n" +
			s.choices.View()

	case curriculum.KindEnd:
		return theme.Title.Render("That's the whole curriculum.") + "\n\n" +
			theme.Hint.Render("Press Enter to finish.")
	}
	return ""
}

// renderLast confirms a correct answer above the next section.
func (s *Screen) renderLast(w int) string {
	if s.last == nil || s.last.Outcome != session.OutcomeAdvanced || s.last.Verdict == nil {
		return ""
	}
	out := theme.Correct.Render("Correct!")
	if e := s.last.Verdict.Explanation; e != "" {
		out += " " + theme.Body.Render(e)
	}
	return lipgloss.NewStyle().Width(w).Render(out) + "\n\n"
}

func (s *Screen) renderFeedback(w int) string {
	wrap := lipgloss.NewStyle().Width(w)
	if s.pending || s.view.Grading {
		return "\n" + theme.Hint.Render("Checking your answer...")
	}
	fb := s.view.Feedback
	if fb == nil {
		return ""
	}
	switch fb.Outcome {
	case session.OutcomeIncorrect:
		out := "\n" + theme.Incorrect.Render(fb.Message)
		if fb.Explanation != "" {
			out += "\n" + wrap.Render(fb.Explanation)
		}
		return out
	case session.OutcomeUngraded:
		return "\n" + theme.Warning.Render(fb.Message)
	}
	return ""
}

func (s *Screen) renderFinished(w int) string {
	wrap := lipgloss.NewStyle().Width(w)
	p := s.view.Progress
	st := s.view.Stream

	var b strings.Builder
	switch {
	case st != nil && st.Status == curriculum.StatusFailed && p.Resolved == 0:
		b.WriteString(theme.Incorrect.Render("Could not generate a curriculum."))
		if st.Error != "" {
			b.WriteString("\n" + wrap.Render(st.Error))
		}
	case p.Position >= p.Total:
		b.WriteString(theme.Correct.Render(fmt.Sprintf("You finished all %d sections on %s!", p.Total, s.view.Topic)))
	default:
		b.WriteString(theme.Warning.Render(fmt.Sprintf("The curriculum ended after %d of %d sections.", p.Position, p.Total)))
		if st != nil && len(st.Problems) > 0 {
			b.WriteString("\n" + theme.Hint.Width(w).Render(strings.Join(st.Problems, "; ")))
		}
	}
	b.WriteString("\n\n" + theme.Hint.Render("Press Enter to pick another topic."))
	return b.String()
}
