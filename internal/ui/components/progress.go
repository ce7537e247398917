package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/lessonstream/internal/ui/theme"
)

// ProgressBar shows done/total as a bar followed by the count.
type ProgressBar struct {
	Label string
	Done  int
	Total int
	Width int
	Fill  lipgloss.Style
}

func NewProgressBar(label string, done, total, width int) ProgressBar {
	return ProgressBar{
		Label: label,
		Done:  done,
		Total: total,
		Width: width,
		Fill:  lipgloss.NewStyle().Background(theme.Secondary),
	}
}

// Ratio is done/total clamped to [0, 1].
func (p ProgressBar) Ratio() float64 {
	if p.Total <= 0 {
		return 0
	}
	r := float64(p.Done) / float64(p.Total)
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

func (p ProgressBar) View() string {
	var result string
	if p.Label != "" {
		result = lipgloss.NewStyle().Foreground(theme.Text).Render(p.Label) + "  "
	}
	count := fmt.Sprintf("  %d/%d", p.Done, p.Total)

	barWidth := p.Width - lipgloss.Width(result) - len(count)
	if barWidth < 4 {
		barWidth = 4
	}
	filled := int(float64(barWidth) * p.Ratio())

	result += p.Fill.Render(strings.Repeat(" ", filled))
	result += lipgloss.NewStyle().Background(theme.Border).Render(strings.Repeat(" ", barWidth-filled))
	result += lipgloss.NewStyle().Foreground(theme.TextDim).Render(count)
	return result
}
