package components

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"
)

func key(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code, Text: string(code)}
}

func TestMultiChoice_Navigation(t *testing.T) {
	m := NewMultiChoice([]string{"Seine", "Thames", "Danube"})

	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if m.Choice() != "Thames" {
		t.Errorf("after down: %q", m.Choice())
	}
	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyUp})
	if m.Choice() != "Seine" {
		t.Errorf("up past the top: %q", m.Choice())
	}
	m, _ = m.Update(key('3'))
	if m.Choice() != "Danube" {
		t.Errorf("after 3: %q", m.Choice())
	}
	m, _ = m.Update(key('7'))
	if m.Choice() != "Danube" {
		t.Errorf("out of range number moved the selection to %q", m.Choice())
	}

	m.Select("Seine")
	if m.Selected != 0 {
		t.Errorf("Select(Seine) = %d", m.Selected)
	}
	if !strings.Contains(m.View(), "3) Danube") {
		t.Error("view should number every choice")
	}
}

func TestMultiChoice_Empty(t *testing.T) {
	m := NewMultiChoice(nil)
	m, _ = m.Update(tea.KeyPressMsg{Code: tea.KeyDown})
	if m.Choice() != "" {
		t.Errorf("Choice() = %q, want empty", m.Choice())
	}
}

func TestProgressBar(t *testing.T) {
	cases := []struct {
		done, total int
		want        float64
	}{
		{0, 12, 0},
		{3, 12, 0.25},
		{12, 12, 1},
		{14, 12, 1},
		{1, 0, 0},
	}
	for _, c := range cases {
		if got := NewProgressBar("", c.done, c.total, 40).Ratio(); got != c.want {
			t.Errorf("Ratio(%d/%d) = %v, want %v", c.done, c.total, got, c.want)
		}
	}
	if v := NewProgressBar("Read", 3, 12, 40).View(); !strings.Contains(v, "3/12") {
		t.Errorf("view missing count: %q", v)
	}
}

func TestTextInput_NumericOnly(t *testing.T) {
	ti := NewTextInput("", true, 2)
	ti, _ = ti.Update(key('1'))
	ti, _ = ti.Update(key('x'))
	ti, _ = ti.Update(key('2'))
	n, err := ti.NumericValue()
	if err != nil || n != 12 {
		t.Errorf("NumericValue() = %d, %v; want 12", n, err)
	}
}
