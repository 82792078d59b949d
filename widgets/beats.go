package widgets

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-metronome/sequencer"
	"go-metronome/theme"
)

// beatSlots returns the loudest loudness per whole beat of the loop, or -1
// for beats with no click
func beatSlots(p sequencer.Pattern) []float64 {
	if p.Degenerate() {
		return nil
	}
	n := int(math.Ceil(p.LoopLength))
	slots := make([]float64, n)
	for i := range slots {
		slots[i] = -1
	}
	for _, e := range p.Events {
		i := int(math.Floor(e.Position))
		if i < 0 || i >= n {
			continue
		}
		if e.Loudness > slots[i] {
			slots[i] = e.Loudness
		}
	}
	return slots
}

// RenderPattern renders the loop as one cell per beat with a playhead row
// above it. A negative position hides the playhead.
func RenderPattern(p sequencer.Pattern, position float64, th *theme.Theme) string {
	slots := beatSlots(p)
	if len(slots) == 0 {
		return lipgloss.NewStyle().Foreground(th.Muted()).Render("(empty pattern)")
	}

	head := -1
	if position >= 0 {
		head = int(math.Floor(math.Mod(position, p.LoopLength)))
	}

	headStyle := lipgloss.NewStyle().Foreground(th.Cursor())
	restStyle := lipgloss.NewStyle().Foreground(th.Muted())

	var top, row strings.Builder
	for i, loud := range slots {
		if i > 0 {
			top.WriteString(" ")
			row.WriteString(" ")
		}
		if i == head {
			top.WriteString(headStyle.Render(string(th.Symbols.Playhead)))
		} else {
			top.WriteString(" ")
		}

		switch {
		case loud < 0:
			row.WriteString(restStyle.Render(string(th.Symbols.Rest)))
		case loud >= 1:
			row.WriteString(lipgloss.NewStyle().Foreground(th.Color(loud)).Bold(true).Render(string(th.Symbols.Accent)))
		default:
			row.WriteString(lipgloss.NewStyle().Foreground(th.Color(loud)).Render(string(th.Symbols.Click)))
		}
	}
	return top.String() + "\n" + row.String()
}

// RenderMeter renders a horizontal 0-1 level bar
func RenderMeter(level float64, width int, th *theme.Theme) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(math.Round(level * float64(width)))
	bar := lipgloss.NewStyle().Foreground(th.Accent()).Render(strings.Repeat(string(th.Symbols.Solid), filled)) +
		lipgloss.NewStyle().Foreground(th.Muted()).Render(strings.Repeat(string(th.Symbols.Empty), width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, level*100)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
