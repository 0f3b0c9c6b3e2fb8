package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type keyHelp struct {
	key  string
	desc string
}

var sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(liveColor)

// renderHelp renders the key bindings and chart notes
func renderHelp() string {
	sections := []string{
		renderSection("Charts", []keyHelp{
			{"tab / shift+tab", "Select next / previous chart"},
			{"+ / -", "Zoom the selected chart in / out"},
			{"h / l", "Pan the zoomed chart left / right"},
			{"b", "Brush the middle of the visible window"},
			{"esc", "Clear the brush"},
			{"d", "Delete the selected sensor stream"},
		}),
		renderSection("General", []keyHelp{
			{"pgup / pgdn", "Scroll"},
			{"r", "Fetch new samples now"},
			{"?", "Toggle this help"},
			{"q", "Quit"},
		}),
		renderNotes(),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderSection(title string, keys []keyHelp) string {
	lines := []string{"", sectionStyle.Render(title)}
	for _, k := range keys {
		lines = append(lines, "  "+RenderKeyHelp(k.key, k.desc))
	}
	return strings.Join(lines, "\n")
}

func renderNotes() string {
	notes := []keyHelp{
		{"Zone Distribution", "Samples per heart rate or power zone. Values above the top zone are not counted."},
		{"Grade Adjusted Pace", "Pace corrected for the gradient of the route, shown when a gradient curve is known."},
		{"Intervals", "1 while an interval is active, 0 between intervals."},
		{"Lap Time", "Timer time of each pool length."},
	}

	lines := []string{"", sectionStyle.Render("Charts Explained"), ""}
	for _, n := range notes {
		lines = append(lines, "  "+helpKeyStyle.Render(n.key))
		lines = append(lines, "  "+helpDescStyle.Render(n.desc))
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
