package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"streamcharts/internal/analysis"
	"streamcharts/internal/chart"
	"streamcharts/internal/stream"
)

const (
	plotHeight   = 8
	minPlotWidth = 20
	barLabelW    = 8
)

// visible returns the points inside the window the transform shows
func visible(v chart.View, points []stream.Point) ([]stream.Point, chart.Range) {
	window := v.Transform.Window(v.TimeDomain)
	var out []stream.Point
	for _, p := range points {
		if window.Contains(p.Time) {
			out = append(out, p)
		}
	}
	return out, window
}

// columns resamples points onto width columns spread evenly over window.
// Each column averages the points falling into it; empty columns repeat
// the previous one.
func columns(points []stream.Point, window chart.Range, width int) []float64 {
	if len(points) == 0 || width < 2 || window.Duration() <= 0 {
		return nil
	}

	sums := make([]float64, width)
	counts := make([]int, width)
	for _, p := range points {
		col := int((p.Time - window.Start) * int64(width-1) / window.Duration())
		if col < 0 {
			col = 0
		}
		if col >= width {
			col = width - 1
		}
		sums[col] += p.Value
		counts[col]++
	}

	out := make([]float64, width)
	prev := points[0].Value
	for i := range out {
		if counts[i] > 0 {
			prev = sums[i] / float64(counts[i])
		}
		out[i] = prev
	}
	return out
}

// brushed returns the points inside the brush selection
func brushed(points []stream.Point, brush chart.Range) []stream.Point {
	var out []stream.Point
	for _, p := range points {
		if brush.Contains(p.Time) {
			out = append(out, p)
		}
	}
	return out
}

// renderPanel draws one chart card
func renderPanel(p panel, width int, selected bool) string {
	style := cardStyle
	if selected {
		style = selectedCardStyle
	}
	inner := width - style.GetHorizontalFrameSize()
	if inner < minPlotWidth {
		inner = minPlotWidth
	}

	var body string
	if p.view.Kind == chart.KindBars {
		body = renderBars(p.view, inner)
	} else {
		body = renderSeries(p.view, p.points, inner)
	}

	title := cardTitleStyle.Foreground(chartColor(p.view.Color)).Render(p.view.Title)
	if p.view.Units != "" {
		title += captionStyle.Render(" (" + p.view.Units + ")")
	}
	if p.view.Deletable {
		title += captionStyle.Render("  [d] delete")
	}

	return style.Width(width - style.GetHorizontalBorderSize()).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, body))
}

func renderSeries(v chart.View, points []stream.Point, width int) string {
	shown, window := visible(v, points)

	// room for the y axis labels asciigraph draws on the left
	data := columns(shown, window, width-10)
	if len(data) < 2 {
		return captionStyle.Render("no samples in view")
	}

	opts := []asciigraph.Option{
		asciigraph.Height(plotHeight),
		asciigraph.Width(width - 10),
		asciigraph.LowerBound(v.ValueDomain.Min),
		asciigraph.UpperBound(v.ValueDomain.Max),
		asciigraph.Precision(1),
	}
	if c, ok := asciigraph.ColorNames[strings.ToLower(v.Color)]; ok {
		opts = append(opts, asciigraph.SeriesColors(c))
	}

	lines := []string{asciigraph.Plot(data, opts...)}

	caption := fmt.Sprintf("%s – %s", formatClock(window.Start), formatClock(window.End))
	if v.Transform.K > 1 {
		caption += fmt.Sprintf("  zoom ×%g", v.Transform.K)
	}
	if s := analysis.Summarize(shown, false); s.Count > 0 && v.Kind != chart.KindStep {
		caption += fmt.Sprintf("  min %s  avg %s  max %s",
			formatValue(v.Units, s.Min), formatValue(v.Units, s.Avg()), formatValue(v.Units, s.Max))
	}
	lines = append(lines, captionStyle.Render(caption))

	if v.Brush != nil {
		sel := brushed(points, *v.Brush)
		text := fmt.Sprintf("selection %s – %s  %s samples",
			formatClock(v.Brush.Start), formatClock(v.Brush.End), humanize.Comma(int64(len(sel))))
		if s := analysis.Summarize(sel, false); s.Count > 0 {
			text += "  avg " + formatValue(v.Units, s.Avg())
		}
		lines = append(lines, brushStyle.Render(text))
	}

	return strings.Join(lines, "\n")
}

// renderBars draws the categories of a bar view as horizontal bars scaled
// to the largest bucket
func renderBars(v chart.View, width int) string {
	maxCount := 0
	for _, n := range v.Buckets {
		if n > maxCount {
			maxCount = n
		}
	}
	if maxCount == 0 {
		return captionStyle.Render("no samples")
	}

	barStyle := lipgloss.NewStyle().Foreground(chartColor(v.Color))
	labelStyle := lipgloss.NewStyle().Width(barLabelW + 1)
	room := width - barLabelW - 10
	if room < 1 {
		room = 1
	}

	lines := make([]string, 0, len(v.Buckets))
	for i, n := range v.Buckets {
		label := ""
		if i < len(v.Labels) {
			label = v.Labels[i]
		}
		bar := strings.Repeat("█", n*room/maxCount)
		lines = append(lines, labelStyle.Render(truncate(label, barLabelW))+
			barStyle.Render(bar)+" "+humanize.Comma(int64(n)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
