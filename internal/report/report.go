// Package report renders the charts of an activity as a standalone HTML page
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cli/browser"
	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"streamcharts/internal/activity"
	"streamcharts/internal/chart"
	"streamcharts/internal/stream"
)

type entry struct {
	view   chart.View
	points []stream.Point
}

// Renderer collects rendered views so they can be written out as one page.
// It implements chart.Renderer.
type Renderer struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	summary string
}

// NewRenderer creates an empty report
func NewRenderer() *Renderer {
	return &Renderer{entries: make(map[string]*entry)}
}

// SetSummary sets the distance, pace and speed line shown in the page title
// and under the speed charts
func (r *Renderer) SetSummary(summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = summary
}

// Render adds a view to the report
func (r *Renderer) Render(v chart.View) chart.UpdateHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[v.ID]; !ok {
		r.order = append(r.order, v.ID)
	}
	r.entries[v.ID] = &entry{view: v, points: append([]stream.Point(nil), v.Points...)}
	return handle{r: r, id: v.ID}
}

// Remove drops a view from the report
func (r *Renderer) Remove(v chart.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, v.ID)
	for i, id := range r.order {
		if id == v.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

type handle struct {
	r  *Renderer
	id string
}

func (h handle) Apply(v chart.View, d chart.Delta) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()

	if e, ok := h.r.entries[h.id]; ok {
		e.view = v
		e.points = d.ApplyTo(e.points)
	}
}

// Write renders the page. Views follow layout; a nil layout keeps the
// order they were rendered in.
func (r *Renderer) Write(w io.Writer, meta activity.Meta, layout []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if layout == nil {
		layout = r.order
	}

	page := components.NewPage()
	page.SetPageTitle(pageTitle(meta, r.summary))
	for _, id := range layout {
		e, ok := r.entries[id]
		if !ok {
			continue
		}
		if e.view.Kind == chart.KindBars {
			page.AddCharts(barChart(e.view))
		} else {
			page.AddCharts(lineChart(e.view, e.points, r.summaryFor(e.view)))
		}
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}

// WriteFile renders the page into path, creating its directory
func (r *Renderer) WriteFile(path string, meta activity.Meta, layout []string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := r.Write(f, meta, layout); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Open shows a written report in the default browser
func Open(path string) error {
	if err := browser.OpenFile(path); err != nil {
		return fmt.Errorf("opening report: %w", err)
	}
	return nil
}

// summaryFor returns the summary line for views of the speed stream
func (r *Renderer) summaryFor(v chart.View) string {
	if v.StreamID != stream.CurrentSpeed {
		return ""
	}
	return r.summary
}

func pageTitle(meta activity.Meta, summary string) string {
	parts := []string{}
	if meta.Name != "" {
		parts = append(parts, meta.Name)
	} else if meta.ID != "" {
		parts = append(parts, meta.ID)
	}
	if meta.Type != "" {
		parts = append(parts, meta.Type)
	}
	if !meta.Start.IsZero() {
		parts = append(parts, meta.Start.Format("Jan 2, 2006 15:04"))
	}
	if summary != "" {
		parts = append(parts, summary)
	}
	if len(parts) == 0 {
		return "Activity"
	}
	return strings.Join(parts, " · ")
}

func subtitle(v chart.View, samples int) string {
	s := humanize.Comma(int64(samples)) + " samples"
	if v.Units != "" {
		s = v.Units + " · " + s
	}
	return s
}

func lineSubtitle(v chart.View, samples int, summary string) string {
	s := subtitle(v, samples)
	if summary != "" {
		s += " · " + summary
	}
	return s
}

func lineChart(v chart.View, points []stream.Point, summary string) *charts.Line {
	line := charts.NewLine()

	start, end := zoomPercent(v.Transform)
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "macarons", ChartID: v.ID}),
		charts.WithTitleOpts(opts.Title{
			Title:    v.Title,
			Subtitle: lineSubtitle(v, len(points), summary),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "time",
			Min:  v.TimeDomain.Start,
			Max:  v.TimeDomain.End,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: v.Units,
			Min:  v.ValueDomain.Min,
			Max:  v.ValueDomain.Max,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:  "slider",
			Start: start,
			End:   end,
		}),
	)

	data := make([]opts.LineData, len(points))
	for i, p := range points {
		data[i] = opts.LineData{Value: []interface{}{p.Time, p.Value}}
	}

	seriesOpts := []charts.SeriesOpts{
		charts.WithItemStyleOpts(opts.ItemStyle{Color: strings.ToLower(v.Color)}),
	}
	switch v.Kind {
	case chart.KindArea:
		seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.3)}))
	case chart.KindStep:
		seriesOpts = append(seriesOpts, charts.WithLineChartOpts(opts.LineChart{Step: "end"}))
	}
	if v.Brush != nil {
		seriesOpts = append(seriesOpts, charts.WithMarkAreaNameCoordItemOpts(opts.MarkAreaNameCoordItem{
			Name:        "selection",
			Coordinate0: []interface{}{v.Brush.Start},
			Coordinate1: []interface{}{v.Brush.End},
		}))
	}

	line.AddSeries(v.Title, data, seriesOpts...)
	return line
}

func barChart(v chart.View) *charts.Bar {
	bar := charts.NewBar()

	total := 0
	for _, n := range v.Buckets {
		total += n
	}
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "macarons", ChartID: v.ID}),
		charts.WithTitleOpts(opts.Title{
			Title:    v.Title,
			Subtitle: subtitle(v, total),
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger: "axis",
			AxisPointer: &opts.AxisPointer{
				Type: "shadow",
			},
		}),
	)

	bar.SetXAxis(v.Labels)
	data := make([]opts.BarData, len(v.Buckets))
	for i, n := range v.Buckets {
		data[i] = opts.BarData{Value: n}
	}
	bar.AddSeries(v.Title, data, charts.WithItemStyleOpts(opts.ItemStyle{Color: strings.ToLower(v.Color)}))
	return bar
}

// zoomPercent converts a transform to the data zoom window in percent
func zoomPercent(t chart.Transform) (float32, float32) {
	if t.K <= 1 {
		return 0, 100
	}
	start := t.X * 100
	end := start + 100/t.K
	if end > 100 {
		end = 100
	}
	return float32(start), float32(end)
}
