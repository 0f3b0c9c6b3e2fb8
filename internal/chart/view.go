package chart

import (
	"strings"

	"streamcharts/internal/stream"
)

// Kind selects how a view is drawn
type Kind int

const (
	KindArea Kind = iota // filled value vs. time
	KindLine             // plain value vs. time
	KindStep             // 0/1 step function vs. time
	KindBars             // categorical buckets
)

func (k Kind) String() string {
	switch k {
	case KindArea:
		return "area"
	case KindLine:
		return "line"
	case KindStep:
		return "step"
	case KindBars:
		return "bars"
	default:
		return "unknown"
	}
}

// TimeSeries reports whether the kind plots values against time
func (k Kind) TimeSeries() bool {
	return k != KindBars
}

// Range is a closed time interval in milliseconds since epoch
type Range struct {
	Start int64
	End   int64
}

// Contains reports whether t lies within the range
func (r Range) Contains(t int64) bool {
	return t >= r.Start && t <= r.End
}

// Duration returns the span of the range in milliseconds
func (r Range) Duration() int64 {
	return r.End - r.Start
}

// union returns the smallest range covering both r and o
func (r Range) union(o Range) Range {
	if o.Start < r.Start {
		r.Start = o.Start
	}
	if o.End > r.End {
		r.End = o.End
	}
	return r
}

// Extent is the value axis domain of a view
type Extent struct {
	Min float64
	Max float64
}

// Transform is the zoom and pan state of a view. K is the zoom factor
// (1 shows the full time domain) and X is the left edge of the visible
// window as a fraction of the time domain.
type Transform struct {
	K float64
	X float64
}

// Identity is the transform of a view nobody has zoomed or panned
var Identity = Transform{K: 1}

// Window returns the part of domain made visible by the transform
func (t Transform) Window(domain Range) Range {
	if t.K <= 1 {
		return domain
	}
	span := float64(domain.Duration()) / t.K
	start := domain.Start + int64(t.X*float64(domain.Duration()))
	end := start + int64(span)
	if end > domain.End {
		end = domain.End
		start = end - int64(span)
	}
	if start < domain.Start {
		start = domain.Start
	}
	return Range{Start: start, End: end}
}

// View is one chart of an activity. Data and domains are owned by the
// coordinator. Transform and Brush are interactive state: they are set by
// the rendering side and survive every data update.
type View struct {
	ID          string
	StreamID    string
	Title       string
	Units       string
	Color       string
	Kind        Kind
	TimeDomain  Range
	ValueDomain Extent
	Transform   Transform
	Brush       *Range
	Deletable   bool

	// Points is the padded series of a time series view
	Points []stream.Point

	// Buckets and Labels hold the categories of a bar view
	Buckets []int
	Labels  []string
}

// clone returns a copy that shares no slices with v
func (v View) clone() View {
	if v.Brush != nil {
		b := *v.Brush
		v.Brush = &b
	}
	v.Points = append([]stream.Point(nil), v.Points...)
	v.Buckets = append([]int(nil), v.Buckets...)
	v.Labels = append([]string(nil), v.Labels...)
	return v
}

// header returns a copy of v without its data, as handed to Apply
func (v View) header() View {
	if v.Brush != nil {
		b := *v.Brush
		v.Brush = &b
	}
	v.Points = nil
	v.Buckets = append([]int(nil), v.Buckets...)
	v.Labels = append([]string(nil), v.Labels...)
	return v
}

// Delta describes how a previously rendered series changes. The renderer
// drops the last Retract points of what it holds and appends Points.
// With Reset set it discards everything and Points is the full series.
type Delta struct {
	Reset   bool
	Retract int
	Points  []stream.Point
}

// ApplyTo returns series with the delta applied
func (d Delta) ApplyTo(series []stream.Point) []stream.Point {
	if d.Reset {
		return append([]stream.Point(nil), d.Points...)
	}
	keep := len(series) - d.Retract
	if keep < 0 {
		keep = 0
	}
	out := make([]stream.Point, 0, keep+len(d.Points))
	out = append(out, series[:keep]...)
	return append(out, d.Points...)
}

// ViewID derives a stable view identifier from a chart title
func ViewID(title string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(title)), " ", "-")
}

// Colors of each chart, keyed by chart title
var colors = map[string]string{
	"Speed":                        "DodgerBlue",
	"Pace":                         "DodgerBlue",
	"Grade Adjusted Pace":          "DodgerBlue",
	"Cadence":                      "Tan",
	"Power Zone Distribution":      "DarkGreen",
	"Power":                        "ForestGreen",
	"Heart Rate":                   "Crimson",
	"Heart Rate Zone Distribution": "DarkRed",
	"Temperature":                  "FireBrick",
	"x":                            "DodgerBlue",
	"y":                            "FireBrick",
	"z":                            "ForestGreen",
	"Lap Time":                     "LightSteelBlue",
	"Total Strokes":                "LightSteelBlue",
	"Threat Count":                 "FireBrick",
	"Battery Level":                "FireBrick",
	"Intervals":                    "Silver",
}

// Color returns the CSS color name used for a chart title
func Color(title string) string {
	if c, ok := colors[title]; ok {
		return c
	}
	return "Gray"
}
