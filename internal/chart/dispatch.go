package chart

import (
	"fmt"
	"strconv"

	"streamcharts/internal/analysis"
	"streamcharts/internal/stream"
)

// Report summarizes one Dispatch call
type Report struct {
	Views   []string         // views rendered by this call, in layout order
	Skipped map[string]int   // malformed records skipped per stream
	Ignored []string         // stream names outside the vocabulary
	Errors  map[string]error // streams that failed, keyed by name
}

// Err returns the failure of one stream, if any
func (r Report) Err(name string) error {
	return r.Errors[name]
}

// Dispatch charts a full stream map. Streams are processed in vocabulary
// order so the anchor comes from continuous sensor data before events are
// placed on it. A failing stream is reported and skipped; the others are
// still charted. Streams already charted are appended to.
func (c *Coordinator) Dispatch(m stream.Map) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := Report{
		Skipped: make(map[string]int),
		Errors:  make(map[string]error),
	}
	if c.closed {
		return report
	}

	for name := range m {
		if !stream.Known(name) {
			c.logger.Warn("ignoring unknown stream", "stream", name)
			report.Ignored = append(report.Ignored, name)
		}
	}

	for _, name := range stream.Vocabulary {
		records, ok := m[name]
		if !ok {
			continue
		}
		st := c.stream(name)
		if st.deleted {
			c.logger.Debug("skipping deleted stream", "stream", name)
			continue
		}

		ids, skipped, err := c.ingestSafe(st, records)
		if skipped > 0 {
			report.Skipped[name] = skipped
		}
		if err != nil {
			report.Errors[name] = err
			continue
		}
		report.Views = append(report.Views, ids...)
	}

	c.logger.Debug("dispatched streams", "views", len(report.Views), "errors", len(report.Errors))
	return report
}

// batch is one parsed fragment of a stream
type batch struct {
	samples stream.Stream
	events  []stream.Event
	axes    stream.Axes
	size    int
	last    int64
}

// parse turns raw records into a batch. Continuous streams go through the
// normalizer, which may establish the anchor.
func (c *Coordinator) parse(name string, records []stream.Record) (batch, int) {
	var b batch
	switch name {
	case stream.Events:
		events, skipped := stream.ParseEvents(records)
		b.events = events
		b.size = len(events)
		if len(events) > 0 {
			b.last = events[len(events)-1].Time
		}
		return b, skipped

	case stream.Accelerometer:
		axes, skipped := stream.SplitAxes(records)
		b.axes = axes
		b.size = len(records) - skipped
		for _, s := range []stream.Stream{axes.X, axes.Y, axes.Z} {
			if s.Len() > 0 && s.Last() > b.last {
				b.last = s.Last()
			}
		}
		return b, skipped

	default:
		s, skipped := c.normalizer.Normalize(name, records)
		b.samples = s
		b.size = s.Len()
		b.last = s.Last()
		return b, skipped
	}
}

// define returns the chart definitions for a stream, in layout order
func (c *Coordinator) define(name string) ([]*series, error) {
	u := c.ctx.UnitSystem
	deletable := c.ctx.Deletable

	switch name {
	case stream.CurrentSpeed:
		defs := []*series{
			timeSeries("Speed", u.SpeedUnits(), KindArea, false, func(b batch, _ int) []stream.Point {
				return analysis.SpeedSeries(u, b.samples.Samples)
			}),
		}
		if !c.ctx.FootBased {
			return defs, nil
		}
		defs = append(defs, timeSeries("Pace", u.PaceUnits(), KindArea, false, func(b batch, _ int) []stream.Point {
			return analysis.PaceSeries(u, b.samples.Samples)
		}))
		if c.ctx.GradientLen() > 0 {
			defs = append(defs, timeSeries("Grade Adjusted Pace", u.PaceUnits(), KindArea, false, c.gradeAdjusted()))
		}
		return defs, nil

	case stream.HeartRate:
		var defs []*series
		if zones := c.ctx.HeartRateZones(); zones != nil {
			defs = append(defs, zoneBars("Heart Rate Zone Distribution", zones))
		}
		return append(defs, primary("Heart Rate", "BPM", deletable)), nil

	case stream.Power:
		var defs []*series
		if zones := c.ctx.PowerZones(); zones != nil && !c.ctx.FootBased {
			defs = append(defs, zoneBars("Power Zone Distribution", zones))
		}
		return append(defs, primary("Power", "Watts", deletable)), nil

	case stream.Cadence:
		return []*series{primary("Cadence", "RPM", deletable)}, nil
	case stream.Temperature:
		return []*series{primary("Temperature", "°C", deletable)}, nil
	case stream.ThreatCount:
		return []*series{primary("Threat Count", "Threats", deletable)}, nil
	case stream.BatteryLevel:
		return []*series{primary("Battery Level", "%", deletable)}, nil

	case stream.Events:
		return []*series{
			timeSeries("Intervals", "", KindStep, false, func(b batch, _ int) []stream.Point {
				return intervalSteps(stream.Intervals(b.events))
			}),
			timeSeries("Lap Time", "Seconds", KindArea, false, func(b batch, _ int) []stream.Point {
				return numeric(stream.LapTimes(b.events).Samples)
			}),
			strokeBars(),
		}, nil

	case stream.Accelerometer:
		return []*series{
			timeSeries("x", "G", KindLine, false, func(b batch, _ int) []stream.Point { return numeric(b.axes.X.Samples) }),
			timeSeries("y", "G", KindLine, false, func(b batch, _ int) []stream.Point { return numeric(b.axes.Y.Samples) }),
			timeSeries("z", "G", KindLine, false, func(b batch, _ int) []stream.Point { return numeric(b.axes.Z.Samples) }),
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownStream, name)
}

// gradeAdjusted derives grade adjusted pace batch by batch. have is the
// number of pace points already derived, which is the gradient index of the
// first point in the batch.
func (c *Coordinator) gradeAdjusted() func(b batch, have int) []stream.Point {
	u := c.ctx.UnitSystem
	gradient := c.ctx.Gradient()
	return func(b batch, have int) []stream.Point {
		pace := analysis.PaceSeries(u, b.samples.Samples)
		if have == 0 && len(gradient) != len(pace) {
			c.logger.Warn("gradient curve and pace series differ in length",
				"gradient", len(gradient), "pace", len(pace), "resample", c.resample)
			if c.resample {
				gradient = analysis.ResampleGradient(gradient, len(pace))
			}
		}
		return analysis.GradeAdjustedPaceFrom(gradient, pace, have)
	}
}

func timeSeries(title, units string, kind Kind, deletable bool, derive func(batch, int) []stream.Point) *series {
	return &series{
		view: View{
			ID:        ViewID(title),
			Title:     title,
			Units:     units,
			Color:     Color(title),
			Kind:      kind,
			Transform: Identity,
			Deletable: deletable,
		},
		minPoints: 2,
		derive:    derive,
	}
}

// primary is the value vs. time chart of a plain sensor stream
func primary(title, units string, deletable bool) *series {
	return timeSeries(title, units, KindArea, deletable, func(b batch, _ int) []stream.Point {
		return numeric(b.samples.Samples)
	})
}

func zoneBars(title string, zones analysis.ZoneBoundaries) *series {
	return &series{
		view: View{
			ID:        ViewID(title),
			Title:     title,
			Units:     "Samples",
			Color:     Color(title),
			Kind:      KindBars,
			Transform: Identity,
			Buckets:   make([]int, len(zones)),
			Labels:    zones.Labels(),
		},
		count: func(b batch, v *View) {
			analysis.ZoneDistribution(v.Buckets).Add(zones, b.samples.Samples)
		},
	}
}

func strokeBars() *series {
	const title = "Total Strokes"
	return &series{
		view: View{
			ID:        ViewID(title),
			Title:     title,
			Units:     "Strokes",
			Color:     Color(title),
			Kind:      KindBars,
			Transform: Identity,
		},
		count: func(b batch, v *View) {
			for _, strokes := range stream.StrokeCounts(b.events) {
				v.Buckets = append(v.Buckets, strokes)
				v.Labels = append(v.Labels, strconv.Itoa(len(v.Buckets)))
			}
		},
	}
}
