package analysis

import "streamcharts/internal/stream"

// Summary holds aggregated values of one chart series
type Summary struct {
	Count int
	Min   float64
	Max   float64
	Sum   float64
}

// Summarize aggregates the points of a series. Zero-valued points are
// counted only when includeZero is set, so padding and stopped pace do not
// drag the average down.
func Summarize(points []stream.Point, includeZero bool) Summary {
	var s Summary
	for _, p := range points {
		if p.Value == 0 && !includeZero {
			continue
		}
		if s.Count == 0 || p.Value < s.Min {
			s.Min = p.Value
		}
		if s.Count == 0 || p.Value > s.Max {
			s.Max = p.Value
		}
		s.Sum += p.Value
		s.Count++
	}
	return s
}

// Avg returns the mean value, or 0 with no points
func (s Summary) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Odometer integrates speed samples in m/s into distance covered and elapsed
// time. Points older than the latest one added are ignored.
type Odometer struct {
	meters  float64
	first   int64
	prev    stream.Point
	started bool
}

// Add integrates a time ordered batch of speed points
func (o *Odometer) Add(points []stream.Point) {
	for _, p := range points {
		if !o.started {
			o.first, o.prev, o.started = p.Time, p, true
			continue
		}
		if p.Time < o.prev.Time {
			continue
		}
		dt := float64(p.Time-o.prev.Time) / 1000
		o.meters += (o.prev.Value + p.Value) / 2 * dt
		o.prev = p
	}
}

// Meters returns the distance covered so far
func (o *Odometer) Meters() float64 {
	return o.meters
}

// DurationMs returns the time between the first and the latest point
func (o *Odometer) DurationMs() int64 {
	if !o.started {
		return 0
	}
	return o.prev.Time - o.first
}
