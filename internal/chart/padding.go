package chart

import "streamcharts/internal/stream"

// padEdges counts the zero samples added in front of and behind a series
type padEdges struct {
	leading  int
	trailing int
}

// pad surrounds data with a zero sample 1 ms before the first point and 1 ms
// after the last one. When the anchor reaches further than the data, an
// extra zero sample is placed 1 ms outside the anchor edge as well, so every
// padded series of the activity spans the same range.
func pad(data []stream.Point, anchor *stream.Anchor) ([]stream.Point, padEdges) {
	if len(data) == 0 {
		return nil, padEdges{}
	}

	lead := leadingPads(data[0].Time, anchor)
	trail := trailingPads(data[len(data)-1].Time, anchor)

	out := make([]stream.Point, 0, len(lead)+len(data)+len(trail))
	out = append(out, lead...)
	out = append(out, data...)
	out = append(out, trail...)
	return out, padEdges{leading: len(lead), trailing: len(trail)}
}

func leadingPads(first int64, anchor *stream.Anchor) []stream.Point {
	var pads []stream.Point
	if anchor != nil && anchor.IsSet() && anchor.Start < first {
		pads = append(pads, stream.Point{Time: anchor.Start - 1})
	}
	return append(pads, stream.Point{Time: first - 1})
}

func trailingPads(last int64, anchor *stream.Anchor) []stream.Point {
	pads := []stream.Point{{Time: last + 1}}
	if anchor != nil && anchor.IsSet() && anchor.End > last {
		pads = append(pads, stream.Point{Time: anchor.End + 1})
	}
	return pads
}

// paddedAnchor returns the range covered by a series padded to the anchor
func paddedAnchor(anchor *stream.Anchor) (Range, bool) {
	if anchor == nil || !anchor.IsSet() {
		return Range{}, false
	}
	return Range{Start: anchor.Start - 1, End: anchor.End + 1}, true
}

// extent returns the time range and value range of a padded series
func extent(points []stream.Point) (Range, Extent) {
	if len(points) == 0 {
		return Range{}, Extent{}
	}
	r := Range{Start: points[0].Time, End: points[len(points)-1].Time}
	e := Extent{Min: points[0].Value, Max: points[0].Value}
	for _, p := range points[1:] {
		if p.Value < e.Min {
			e.Min = p.Value
		}
		if p.Value > e.Max {
			e.Max = p.Value
		}
	}
	return r, e
}

// bucketExtent returns the value range of a bar view
func bucketExtent(buckets []int) Extent {
	e := Extent{}
	for _, b := range buckets {
		if float64(b) > e.Max {
			e.Max = float64(b)
		}
	}
	return e
}

// intervalSteps turns active intervals into a step function with four
// samples per interval: 0 a second before the start, 1 at the start,
// 1 at the end, and 0 a second after the end.
func intervalSteps(intervals []stream.Interval) []stream.Point {
	points := make([]stream.Point, 0, 4*len(intervals))
	for _, iv := range intervals {
		points = append(points,
			stream.Point{Time: iv.Start - 1000, Value: 0},
			stream.Point{Time: iv.Start, Value: 1},
			stream.Point{Time: iv.End, Value: 1},
			stream.Point{Time: iv.End + 1000, Value: 0},
		)
	}
	return points
}

// numeric converts samples to points, skipping values that are not numbers
func numeric(samples []stream.Sample) []stream.Point {
	points := make([]stream.Point, 0, len(samples))
	for _, s := range samples {
		if v, ok := s.Float(); ok {
			points = append(points, stream.Point{Time: s.Time, Value: v})
		}
	}
	return points
}
