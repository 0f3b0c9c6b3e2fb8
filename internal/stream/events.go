package stream

import "sort"

// Event is a discrete lap or length marker from the Events stream.
// Times are milliseconds since epoch; zero means the field was absent.
type Event struct {
	Kind           string
	Time           int64
	StartTime      int64
	TotalTimerTime float64 // seconds
	TotalStrokes   int
	HasTimerTime   bool
	HasStrokes     bool
}

// Interval is an active period bounded by two timestamps in ms
type Interval struct {
	Start int64
	End   int64
}

// ParseEvents reads Events records. Event timestamps arrive in unix seconds.
// Records without a usable "timestamp" are skipped and counted.
func ParseEvents(records []Record) ([]Event, int) {
	events := make([]Event, 0, len(records))
	skipped := 0

	for _, rec := range records {
		ts, ok := ToFloat(rec["timestamp"])
		if !ok {
			skipped++
			continue
		}

		e := Event{Time: int64(ts * 1000)}
		if kind, ok := rec["event"].(string); ok {
			e.Kind = kind
		}
		if start, ok := ToFloat(rec["start_time"]); ok {
			e.StartTime = int64(start * 1000)
		}
		if v, ok := ToFloat(rec["total_timer_time"]); ok {
			e.TotalTimerTime = v
			e.HasTimerTime = true
		}
		if v, ok := ToFloat(rec["total_strokes"]); ok {
			e.TotalStrokes = int(v)
			e.HasStrokes = true
		}
		events = append(events, e)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})

	return events, skipped
}

// Intervals returns the active periods described by lap events that carry
// both a start time and an end timestamp
func Intervals(events []Event) []Interval {
	var intervals []Interval
	for _, e := range events {
		if e.StartTime == 0 || e.Time < e.StartTime {
			continue
		}
		intervals = append(intervals, Interval{Start: e.StartTime, End: e.Time})
	}
	return intervals
}

// LapTimes returns the timer time of each pool length at the length's end
// timestamp. Lap events only feed Intervals.
func LapTimes(events []Event) Stream {
	s := Stream{Name: "Lap Time"}
	for _, e := range events {
		if e.Kind == "length" && e.HasTimerTime {
			s.Samples = append(s.Samples, Sample{Time: e.Time, Value: e.TotalTimerTime})
		}
	}
	return s
}

// StrokeCounts returns total strokes for each pool length, in order
func StrokeCounts(events []Event) []int {
	var strokes []int
	for _, e := range events {
		if e.Kind == "length" && e.HasStrokes {
			strokes = append(strokes, e.TotalStrokes)
		}
	}
	return strokes
}

// Axes holds the per-axis streams of accelerometer data
type Axes struct {
	X, Y, Z Stream
}

// SplitAxes splits accelerometer records of the form
// {"time": ms, "x": .., "y": .., "z": ..} into three sorted streams.
// Records without a numeric time are skipped and counted.
func SplitAxes(records []Record) (Axes, int) {
	axes := Axes{
		X: Stream{Name: "x"},
		Y: Stream{Name: "y"},
		Z: Stream{Name: "z"},
	}
	skipped := 0

	for _, rec := range records {
		t, ok := ToFloat(rec["time"])
		if !ok {
			skipped++
			continue
		}
		ts := int64(t)
		if v, ok := rec["x"]; ok {
			axes.X.Samples = append(axes.X.Samples, Sample{Time: ts, Value: v})
		}
		if v, ok := rec["y"]; ok {
			axes.Y.Samples = append(axes.Y.Samples, Sample{Time: ts, Value: v})
		}
		if v, ok := rec["z"]; ok {
			axes.Z.Samples = append(axes.Z.Samples, Sample{Time: ts, Value: v})
		}
	}

	for _, s := range []*Stream{&axes.X, &axes.Y, &axes.Z} {
		sort.SliceStable(s.Samples, func(i, j int) bool {
			return s.Samples[i].Time < s.Samples[j].Time
		})
	}

	return axes, skipped
}
