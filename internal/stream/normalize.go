package stream

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// Anchor is the activity-wide time span shared by every chart of one activity.
// It is set once from the first stream with at least two samples and can
// afterwards only be widened.
type Anchor struct {
	Start int64
	End   int64
	set   bool
}

// IsSet reports whether the anchor has been established
func (a *Anchor) IsSet() bool {
	return a.set
}

// Observe establishes the anchor from s when it is not yet set and s has
// more than one sample. It returns true when the anchor was set by this call.
func (a *Anchor) Observe(s Stream) bool {
	if s.Len() < 2 {
		return false
	}
	return a.SetOnce(s.First(), s.Last())
}

// SetOnce establishes the anchor as [start, end] unless it is already set
func (a *Anchor) SetOnce(start, end int64) bool {
	if a.set {
		return false
	}
	if end < start {
		start, end = end, start
	}
	a.Start = start
	a.End = end
	a.set = true
	return true
}

// Widen extends the anchor to cover [start, end]. It never narrows it and
// does nothing before the anchor is set. Returns which edges moved.
func (a *Anchor) Widen(start, end int64) (startMoved, endMoved bool) {
	if !a.set {
		return false, false
	}
	if start < a.Start {
		a.Start = start
		startMoved = true
	}
	if end > a.End {
		a.End = end
		endMoved = true
	}
	return startMoved, endMoved
}

// Normalizer reshapes raw records into ordered streams. It shares the
// activity anchor by pointer with its owner.
type Normalizer struct {
	anchor *Anchor
}

// NewNormalizer creates a normalizer bound to the given anchor
func NewNormalizer(anchor *Anchor) *Normalizer {
	return &Normalizer{anchor: anchor}
}

// Normalize converts "<ms>": value records into a stream sorted by timestamp.
// Records without a parseable timestamp key are skipped and counted.
// Values are not validated. Duplicate timestamps keep their arrival order.
func (n *Normalizer) Normalize(name string, records []Record) (Stream, int) {
	s, skipped := Samples(name, records)
	if n.anchor != nil {
		n.anchor.Observe(s)
	}
	return s, skipped
}

// Samples is the side-effect free part of Normalize
func Samples(name string, records []Record) (Stream, int) {
	samples := make([]Sample, 0, len(records))
	skipped := 0

	for _, rec := range records {
		if len(rec) == 0 {
			skipped++
			continue
		}

		keys := make([]string, 0, len(rec))
		for k := range rec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			ts, ok := ParseTimestamp(k)
			if !ok {
				skipped++
				continue
			}
			samples = append(samples, Sample{Time: ts, Value: rec[k]})
		}
	}

	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Time < samples[j].Time
	})

	return Stream{Name: name, Samples: samples}, skipped
}

// ParseTimestamp parses a millisecond timestamp key
func ParseTimestamp(key string) (int64, bool) {
	key = strings.TrimSpace(key)
	if ts, err := strconv.ParseInt(key, 10, 64); err == nil {
		return ts, true
	}
	f, err := strconv.ParseFloat(key, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// RecordTime returns the millisecond timestamp of a raw record of the named
// stream. Sample records with several timestamp keys report the latest.
func RecordTime(name string, rec Record) (int64, bool) {
	switch name {
	case Events:
		if ts, ok := ToFloat(rec["timestamp"]); ok {
			return int64(ts * 1000), true
		}
		return 0, false
	case Accelerometer:
		if ts, ok := ToFloat(rec["time"]); ok {
			return int64(ts), true
		}
		return 0, false
	}

	var (
		latest int64
		found  bool
	)
	for k := range rec {
		if ts, ok := ParseTimestamp(k); ok && (!found || ts > latest) {
			latest, found = ts, true
		}
	}
	return latest, found
}
