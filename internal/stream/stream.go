package stream

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Known stream names as delivered in a sensor data payload
const (
	HeartRate     = "Heart Rate"
	Power         = "Power"
	Cadence       = "Cadence"
	CurrentSpeed  = "Current Speed"
	Temperature   = "Temperature"
	Events        = "Events"
	Accelerometer = "accelerometer"
	ThreatCount   = "Threat Count"
	BatteryLevel  = "Battery Level"
)

// Vocabulary lists every recognized stream name in dispatch order.
// Continuous sensor streams come first so the activity anchor is taken from
// sensor data rather than from sparse lap events.
var Vocabulary = []string{
	CurrentSpeed,
	HeartRate,
	Cadence,
	Power,
	Temperature,
	ThreatCount,
	BatteryLevel,
	Accelerometer,
	Events,
}

// Known reports whether name belongs to the stream vocabulary
func Known(name string) bool {
	for _, n := range Vocabulary {
		if n == name {
			return true
		}
	}
	return false
}

// Record is one raw entry of a stream as received over the wire.
// For plain sensor streams it holds a single "<ms timestamp>": value pair.
type Record map[string]any

// Map is the raw stream payload keyed by stream name
type Map map[string][]Record

// Sample is a single timestamped reading. Value is passed through untouched:
// it may be a number, a numeric string, or anything else the sender put there.
type Sample struct {
	Time  int64 // milliseconds since epoch
	Value any
}

// Float returns the numeric view of the sample value
func (s Sample) Float() (float64, bool) {
	return ToFloat(s.Value)
}

// ToFloat converts a raw payload value to a float when it carries a number
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Stream is a named, time-ordered series of samples
type Stream struct {
	Name    string
	Samples []Sample
}

// Len returns the number of samples
func (s Stream) Len() int {
	return len(s.Samples)
}

// First returns the earliest timestamp, or 0 for an empty stream
func (s Stream) First() int64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[0].Time
}

// Last returns the latest timestamp, or 0 for an empty stream
func (s Stream) Last() int64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Samples[len(s.Samples)-1].Time
}

// Point is a numeric, chart-ready sample produced by derivation
type Point struct {
	Time  int64
	Value float64
}
