package analysis

import (
	"fmt"
	"math"

	"streamcharts/internal/stream"
)

// UnitSystem selects metric or imperial display units
type UnitSystem string

const (
	Metric   UnitSystem = "metric"
	Imperial UnitSystem = "imperial"
)

const (
	metersPerKm      = 1000.0
	milesPerMeter    = 0.000621371
	msPerMinute      = 60000.0
	msPerHour        = 3600000.0
	mpsToKph         = 3.6
	mpsToMph         = 2.23694
	minPerKmAtOneMps = 16.6666667 // 1000 m / 60 s
	minPerMiAtOneMps = 26.8224    // 1609.344 m / 60 s
	minSpeedForPace  = 1.0        // m/s

	// NoValue is shown instead of a pace or speed that cannot be computed
	NoValue = "--"
)

// ParseUnitSystem accepts "metric" or "imperial"
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch UnitSystem(s) {
	case Metric, Imperial:
		return UnitSystem(s), nil
	default:
		return "", fmt.Errorf("unit system must be %q or %q, got %q", Metric, Imperial, s)
	}
}

// IsMetric reports whether u is the metric system. Anything else is treated as imperial.
func (u UnitSystem) IsMetric() bool {
	return u == Metric
}

// MetersToUnit converts meters to kilometers or miles
func MetersToUnit(u UnitSystem, meters float64) float64 {
	if u.IsMetric() {
		return meters / metersPerKm
	}
	return meters * milesPerMeter
}

// UnitToMeters is the inverse of MetersToUnit
func UnitToMeters(u UnitSystem, distance float64) float64 {
	if u.IsMetric() {
		return distance * metersPerKm
	}
	return distance / milesPerMeter
}

// DistanceUnits returns the long distance label
func (u UnitSystem) DistanceUnits() string {
	if u.IsMetric() {
		return "kms"
	}
	return "miles"
}

// SpeedUnits returns the speed chart label
func (u UnitSystem) SpeedUnits() string {
	if u.IsMetric() {
		return "kph"
	}
	return "mph"
}

// PaceUnits returns the pace label
func (u UnitSystem) PaceUnits() string {
	if u.IsMetric() {
		return "min/km"
	}
	return "min/mile"
}

// DistanceString formats meters as "12.34 kms" or "7.67 miles"
func DistanceString(u UnitSystem, meters float64) string {
	return fmt.Sprintf("%.2f %s", MetersToUnit(u, meters), u.DistanceUnits())
}

// PaceString formats the average pace over a distance and duration as
// "M:SS.s min/km". Returns NoValue for zero distance.
func PaceString(u UnitSystem, meters float64, durationMs int64) string {
	if meters == 0 {
		return NoValue
	}

	pace := (float64(durationMs) / msPerMinute) / MetersToUnit(u, meters)
	mins := math.Trunc(pace)
	secs := math.Round((pace-mins)*600) / 10
	if secs >= 60 {
		mins++
		secs -= 60
	}
	return fmt.Sprintf("%d:%04.1f %s", int64(mins), secs, u.PaceUnits())
}

// SpeedString formats the average speed as "12.34 kph". Returns NoValue when
// either the distance or the duration is zero.
func SpeedString(u UnitSystem, meters float64, durationMs int64) string {
	if meters == 0 || durationMs == 0 {
		return NoValue
	}
	speed := MetersToUnit(u, meters) / (float64(durationMs) / msPerHour)
	return fmt.Sprintf("%.2f %s", speed, u.SpeedUnits())
}

// SpeedSeries converts m/s samples to kph or mph. Samples without a numeric
// value are skipped.
func SpeedSeries(u UnitSystem, samples []stream.Sample) []stream.Point {
	factor := mpsToMph
	if u.IsMetric() {
		factor = mpsToKph
	}

	points := make([]stream.Point, 0, len(samples))
	for _, s := range samples {
		v, ok := s.Float()
		if !ok {
			continue
		}
		points = append(points, stream.Point{Time: s.Time, Value: v * factor})
	}
	return points
}

// PaceSeries converts m/s samples to minutes per km or mile. Speeds at or
// below 1 m/s, and unusable values, give a pace of 0. The output has exactly
// one point per input sample.
func PaceSeries(u UnitSystem, samples []stream.Sample) []stream.Point {
	numerator := minPerMiAtOneMps
	if u.IsMetric() {
		numerator = minPerKmAtOneMps
	}

	points := make([]stream.Point, len(samples))
	for i, s := range samples {
		points[i].Time = s.Time
		if v, ok := s.Float(); ok && v > minSpeedForPace {
			points[i].Value = numerator / v
		}
	}
	return points
}
