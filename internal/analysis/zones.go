package analysis

import (
	"fmt"

	"streamcharts/internal/stream"
)

// Karvonen reserve percentages for the heart rate zone upper bounds
var hrZonePercents = []float64{0.60, 0.70, 0.80, 0.90}

// Upper bounds of the power zones as a fraction of FTP (Coggan).
// Zone 6 ends at 150% of FTP; anything above that is a neuromuscular sprint
// and is not counted.
var powerZonePercents = []float64{0.549, 0.75, 0.90, 1.05, 1.20, 1.50}

// ZoneBoundaries is an ascending list of zone upper bounds
type ZoneBoundaries []float64

// ZoneDistribution holds one sample count per zone
type ZoneDistribution []int

// HeartRateZones returns the heart rate zone upper bounds.
// With a resting heart rate the Karvonen formula gives five bounds, the last
// being maxHR itself. Without one, four flat percentages of maxHR are used.
func HeartRateZones(restingHR *float64, maxHR float64) ZoneBoundaries {
	if restingHR != nil {
		rest := *restingHR
		zones := make(ZoneBoundaries, 0, len(hrZonePercents)+1)
		for _, pct := range hrZonePercents {
			zones = append(zones, (maxHR-rest)*pct+rest)
		}
		return append(zones, maxHR)
	}

	zones := make(ZoneBoundaries, 0, len(hrZonePercents))
	for _, pct := range hrZonePercents {
		zones = append(zones, maxHR*pct)
	}
	return zones
}

// PowerZones returns the six power zone upper bounds for the given FTP
func PowerZones(ftp float64) ZoneBoundaries {
	zones := make(ZoneBoundaries, len(powerZonePercents))
	for i, pct := range powerZonePercents {
		zones[i] = ftp * pct
	}
	return zones
}

// Zone returns the index of the first zone whose bound is >= value,
// or -1 when the value exceeds every bound
func (b ZoneBoundaries) Zone(value float64) int {
	for i, bound := range b {
		if value <= bound {
			return i
		}
	}
	return -1
}

// Labels returns "Z1".."Zn" axis labels with the bound of each zone
func (b ZoneBoundaries) Labels() []string {
	labels := make([]string, len(b))
	for i, bound := range b {
		labels[i] = fmt.Sprintf("Z%d ≤%.0f", i+1, bound)
	}
	return labels
}

// ComputeZoneDistribution counts samples per zone. Non-numeric values are
// skipped and values above the last bound are dropped, so the total can be
// lower than the number of numeric samples.
func ComputeZoneDistribution(boundaries ZoneBoundaries, samples []stream.Sample) ZoneDistribution {
	dist := make(ZoneDistribution, len(boundaries))
	dist.Add(boundaries, samples)
	return dist
}

// Add counts an additional batch of samples into an existing distribution
func (d ZoneDistribution) Add(boundaries ZoneBoundaries, samples []stream.Sample) {
	for _, s := range samples {
		v, ok := s.Float()
		if !ok {
			continue
		}
		if i := boundaries.Zone(v); i >= 0 && i < len(d) {
			d[i]++
		}
	}
}

// Max returns the largest bucket count
func (d ZoneDistribution) Max() int {
	m := 0
	for _, c := range d {
		if c > m {
			m = c
		}
	}
	return m
}

// Total returns the number of counted samples
func (d ZoneDistribution) Total() int {
	total := 0
	for _, c := range d {
		total += c
	}
	return total
}
