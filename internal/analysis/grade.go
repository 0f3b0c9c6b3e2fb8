package analysis

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"

	"streamcharts/internal/stream"
)

// flatCost is the metabolic cost of running on flat ground (gradient 0)
const flatCost = 3.6

// minPaceForAdjustment filters out stopped samples
const minPaceForAdjustment = 0.1

// gradeCost is the energy cost polynomial for running at a given gradient
// (rise over run, clamped to ±1)
func gradeCost(g float64) float64 {
	g2 := g * g
	g3 := g2 * g
	g4 := g3 * g
	g5 := g4 * g
	return 155.4*g5 - 30.4*g4 - 43.4*g3 - 46.3*g2 - 19.5*g + flatCost
}

// GradeAdjustedPace adjusts every pace point by the gradient at the same index.
// The two series must share a sampling cadence; nothing is matched by time.
func GradeAdjustedPace(gradient []float64, pace []stream.Point) []stream.Point {
	return GradeAdjustedPaceFrom(gradient, pace, 0)
}

// GradeAdjustedPaceFrom is GradeAdjustedPace for a batch whose first point
// sits at index offset of the full pace series
func GradeAdjustedPaceFrom(gradient []float64, pace []stream.Point, offset int) []stream.Point {
	out := make([]stream.Point, len(pace))
	for i, p := range pace {
		out[i].Time = p.Time

		idx := offset + i
		if idx < 0 || idx >= len(gradient) || p.Value <= minPaceForAdjustment {
			continue
		}

		g := gradient[idx]
		if g > 1.0 {
			g = 1.0
		}
		if g < -1.0 {
			g = -1.0
		}

		adjusted := p.Value + (gradeCost(g)-flatCost)/flatCost
		if adjusted < 0 {
			adjusted = 0
		}
		out[i].Value = adjusted
	}
	return out
}

// ResampleGradient linearly resamples a gradient curve to n points so it can
// be index-aligned with a pace series of a different length
func ResampleGradient(gradient []float64, n int) []float64 {
	if n <= 0 || len(gradient) == 0 {
		return nil
	}
	if len(gradient) == n {
		out := make([]float64, n)
		copy(out, gradient)
		return out
	}
	if len(gradient) == 1 || n == 1 {
		out := make([]float64, n)
		for i := range out {
			out[i] = gradient[0]
		}
		return out
	}

	out := make([]float64, n)
	scale := float64(len(gradient)-1) / float64(n-1)
	for i := range out {
		pos := float64(i) * scale
		lo := int(pos)
		if lo >= len(gradient)-1 {
			out[i] = gradient[len(gradient)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = gradient[lo] + (gradient[lo+1]-gradient[lo])*frac
	}
	return out
}

// GradientFromTrack computes a gradient curve (rise over run) from cumulative
// distance and altitude samples of equal length. The first point has gradient 0,
// as does any point where no distance was covered.
func GradientFromTrack(distance, altitude []float64) ([]float64, error) {
	if len(distance) != len(altitude) {
		return nil, fmt.Errorf("distance and altitude lengths differ: %d vs %d", len(distance), len(altitude))
	}

	gradient := make([]float64, len(distance))
	for i := 1; i < len(distance); i++ {
		run := distance[i] - distance[i-1]
		if run <= 0 {
			continue
		}
		gradient[i] = (altitude[i] - altitude[i-1]) / run
	}
	return gradient, nil
}

// GradientFromGPX builds a gradient curve from the track points of a GPX file,
// one value per track point
func GradientFromGPX(data []byte) ([]float64, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parsing gpx: %w", err)
	}

	var distance, altitude []float64
	total := 0.0
	for _, track := range g.Tracks {
		for _, segment := range track.Segments {
			for i := range segment.Points {
				if i > 0 {
					total += segment.Points[i-1].Distance2D(&segment.Points[i])
				}
				distance = append(distance, total)
				altitude = append(altitude, segment.Points[i].Elevation.Value())
			}
		}
	}

	return GradientFromTrack(distance, altitude)
}
