package activity

import (
	"strings"
	"time"

	"streamcharts/internal/analysis"
)

// FootBasedTypes lists activity types whose speed stream is also shown as
// pace and grade adjusted pace
var FootBasedTypes = []string{
	"Running",
	"Indoor Running",
	"Trail Running",
	"Virtual Running",
	"Hiking",
	"Walking",
}

// IsFootBased reports whether activityType is one of FootBasedTypes.
// Matching ignores case and surrounding whitespace.
func IsFootBased(activityType string) bool {
	activityType = strings.TrimSpace(activityType)
	for _, t := range FootBasedTypes {
		if strings.EqualFold(t, activityType) {
			return true
		}
	}
	return false
}

// Context is the per-activity configuration charts are derived from.
// It is built once when an activity is opened and never changed afterwards.
type Context struct {
	UnitSystem analysis.UnitSystem
	RestingHR  *float64
	MaxHR      float64
	FTP        float64
	FootBased  bool
	Deletable  bool

	gradient []float64
}

// Options are the inputs to NewContext
type Options struct {
	UnitSystem   analysis.UnitSystem
	RestingHR    *float64
	MaxHR        float64
	FTP          float64
	ActivityType string
	Gradient     []float64
	Deletable    bool
}

// NewContext builds an immutable activity context. The gradient curve and
// resting heart rate are copied so later changes by the caller have no effect.
func NewContext(o Options) Context {
	ctx := Context{
		UnitSystem: o.UnitSystem,
		MaxHR:      o.MaxHR,
		FTP:        o.FTP,
		FootBased:  IsFootBased(o.ActivityType),
		Deletable:  o.Deletable,
	}
	if ctx.UnitSystem == "" {
		ctx.UnitSystem = analysis.Metric
	}
	if o.RestingHR != nil {
		rest := *o.RestingHR
		ctx.RestingHR = &rest
	}
	if len(o.Gradient) > 0 {
		ctx.gradient = make([]float64, len(o.Gradient))
		copy(ctx.gradient, o.Gradient)
	}
	return ctx
}

// Gradient returns a copy of the per-distance gradient curve
func (c Context) Gradient() []float64 {
	if len(c.gradient) == 0 {
		return nil
	}
	out := make([]float64, len(c.gradient))
	copy(out, c.gradient)
	return out
}

// GradientLen returns the number of points in the gradient curve
func (c Context) GradientLen() int {
	return len(c.gradient)
}

// HeartRateZones returns the heart rate zone boundaries, or nil without a max HR
func (c Context) HeartRateZones() analysis.ZoneBoundaries {
	if c.MaxHR <= 0 {
		return nil
	}
	return analysis.HeartRateZones(c.RestingHR, c.MaxHR)
}

// PowerZones returns the power zone boundaries, or nil without an FTP
func (c Context) PowerZones() analysis.ZoneBoundaries {
	if c.FTP <= 0 {
		return nil
	}
	return analysis.PowerZones(c.FTP)
}

// Meta describes a stored activity as returned by a data source
type Meta struct {
	ID        string
	Name      string
	Type      string
	Start     time.Time
	Recording bool
	Gradient  []float64
}
