package activity

import (
	"testing"

	"streamcharts/internal/analysis"
)

func TestIsFootBased(t *testing.T) {
	tests := []struct {
		activityType string
		want         bool
	}{
		{"Running", true},
		{"trail running", true},
		{"  Walking ", true},
		{"Cycling", false},
		{"Pool Swimming", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.activityType, func(t *testing.T) {
			if got := IsFootBased(tt.activityType); got != tt.want {
				t.Errorf("IsFootBased(%q) = %v, want %v", tt.activityType, got, tt.want)
			}
		})
	}
}

func TestNewContextCopiesInputs(t *testing.T) {
	rest := 55.0
	gradient := []float64{0, 0.02, 0.04}

	ctx := NewContext(Options{
		RestingHR:    &rest,
		MaxHR:        190,
		FTP:          250,
		ActivityType: "Running",
		Gradient:     gradient,
	})

	rest = 80
	gradient[1] = 0.5

	if *ctx.RestingHR != 55 {
		t.Errorf("RestingHR = %v, want 55", *ctx.RestingHR)
	}
	if got := ctx.Gradient(); got[1] != 0.02 {
		t.Errorf("Gradient()[1] = %v, want 0.02", got[1])
	}

	g := ctx.Gradient()
	g[0] = 9
	if ctx.Gradient()[0] != 0 {
		t.Error("Gradient() exposed internal slice")
	}

	if !ctx.FootBased {
		t.Error("expected foot-based context for Running")
	}
	if ctx.UnitSystem != analysis.Metric {
		t.Errorf("UnitSystem = %q, want metric default", ctx.UnitSystem)
	}
}

func TestContextZones(t *testing.T) {
	ctx := NewContext(Options{MaxHR: 180, FTP: 0})

	if got := ctx.HeartRateZones(); len(got) != 4 {
		t.Errorf("HeartRateZones() len = %d, want 4 without resting HR", len(got))
	}
	if ctx.PowerZones() != nil {
		t.Error("PowerZones() should be nil without FTP")
	}
	if NewContext(Options{}).HeartRateZones() != nil {
		t.Error("HeartRateZones() should be nil without max HR")
	}
}
