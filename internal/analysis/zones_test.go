package analysis

import (
	"math"
	"testing"

	"streamcharts/internal/stream"
)

func floatPtr(f float64) *float64 {
	return &f
}

func samples(values ...any) []stream.Sample {
	out := make([]stream.Sample, len(values))
	for i, v := range values {
		out[i] = stream.Sample{Time: int64(i) * 1000, Value: v}
	}
	return out
}

func TestHeartRateZones(t *testing.T) {
	tests := []struct {
		name      string
		restingHR *float64
		maxHR     float64
		want      []float64
	}{
		{
			name:      "karvonen with resting HR",
			restingHR: floatPtr(60),
			maxHR:     180,
			want:      []float64{132, 144, 156, 168, 180},
		},
		{
			name:      "percent of max without resting HR",
			restingHR: nil,
			maxHR:     200,
			want:      []float64{120, 140, 160, 180},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HeartRateZones(tt.restingHR, tt.maxHR)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("zone[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPowerZones(t *testing.T) {
	got := PowerZones(200)
	want := []float64{109.8, 150, 180, 210, 240, 300}

	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("zone[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestZoneLookup(t *testing.T) {
	zones := HeartRateZones(floatPtr(60), 180)

	tests := []struct {
		value float64
		want  int
	}{
		{100, 0},
		{132, 0},
		{133, 1},
		{150, 2}, // the <=156 bucket
		{168, 3},
		{180, 4},
		{181, -1},
	}

	for _, tt := range tests {
		if got := zones.Zone(tt.value); got != tt.want {
			t.Errorf("Zone(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestComputeZoneDistribution(t *testing.T) {
	zones := HeartRateZones(floatPtr(60), 180)

	t.Run("counts first matching zone", func(t *testing.T) {
		dist := ComputeZoneDistribution(zones, samples(100.0, 140.0, 150.0, 150.0, 170.0, 180.0))
		want := ZoneDistribution{1, 1, 2, 0, 2}
		for i := range want {
			if dist[i] != want[i] {
				t.Errorf("dist[%d] = %d, want %d", i, dist[i], want[i])
			}
		}
	})

	t.Run("values above last bound are dropped", func(t *testing.T) {
		in := samples(120.0, 190.0, 200.0)
		dist := ComputeZoneDistribution(zones, in)
		if dist.Total() != 1 {
			t.Errorf("Total() = %d, want 1", dist.Total())
		}
		if dist.Total() > len(in) {
			t.Errorf("Total() = %d exceeds sample count %d", dist.Total(), len(in))
		}
	})

	t.Run("non-numeric and nil values are skipped", func(t *testing.T) {
		dist := ComputeZoneDistribution(zones, samples(nil, "abc", "150", 150.0))
		if dist.Total() != 2 {
			t.Errorf("Total() = %d, want 2", dist.Total())
		}
	})

	t.Run("length matches boundaries", func(t *testing.T) {
		flat := HeartRateZones(nil, 180)
		dist := ComputeZoneDistribution(flat, samples(170.0, 175.0))
		if len(dist) != len(flat) {
			t.Errorf("len = %d, want %d", len(dist), len(flat))
		}
		// Anything above 90% of max is uncounted without a resting HR
		if dist.Max() != 0 {
			t.Errorf("Max() = %d, want 0", dist.Max())
		}
	})

	t.Run("sum equals count when nothing overflows", func(t *testing.T) {
		in := samples(61.0, 90.0, 131.0, 144.0, 155.0, 160.0, 179.9)
		dist := ComputeZoneDistribution(zones, in)
		if dist.Total() != len(in) {
			t.Errorf("Total() = %d, want %d", dist.Total(), len(in))
		}
	})
}

func TestZoneDistributionAdd(t *testing.T) {
	zones := PowerZones(250)
	dist := ComputeZoneDistribution(zones, samples(100.0, 200.0))
	dist.Add(zones, samples(100.0, 290.0))

	if dist.Total() != 4 {
		t.Errorf("Total() = %d, want 4", dist.Total())
	}
	if dist[0] != 2 {
		t.Errorf("dist[0] = %d, want 2", dist[0])
	}
}

func TestZoneLabels(t *testing.T) {
	labels := PowerZones(200).Labels()
	if len(labels) != 6 {
		t.Fatalf("len = %d, want 6", len(labels))
	}
	if labels[0] != "Z1 ≤110" {
		t.Errorf("labels[0] = %q, want %q", labels[0], "Z1 ≤110")
	}
}
