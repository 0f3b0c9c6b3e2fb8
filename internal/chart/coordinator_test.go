package chart

import (
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"streamcharts/internal/activity"
	"streamcharts/internal/analysis"
	"streamcharts/internal/stream"
)

// fakeRenderer records everything a coordinator asks it to draw
type fakeRenderer struct {
	handles map[string]*fakeHandle
	order   []string
	removed []string
	panicOn string
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{handles: make(map[string]*fakeHandle)}
}

func (r *fakeRenderer) Render(v View) UpdateHandle {
	if v.ID == r.panicOn {
		panic("render failed")
	}
	h := &fakeHandle{view: v, series: append([]stream.Point(nil), v.Points...)}
	r.handles[v.ID] = h
	r.order = append(r.order, v.ID)
	return h
}

func (r *fakeRenderer) Remove(v View) {
	r.removed = append(r.removed, v.ID)
	delete(r.handles, v.ID)
}

type fakeHandle struct {
	view   View
	series []stream.Point
	deltas []Delta
}

func (h *fakeHandle) Apply(v View, d Delta) {
	h.view = v
	h.series = d.ApplyTo(h.series)
	h.deltas = append(h.deltas, d)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCoordinator(ctx activity.Context) (*Coordinator, *fakeRenderer) {
	r := newFakeRenderer()
	return NewCoordinator(ctx, r, WithLogger(quietLogger())), r
}

// recs builds single-entry records at start, start+step, ...
func recs(start, step int64, values ...any) []stream.Record {
	out := make([]stream.Record, len(values))
	for i, v := range values {
		out[i] = stream.Record{strconv.FormatInt(start+int64(i)*step, 10): v}
	}
	return out
}

func times(points []stream.Point) []int64 {
	out := make([]int64, len(points))
	for i, p := range points {
		out[i] = p.Time
	}
	return out
}

func equalPoints(a, b []stream.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustView(t *testing.T, c *Coordinator, id string) View {
	t.Helper()
	v, err := c.View(id)
	if err != nil {
		t.Fatalf("View(%q) error = %v", id, err)
	}
	return v
}

func TestDispatchPadsToAnchor(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))

	c.Dispatch(stream.Map{
		stream.Cadence:   recs(3000, 1000, 80.0, 82.0),
		stream.HeartRate: recs(1000, 1000, 120.0, 130.0, 140.0, 150.0, 160.0),
	})

	anchor, ok := c.Anchor()
	if !ok || anchor != (Range{Start: 1000, End: 5000}) {
		t.Fatalf("Anchor() = %v, %v; want [1000, 5000]", anchor, ok)
	}

	hr := mustView(t, c, "heart-rate")
	want := []stream.Point{
		{Time: 999}, {Time: 1000, Value: 120}, {Time: 2000, Value: 130}, {Time: 3000, Value: 140},
		{Time: 4000, Value: 150}, {Time: 5000, Value: 160}, {Time: 5001},
	}
	if !equalPoints(hr.Points, want) {
		t.Errorf("heart rate points = %v, want %v", hr.Points, want)
	}

	cad := mustView(t, c, "cadence")
	wantTimes := []int64{999, 2999, 3000, 4000, 4001, 5001}
	got := times(cad.Points)
	if len(got) != len(wantTimes) {
		t.Fatalf("cadence times = %v, want %v", got, wantTimes)
	}
	for i := range wantTimes {
		if got[i] != wantTimes[i] {
			t.Errorf("cadence times = %v, want %v", got, wantTimes)
			break
		}
	}
	for _, i := range []int{0, 1, 4, 5} {
		if cad.Points[i].Value != 0 {
			t.Errorf("pad %d = %v, want 0", i, cad.Points[i].Value)
		}
	}
	if cad.TimeDomain != hr.TimeDomain {
		t.Errorf("cadence TimeDomain = %v, heart rate %v", cad.TimeDomain, hr.TimeDomain)
	}
	if cad.Units != "RPM" || cad.Color != "Tan" || cad.Kind != KindArea {
		t.Errorf("cadence view = %+v", cad)
	}
}

func TestDispatchLaterStreamWidensAnchor(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{}))

	c.Dispatch(stream.Map{
		stream.HeartRate: recs(2000, 1000, 120.0, 125.0),
		stream.Power:     recs(1000, 1000, 200.0, 210.0, 220.0, 230.0),
	})

	anchor, _ := c.Anchor()
	if anchor != (Range{Start: 1000, End: 4000}) {
		t.Fatalf("Anchor() = %v, want [1000, 4000]", anchor)
	}

	hr := mustView(t, c, "heart-rate")
	if hr.Points[0].Time != 999 || hr.Points[len(hr.Points)-1].Time != 4001 {
		t.Errorf("heart rate not padded to widened anchor: %v", times(hr.Points))
	}
	if !equalPoints(r.handles["heart-rate"].series, hr.Points) {
		t.Errorf("renderer series %v, want %v", r.handles["heart-rate"].series, hr.Points)
	}
	if hr.TimeDomain != (Range{Start: 999, End: 4001}) {
		t.Errorf("TimeDomain = %v", hr.TimeDomain)
	}
}

func TestTimeSeriesShareExtent(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{ActivityType: "Running"}))

	c.Dispatch(stream.Map{
		stream.CurrentSpeed: recs(5000, 1000, 3.0, 3.1, 3.2),
		stream.Cadence:      recs(6000, 1000, 80.0, 81.0),
		stream.Events: []stream.Record{
			{"event": "lap", "timestamp": 20.0, "start_time": 10.0, "total_timer_time": 10.0},
			{"event": "lap", "timestamp": 35.0, "start_time": 25.0, "total_timer_time": 10.0},
		},
	})
	if err := c.Update(stream.Cadence, recs(40000, 1000, 82.0)); err != nil {
		t.Fatal(err)
	}
	if err := c.Update(stream.CurrentSpeed, recs(30000, 1000, 3.3)); err != nil {
		t.Fatal(err)
	}

	anchor, _ := c.Anchor()
	want := Range{Start: anchor.Start - 1, End: anchor.End + 1}
	for _, v := range c.Views() {
		if !v.Kind.TimeSeries() {
			continue
		}
		if v.TimeDomain != want {
			t.Errorf("%s TimeDomain = %v, want %v", v.ID, v.TimeDomain, want)
		}
		if first, last := v.Points[0].Time, v.Points[len(v.Points)-1].Time; first != want.Start || last != want.End {
			t.Errorf("%s spans [%d, %d], want %v", v.ID, first, last, want)
		}
		if !equalPoints(r.handles[v.ID].series, v.Points) {
			t.Errorf("%s renderer series diverged from view", v.ID)
		}
	}
}

func TestDispatchDegenerateStreams(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{}))

	report := c.Dispatch(stream.Map{
		stream.Temperature: recs(1000, 1000, 21.0),
		stream.Cadence:     nil,
	})

	if len(report.Views) != 0 || len(r.order) != 0 {
		t.Errorf("degenerate streams produced views: %v", report.Views)
	}
	if _, ok := c.Anchor(); ok {
		t.Error("degenerate streams must not set the anchor")
	}
	if len(report.Errors) != 0 {
		t.Errorf("unexpected errors: %v", report.Errors)
	}
}

func TestDispatchIgnoresUnknownStreams(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))

	report := c.Dispatch(stream.Map{
		"Altitude":       recs(1000, 1000, 1.0, 2.0),
		stream.HeartRate: recs(1000, 1000, 120.0, 121.0),
	})

	if len(report.Ignored) != 1 || report.Ignored[0] != "Altitude" {
		t.Errorf("Ignored = %v", report.Ignored)
	}
	if len(report.Views) != 1 || report.Views[0] != "heart-rate" {
		t.Errorf("Views = %v", report.Views)
	}
}

func TestDispatchSkipsMalformedRecords(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))

	records := append(recs(1000, 1000, 120.0, 121.0), stream.Record{"not-a-time": 5.0}, stream.Record{})
	report := c.Dispatch(stream.Map{stream.HeartRate: records})

	if report.Skipped[stream.HeartRate] != 2 {
		t.Errorf("Skipped = %v, want 2", report.Skipped)
	}
	if len(mustView(t, c, "heart-rate").Points) != 4 {
		t.Error("valid records should still be charted")
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{}))
	r.panicOn = "cadence"

	report := c.Dispatch(stream.Map{
		stream.HeartRate:   recs(1000, 1000, 120.0, 121.0),
		stream.Cadence:     recs(1000, 1000, 80.0, 81.0),
		stream.Temperature: recs(1000, 1000, 20.0, 20.5),
	})

	if report.Err(stream.Cadence) == nil {
		t.Error("expected cadence error")
	}
	if _, ok := r.handles["heart-rate"]; !ok {
		t.Error("heart rate should render despite cadence failure")
	}
	if _, ok := r.handles["temperature"]; !ok {
		t.Error("temperature should render despite cadence failure")
	}
}

func TestUpdatePreservesInteractiveState(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{}))
	c.Dispatch(stream.Map{stream.HeartRate: recs(1000, 1000, 120.0, 130.0, 140.0)})

	zoom := Transform{K: 2, X: 0.25}
	if err := c.SetTransform("heart-rate", zoom); err != nil {
		t.Fatal(err)
	}
	if err := c.SetBrush("heart-rate", Range{Start: 1500, End: 2500}); err != nil {
		t.Fatal(err)
	}

	if err := c.Update(stream.HeartRate, recs(4000, 1000, 180.0, 150.0)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	v := mustView(t, c, "heart-rate")
	if v.Transform != zoom {
		t.Errorf("Transform = %+v, want %+v", v.Transform, zoom)
	}
	if v.Brush == nil || *v.Brush != (Range{Start: 1500, End: 2500}) {
		t.Errorf("Brush = %v", v.Brush)
	}
	if v.TimeDomain.End != 5001 {
		t.Errorf("TimeDomain.End = %d, want 5001", v.TimeDomain.End)
	}
	if v.ValueDomain != (Extent{Min: 0, Max: 180}) {
		t.Errorf("ValueDomain = %+v", v.ValueDomain)
	}

	h := r.handles["heart-rate"]
	if !equalPoints(h.series, v.Points) {
		t.Errorf("renderer series = %v, want %v", h.series, v.Points)
	}
	for _, d := range h.deltas {
		if d.Reset {
			t.Error("an in-order append should not reset the series")
		}
	}
	if h.view.Transform != zoom {
		t.Error("renderer was handed a reset transform")
	}
}

func TestUpdateWithinBoundsKeepsTimeDomain(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))
	c.Dispatch(stream.Map{stream.HeartRate: recs(1000, 1000, 120.0, 130.0, 140.0)})
	before := mustView(t, c, "heart-rate").TimeDomain

	if err := c.Update(stream.HeartRate, recs(3000, 0, 141.0)); err != nil {
		t.Fatal(err)
	}

	after := mustView(t, c, "heart-rate")
	if after.TimeDomain != before {
		t.Errorf("TimeDomain = %v, want unchanged %v", after.TimeDomain, before)
	}
	if len(after.Points) != 6 {
		t.Errorf("len(Points) = %d, want 6", len(after.Points))
	}
}

func TestEnqueueAppliesInSequenceOrder(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{}))
	c.Dispatch(stream.Map{stream.HeartRate: recs(1000, 1000, 120.0, 125.0)})

	first := c.Reserve(stream.HeartRate)
	second := c.Reserve(stream.HeartRate)

	if err := c.Enqueue(Batch{Stream: stream.HeartRate, Seq: second, Records: recs(4000, 0, 140.0)}); err != nil {
		t.Fatal(err)
	}
	if last, _ := c.LastTimestamp(stream.HeartRate); last != 2000 {
		t.Fatalf("second batch applied before first: last = %d", last)
	}

	if err := c.Enqueue(Batch{Stream: stream.HeartRate, Seq: first, Records: recs(3000, 0, 130.0)}); err != nil {
		t.Fatal(err)
	}

	v := mustView(t, c, "heart-rate")
	want := []int64{999, 1000, 2000, 3000, 4000, 4001}
	got := times(v.Points)
	if len(got) != len(want) {
		t.Fatalf("times = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("times = %v, want %v", got, want)
		}
	}
	if !equalPoints(r.handles["heart-rate"].series, v.Points) {
		t.Error("renderer series diverged from view")
	}

	err := c.Enqueue(Batch{Stream: stream.HeartRate, Seq: first, Records: recs(9000, 0, 1.0)})
	if !errors.Is(err, ErrStaleBatch) {
		t.Errorf("replayed batch error = %v, want ErrStaleBatch", err)
	}
}

func TestEnqueueEmptyBatchReleasesSlot(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))
	c.Dispatch(stream.Map{stream.Power: recs(1000, 1000, 200.0, 210.0)})

	failed := c.Reserve(stream.Power)
	next := c.Reserve(stream.Power)

	if err := c.Enqueue(Batch{Stream: stream.Power, Seq: next, Records: recs(3000, 0, 220.0)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Enqueue(Batch{Stream: stream.Power, Seq: failed}); err != nil {
		t.Fatal(err)
	}

	if last, _ := c.LastTimestamp(stream.Power); last != 3000 {
		t.Errorf("LastTimestamp = %d, want 3000", last)
	}
}

func TestUpdateDropsRecordsAlreadyApplied(t *testing.T) {
	tests := []struct {
		name    string
		updates [][]stream.Record
		want    []float64
	}{
		{
			name:    "repeated latest sample",
			updates: [][]stream.Record{recs(2000, 0, 130.0)},
			want:    []float64{120, 130},
		},
		{
			name:    "late sample with the latest timestamp",
			updates: [][]stream.Record{recs(2000, 0, 130.0, 135.0)},
			want:    []float64{120, 130, 135},
		},
		{
			name:    "late sample repeated on the next poll",
			updates: [][]stream.Record{recs(2000, 0, 130.0, 135.0), recs(2000, 0, 130.0, 135.0)},
			want:    []float64{120, 130, 135},
		},
		{
			name:    "boundary moves with newer samples",
			updates: [][]stream.Record{recs(2000, 1000, 130.0, 140.0), recs(3000, 0, 140.0, 145.0)},
			want:    []float64{120, 130, 140, 145},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))
			c.Dispatch(stream.Map{stream.HeartRate: recs(1000, 1000, 120.0, 130.0)})

			for _, u := range tt.updates {
				if err := c.Update(stream.HeartRate, u); err != nil {
					t.Fatalf("Update() error = %v", err)
				}
			}

			v := mustView(t, c, "heart-rate")
			var got []float64
			for _, p := range v.Points[1 : len(v.Points)-1] {
				got = append(got, p.Value)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("values = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("values = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestUpdateChartsStreamOnceItHasEnoughSamples(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{}))

	if err := c.Update(stream.Temperature, recs(1000, 0, 20.0)); err != nil {
		t.Fatal(err)
	}
	if len(r.order) != 0 {
		t.Fatal("single sample should not be charted")
	}

	if err := c.Update(stream.Temperature, recs(2000, 0, 21.0)); err != nil {
		t.Fatal(err)
	}
	v := mustView(t, c, "temperature")
	if len(v.Points) != 4 {
		t.Errorf("Points = %v", v.Points)
	}
	if anchor, ok := c.Anchor(); !ok || anchor != (Range{Start: 1000, End: 2000}) {
		t.Errorf("Anchor() = %v, %v", anchor, ok)
	}
}

func TestUpdateUnknownStream(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))
	if err := c.Update("Altitude", recs(1000, 0, 1.0)); !errors.Is(err, ErrUnknownStream) {
		t.Errorf("Update() error = %v, want ErrUnknownStream", err)
	}
}

func TestGradeAdjustedPaceUpdatesContinueGradient(t *testing.T) {
	gradient := []float64{0, 0, 0.1, 0.1}
	ctx := activity.NewContext(activity.Options{ActivityType: "Running", Gradient: gradient})
	c, _ := newTestCoordinator(ctx)

	c.Dispatch(stream.Map{stream.CurrentSpeed: recs(1000, 1000, 3.0, 3.0)})
	if err := c.Update(stream.CurrentSpeed, recs(3000, 1000, 3.0, 3.0)); err != nil {
		t.Fatal(err)
	}

	all, _ := stream.Samples(stream.CurrentSpeed, recs(1000, 1000, 3.0, 3.0, 3.0, 3.0))
	want := analysis.GradeAdjustedPace(gradient, analysis.PaceSeries(analysis.Metric, all.Samples))

	v := mustView(t, c, "grade-adjusted-pace")
	got := v.Points[1 : len(v.Points)-1]
	if !equalPoints(got, want) {
		t.Errorf("GAP = %v, want %v", got, want)
	}
}

func TestSetTransformValidation(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))
	c.Dispatch(stream.Map{stream.HeartRate: recs(1000, 1000, 120.0, 121.0)})

	if err := c.SetTransform("heart-rate", Transform{K: 0.5}); err == nil {
		t.Error("expected error for zoom factor below 1")
	}
	if err := c.SetTransform("missing", Identity); !errors.Is(err, ErrUnknownView) {
		t.Errorf("error = %v, want ErrUnknownView", err)
	}

	if err := c.SetTransform("heart-rate", Transform{K: 4, X: 0.9}); err != nil {
		t.Fatal(err)
	}
	if got := mustView(t, c, "heart-rate").Transform.X; got != 0.75 {
		t.Errorf("X = %v, want clamped to 0.75", got)
	}

	if err := c.SetBrush("heart-rate", Range{Start: 2000, End: 1000}); err != nil {
		t.Fatal(err)
	}
	if b := mustView(t, c, "heart-rate").Brush; b.Start != 1000 || b.End != 2000 {
		t.Errorf("Brush = %v, want normalized", b)
	}
	if err := c.ClearBrush("heart-rate"); err != nil {
		t.Fatal(err)
	}
	if mustView(t, c, "heart-rate").Brush != nil {
		t.Error("brush not cleared")
	}
}

func TestDistanceFollowsSpeedUpdates(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{ActivityType: "Cycling"}))
	if _, _, ok := c.Distance(); ok {
		t.Fatal("distance known before any speed data")
	}

	c.Dispatch(stream.Map{stream.CurrentSpeed: recs(1000, 1000, 2.0, 2.0, 4.0)})
	if err := c.Update(stream.CurrentSpeed, recs(4000, 0, 4.0)); err != nil {
		t.Fatal(err)
	}

	meters, ms, ok := c.Distance()
	if !ok || meters != 9 || ms != 3000 {
		t.Errorf("Distance() = %v, %d, %v; want 9, 3000, true", meters, ms, ok)
	}
}

func TestDelete(t *testing.T) {
	rest := 60.0
	ctx := activity.NewContext(activity.Options{RestingHR: &rest, MaxHR: 180, Deletable: true})
	c, r := newTestCoordinator(ctx)
	c.Dispatch(stream.Map{
		stream.HeartRate:    recs(1000, 1000, 100.0, 150.0),
		stream.CurrentSpeed: recs(1000, 1000, 3.0, 3.1),
	})

	deleted, err := c.Delete(stream.HeartRate)
	if err != nil || !deleted {
		t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
	}
	if len(r.removed) != 2 {
		t.Errorf("removed = %v, want zone and area views", r.removed)
	}

	deleted, err = c.Delete(stream.HeartRate)
	if err != nil || deleted {
		t.Errorf("second Delete() = %v, %v; want false, nil", deleted, err)
	}

	if err := c.Update(stream.HeartRate, recs(3000, 0, 120.0)); !errors.Is(err, ErrDeleted) {
		t.Errorf("Update() after delete error = %v, want ErrDeleted", err)
	}
	c.Dispatch(stream.Map{stream.HeartRate: recs(1000, 1000, 100.0, 150.0)})
	if _, err := c.View("heart-rate"); !errors.Is(err, ErrUnknownView) {
		t.Error("deleted stream reappeared after dispatch")
	}

	if _, err := c.Delete(stream.CurrentSpeed); !errors.Is(err, ErrNotDeletable) {
		t.Errorf("Delete(speed) error = %v, want ErrNotDeletable", err)
	}
}

func TestDeleteRequiresDeletableContext(t *testing.T) {
	c, _ := newTestCoordinator(activity.NewContext(activity.Options{}))
	c.Dispatch(stream.Map{stream.Power: recs(1000, 1000, 200.0, 210.0)})

	if _, err := c.Delete(stream.Power); !errors.Is(err, ErrNotDeletable) {
		t.Errorf("Delete() error = %v, want ErrNotDeletable", err)
	}
	if deleted, err := c.Delete(stream.Cadence); deleted || err != nil {
		t.Errorf("Delete(never charted) = %v, %v", deleted, err)
	}
}

func TestCloseDropsLateBatches(t *testing.T) {
	c, r := newTestCoordinator(activity.NewContext(activity.Options{}))
	c.Dispatch(stream.Map{stream.HeartRate: recs(1000, 1000, 120.0, 121.0)})
	seq := c.Reserve(stream.HeartRate)

	c.Close()
	c.Close()

	err := c.Enqueue(Batch{Stream: stream.HeartRate, Seq: seq, Records: recs(3000, 0, 130.0)})
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue() after Close error = %v, want ErrClosed", err)
	}
	if len(r.removed) != 1 {
		t.Errorf("removed = %v, want one view", r.removed)
	}
	if len(c.Views()) != 0 {
		t.Error("Views() should be empty after Close")
	}
	if last, _ := c.LastTimestamp(stream.HeartRate); last != 2000 {
		t.Errorf("late batch was applied: last = %d", last)
	}
}
