// Package fitfile imports recorded activities from Garmin FIT files
package fitfile

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/tormoder/fit"

	"streamcharts/internal/activity"
	"streamcharts/internal/analysis"
	"streamcharts/internal/stream"
)

// Import is an activity decoded from a FIT file
type Import struct {
	Meta    activity.Meta
	Streams stream.Map
}

// Load decodes the FIT activity file at path
func Load(path string) (*Import, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fit file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a FIT activity file into a stream map. Sensor values equal to
// the FIT invalid sentinel are left out, so a sensor that was never paired
// yields no stream at all.
func Decode(r io.Reader) (*Import, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding fit file: %w", err)
	}

	af, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("reading activity: %w", err)
	}

	imp := &Import{Streams: stream.Map{}}

	records := make([]*fit.RecordMsg, 0, len(af.Records))
	for _, rec := range af.Records {
		if rec != nil && validTime(rec.Timestamp) {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	var distance, altitude []float64
	for _, rec := range records {
		ts := rec.Timestamp.UnixMilli()

		if rec.HeartRate != math.MaxUint8 {
			imp.add(stream.HeartRate, ts, float64(rec.HeartRate))
		}
		if rec.Power != math.MaxUint16 {
			imp.add(stream.Power, ts, float64(rec.Power))
		}
		if rec.Cadence != math.MaxUint8 {
			imp.add(stream.Cadence, ts, float64(rec.Cadence))
		}
		if rec.Temperature != math.MaxInt8 {
			imp.add(stream.Temperature, ts, float64(rec.Temperature))
		}
		if speed, ok := recordSpeed(rec); ok {
			imp.add(stream.CurrentSpeed, ts, speed)

			// One entry per speed sample keeps the gradient index aligned
			// with pace; gaps are filled below
			distance = append(distance, rec.GetDistanceScaled())
			altitude = append(altitude, recordAltitude(rec))
		}
	}

	for _, lap := range af.Laps {
		if lap == nil || !validTime(lap.Timestamp) {
			continue
		}
		imp.Streams[stream.Events] = append(imp.Streams[stream.Events], eventRecord("lap",
			lap.Timestamp, lap.StartTime, lap.GetTotalTimerTimeScaled()))
	}
	for _, length := range af.Lengths {
		if length == nil || !validTime(length.Timestamp) {
			continue
		}
		rec := eventRecord("length", length.Timestamp, length.StartTime, length.GetTotalTimerTimeScaled())
		if length.TotalStrokes != math.MaxUint16 {
			rec["total_strokes"] = float64(length.TotalStrokes)
		}
		imp.Streams[stream.Events] = append(imp.Streams[stream.Events], rec)
	}

	imp.Meta = meta(af, records)
	if len(distance) > 1 && fillGaps(distance) && fillGaps(altitude) {
		g, err := analysis.GradientFromTrack(distance, altitude)
		if err != nil {
			return nil, err
		}
		imp.Meta.Gradient = g
	}

	return imp, nil
}

func (imp *Import) add(name string, ts int64, v float64) {
	imp.Streams[name] = append(imp.Streams[name], stream.Record{strconv.FormatInt(ts, 10): v})
}

// eventRecord builds an Events record. Event times are unix seconds.
func eventRecord(kind string, end, start time.Time, timer float64) stream.Record {
	rec := stream.Record{
		"event":     kind,
		"timestamp": float64(end.Unix()),
	}
	if validTime(start) {
		rec["start_time"] = float64(start.Unix())
	}
	if finite(timer) {
		rec["total_timer_time"] = timer
	}
	return rec
}

func meta(af *fit.ActivityFile, records []*fit.RecordMsg) activity.Meta {
	var m activity.Meta
	if len(records) > 0 {
		m.Start = records[0].Timestamp
	}
	if len(af.Sessions) > 0 && af.Sessions[0] != nil {
		s := af.Sessions[0]
		m.Type = activityType(s.Sport, s.SubSport)
		if validTime(s.StartTime) {
			m.Start = s.StartTime
		}
	}
	if !m.Start.IsZero() {
		m.Name = fmt.Sprintf("%s %s", m.Type, m.Start.Local().Format("2006-01-02 15:04"))
	}
	return m
}

// activityType maps FIT sport codes onto activity type names
func activityType(sport fit.Sport, sub fit.SubSport) string {
	switch sport {
	case fit.SportRunning:
		switch sub {
		case fit.SubSportTrail:
			return "Trail Running"
		case fit.SubSportTreadmill, fit.SubSportIndoorRunning:
			return "Indoor Running"
		case fit.SubSportVirtualActivity:
			return "Virtual Running"
		}
		return "Running"
	case fit.SportCycling:
		if sub == fit.SubSportVirtualActivity || sub == fit.SubSportIndoorCycling {
			return "Virtual Cycling"
		}
		return "Cycling"
	case fit.SportWalking:
		return "Walking"
	case fit.SportHiking:
		return "Hiking"
	case fit.SportSwimming:
		return "Swimming"
	}
	return "Workout"
}

func recordSpeed(rec *fit.RecordMsg) (float64, bool) {
	if v := rec.GetEnhancedSpeedScaled(); finite(v) && v >= 0 {
		return v, true
	}
	if v := rec.GetSpeedScaled(); finite(v) && v >= 0 {
		return v, true
	}
	return 0, false
}

func recordAltitude(rec *fit.RecordMsg) float64 {
	if v := rec.GetEnhancedAltitudeScaled(); finite(v) {
		return v
	}
	return rec.GetAltitudeScaled()
}

// fillGaps replaces missing values with the previous valid one, and leading
// ones with the first valid one, which gives a zero gradient across a gap.
// It reports false when no value is valid.
func fillGaps(vals []float64) bool {
	first := -1
	for i, v := range vals {
		if finite(v) {
			first = i
			break
		}
	}
	if first < 0 {
		return false
	}

	prev := vals[first]
	for i := range vals {
		if finite(vals[i]) {
			prev = vals[i]
		} else {
			vals[i] = prev
		}
	}
	return true
}

func validTime(t time.Time) bool {
	return !t.IsZero() && !fit.IsBaseTime(t)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
