package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"streamcharts/internal/activity"
	"streamcharts/internal/analysis"
	"streamcharts/internal/chart"
	"streamcharts/internal/config"
	"streamcharts/internal/stream"
)

// Source fetches the sensor streams of an activity
type Source interface {
	FetchStreams(ctx context.Context, activityID string) (stream.Map, error)
	FetchSince(ctx context.Context, activityID, sensor string, sinceMs int64) ([]stream.Record, error)
}

// MetaSource looks up the description of an activity
type MetaSource interface {
	Meta(ctx context.Context, activityID string) (activity.Meta, error)
}

// SensorDeleter removes one stream of an activity from where it is stored
type SensorDeleter interface {
	DeleteSensorData(ctx context.Context, activityID, sensor string) error
}

// RateLimited is implemented by sources that report their remaining request
// budget
type RateLimited interface {
	RateLimitRemaining() int
}

// ActivityView is one opened activity: its context, its charts, and the
// collaborators that feed and edit them
type ActivityView struct {
	meta    activity.Meta
	actx    activity.Context
	source  Source
	deleter SensorDeleter
	coord   *chart.Coordinator
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// ViewOptions configures Open
type ViewOptions struct {
	Config   *config.Config
	Source   Source
	Deleter  SensorDeleter // nil makes every chart read-only
	Renderer chart.Renderer
	Logger   *slog.Logger
}

// NewContext builds the activity context from the stored description and
// the athlete settings
func NewContext(meta activity.Meta, cfg *config.Config, deletable bool) activity.Context {
	return activity.NewContext(activity.Options{
		UnitSystem:   cfg.UnitSystem(),
		RestingHR:    cfg.Athlete.RestingHR,
		MaxHR:        cfg.Athlete.MaxHR,
		FTP:          cfg.Athlete.FTP,
		ActivityType: meta.Type,
		Gradient:     meta.Gradient,
		Deletable:    deletable,
	})
}

// Open creates the view of one activity. Nothing is fetched until Load.
func Open(ctx context.Context, meta activity.Meta, opts ViewOptions) *ActivityView {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("activity", meta.ID)

	cfg := opts.Config
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}

	deletable := cfg.Charts.Deletable && opts.Deleter != nil
	actx := NewContext(meta, cfg, deletable)

	vctx, cancel := context.WithCancel(ctx)
	return &ActivityView{
		meta:    meta,
		actx:    actx,
		source:  opts.Source,
		deleter: opts.Deleter,
		coord: chart.NewCoordinator(actx, opts.Renderer,
			chart.WithLogger(logger),
			chart.WithGradientResampling(cfg.Charts.ResampleGradient)),
		logger: logger,
		ctx:    vctx,
		cancel: cancel,
	}
}

// Meta returns the activity description
func (v *ActivityView) Meta() activity.Meta {
	return v.meta
}

// Coordinator returns the chart coordinator of the activity
func (v *ActivityView) Coordinator() *chart.Coordinator {
	return v.coord
}

// Load fetches every stream of the activity and charts it
func (v *ActivityView) Load() (chart.Report, error) {
	m, err := v.source.FetchStreams(v.ctx, v.meta.ID)
	if err != nil {
		return chart.Report{}, fmt.Errorf("loading streams: %w", err)
	}
	if v.ctx.Err() != nil {
		return chart.Report{}, v.ctx.Err()
	}

	report := v.coord.Dispatch(m)
	for name, err := range report.Errors {
		v.logger.Error("stream failed", "stream", name, "error", err)
	}
	for name, n := range report.Skipped {
		v.logger.Warn("skipped malformed records", "stream", name, "count", n)
	}
	return report, nil
}

// PollResult summarizes one polling round
type PollResult struct {
	Polled []string
	Errors map[string]string // fetch or update failures, by stream
}

// PollOnce fetches what was recorded since the last sample of every tracked
// stream and applies it. Fetches run concurrently; the coordinator applies
// each stream's batches in the order they were requested.
func (v *ActivityView) PollOnce() PollResult {
	result := PollResult{Errors: make(map[string]string)}
	if v.ctx.Err() != nil || v.coord.Closed() {
		return result
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range v.coord.Tracked() {
		since, _ := v.coord.LastTimestamp(name)
		seq := v.coord.Reserve(name)
		result.Polled = append(result.Polled, name)

		wg.Add(1)
		go func(name string, seq uint64, since int64) {
			defer wg.Done()

			records, fetchErr := v.source.FetchSince(v.ctx, v.meta.ID, name, since)
			if fetchErr != nil {
				records = nil
			}
			err := v.coord.Enqueue(chart.Batch{Stream: name, Seq: seq, Records: records})
			if errors.Is(err, chart.ErrClosed) || errors.Is(err, chart.ErrDeleted) {
				return
			}
			if fetchErr == nil {
				fetchErr = err
			}
			if fetchErr != nil {
				v.logger.Warn("poll failed", "stream", name, "error", fetchErr)
				mu.Lock()
				result.Errors[name] = fetchErr.Error()
				mu.Unlock()
			}
		}(name, seq, since)
	}
	wg.Wait()

	return result
}

// DeleteStream removes a stream's charts and then its stored data. The
// stored data is deleted once even if the charts are asked to go twice.
func (v *ActivityView) DeleteStream(name string) error {
	deleted, err := v.coord.Delete(name)
	if err != nil {
		return err
	}
	if !deleted || v.deleter == nil {
		return nil
	}

	if err := v.deleter.DeleteSensorData(v.ctx, v.meta.ID, name); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

// Summary formats the distance, average speed and, for foot based
// activities, average pace covered by the speed stream. It is empty until
// the stream spans some time.
func (v *ActivityView) Summary() string {
	meters, ms, ok := v.coord.Distance()
	if !ok {
		return ""
	}

	u := v.actx.UnitSystem
	parts := []string{analysis.DistanceString(u, meters)}
	if v.actx.FootBased {
		parts = append(parts, analysis.PaceString(u, meters, ms))
	}
	parts = append(parts, analysis.SpeedString(u, meters, ms))
	return strings.Join(parts, " · ")
}

// RateLimitRemaining returns the request budget left at the source, when
// the source reports one
func (v *ActivityView) RateLimitRemaining() (int, bool) {
	rl, ok := v.source.(RateLimited)
	if !ok {
		return 0, false
	}
	return rl.RateLimitRemaining(), true
}

// Close stops pending fetches and tears the charts down
func (v *ActivityView) Close() {
	v.cancel()
	v.coord.Close()
}
