package chart

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"streamcharts/internal/activity"
	"streamcharts/internal/analysis"
	"streamcharts/internal/stream"
)

// Coordinator owns the charts of one opened activity. It keeps every time
// series aligned on the activity anchor, applies incremental batches in
// order per stream, and hands renderers only what changed.
//
// Renderer methods are called with the coordinator lock held and must not
// call back into the coordinator.
type Coordinator struct {
	mu sync.Mutex

	ctx      activity.Context
	renderer Renderer
	logger   *slog.Logger
	resample bool

	anchor     stream.Anchor
	normalizer *stream.Normalizer
	odometer   analysis.Odometer

	streams     map[string]*streamState
	streamOrder []string
	views       map[string]*series
	closed      bool
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger sets the logger used for diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithGradientResampling resamples the gradient curve to the length of the
// pace series instead of pairing them index by index
func WithGradientResampling(enabled bool) Option {
	return func(c *Coordinator) {
		c.resample = enabled
	}
}

// NewCoordinator creates the coordinator for one activity
func NewCoordinator(ctx activity.Context, r Renderer, opts ...Option) *Coordinator {
	if r == nil {
		r = NopRenderer{}
	}
	c := &Coordinator{
		ctx:      ctx,
		renderer: r,
		logger:   slog.Default(),
		streams:  make(map[string]*streamState),
		views:    make(map[string]*series),
	}
	c.normalizer = stream.NewNormalizer(&c.anchor)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// streamState tracks one named stream across dispatch and updates
type streamState struct {
	name    string
	series  []*series
	count   int   // samples received so far
	last    int64 // latest sample timestamp
	deleted bool

	// Records applied at the latest raw timestamp, by fingerprint. Sources
	// return them again on the next poll.
	edge     int64
	edgeSeen map[string]struct{}

	next    uint64 // next sequence number handed out by Reserve
	applied uint64 // sequence number of the next batch to apply
	pending map[uint64][]stream.Record
}

// series is one chart definition of a stream. It accumulates data from the
// first batch on and is rendered once it has enough data to show.
type series struct {
	view     View
	data     []stream.Point // unpadded
	values   Extent         // running extent of data, including zero
	edges    padEdges
	rendered bool
	handle   UpdateHandle

	minPoints int
	derive    func(b batch, have int) []stream.Point
	count     func(b batch, v *View)
}

func (s *series) chartable(st *streamState) bool {
	if st.count < 2 {
		return false
	}
	if s.view.Kind == KindBars {
		for _, b := range s.view.Buckets {
			if b > 0 {
				return true
			}
		}
		return false
	}
	return len(s.data) >= s.minPoints
}

// Batch is a sequenced fragment of new records for one stream
type Batch struct {
	Stream  string
	Seq     uint64
	Records []stream.Record
}

func (c *Coordinator) stream(name string) *streamState {
	st, ok := c.streams[name]
	if !ok {
		st = &streamState{name: name, pending: make(map[uint64][]stream.Record)}
		c.streams[name] = st
		c.streamOrder = append(c.streamOrder, name)
		c.sortStreams()
	}
	return st
}

// sortStreams keeps layout in vocabulary order no matter which stream
// arrived first
func (c *Coordinator) sortStreams() {
	rank := make(map[string]int, len(stream.Vocabulary))
	for i, n := range stream.Vocabulary {
		rank[n] = i
	}
	sort.SliceStable(c.streamOrder, func(i, j int) bool {
		return rank[c.streamOrder[i]] < rank[c.streamOrder[j]]
	})
}

// Reserve hands out the sequence number for the next batch of a stream.
// Fetches started in order can complete in any order; Enqueue applies them
// by sequence number.
func (c *Coordinator) Reserve(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.stream(name)
	seq := st.next
	st.next++
	return seq
}

// Enqueue queues a batch and applies every batch of the stream that is now
// next in sequence. A fetch that failed should still enqueue its sequence
// number with no records so later batches are not held back.
func (c *Coordinator) Enqueue(b Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if !stream.Known(b.Stream) {
		c.logger.Warn("ignoring update for unknown stream", "stream", b.Stream)
		return fmt.Errorf("%w: %q", ErrUnknownStream, b.Stream)
	}

	st := c.stream(b.Stream)
	if st.deleted {
		return ErrDeleted
	}
	if b.Seq < st.applied {
		return fmt.Errorf("%w: %s batch %d", ErrStaleBatch, b.Stream, b.Seq)
	}
	if b.Seq >= st.next {
		st.next = b.Seq + 1
	}
	st.pending[b.Seq] = b.Records

	var errs []error
	for {
		records, ok := st.pending[st.applied]
		if !ok {
			break
		}
		delete(st.pending, st.applied)
		st.applied++

		if len(records) == 0 {
			continue
		}
		if _, _, err := c.ingestSafe(st, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Update appends new records to a stream in arrival order
func (c *Coordinator) Update(name string, records []stream.Record) error {
	seq := c.Reserve(name)
	return c.Enqueue(Batch{Stream: name, Seq: seq, Records: records})
}

// unseen drops records that were already applied at the latest timestamp
// and records the ones that now make up that timestamp. Records sharing a
// timestamp within one batch are all kept.
func (st *streamState) unseen(records []stream.Record) []stream.Record {
	kept := make([]stream.Record, 0, len(records))
	for _, rec := range records {
		if ts, ok := stream.RecordTime(st.name, rec); ok && st.edgeSeen != nil && ts == st.edge {
			if _, dup := st.edgeSeen[fingerprint(rec)]; dup {
				continue
			}
		}
		kept = append(kept, rec)
	}

	for _, rec := range kept {
		ts, ok := stream.RecordTime(st.name, rec)
		switch {
		case !ok:
		case st.edgeSeen == nil || ts > st.edge:
			st.edge = ts
			st.edgeSeen = map[string]struct{}{fingerprint(rec): {}}
		case ts == st.edge:
			st.edgeSeen[fingerprint(rec)] = struct{}{}
		}
	}
	return kept
}

// fingerprint identifies a raw record by its content. fmt prints map keys
// in sorted order.
func fingerprint(rec stream.Record) string {
	return fmt.Sprint(map[string]any(rec))
}

// ingestSafe runs ingest and turns a panic in derivation or rendering into
// an error for this stream only
func (c *Coordinator) ingestSafe(st *streamState, records []stream.Record) (ids []string, skipped int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stream %q: panic: %v", st.name, r)
			c.logger.Error("stream processing failed", "stream", st.name, "panic", r)
		}
	}()
	return c.ingest(st, records)
}

// ingest derives every series of the stream from a batch, widens the
// anchor, and renders or updates the affected views. It returns the IDs of
// views rendered for the first time.
func (c *Coordinator) ingest(st *streamState, records []stream.Record) ([]string, int, error) {
	if st.series == nil {
		defs, err := c.define(st.name)
		if err != nil {
			return nil, 0, err
		}
		for _, s := range defs {
			s.view.StreamID = st.name
		}
		st.series = defs
	}

	records = st.unseen(records)
	if len(records) == 0 {
		return nil, 0, nil
	}

	b, skipped := c.parse(st.name, records)
	if skipped > 0 {
		c.logger.Debug("skipped malformed records", "stream", st.name, "skipped", skipped)
	}
	st.count += b.size
	if st.name == stream.CurrentSpeed {
		c.odometer.Add(numeric(b.samples.Samples))
	}
	if b.size > 0 && b.last > st.last {
		st.last = b.last
	}

	type change struct {
		s     *series
		added []stream.Point
	}
	changes := make([]change, 0, len(st.series))
	for _, s := range st.series {
		switch {
		case s.count != nil:
			s.count(b, &s.view)
			changes = append(changes, change{s: s})
		case s.derive != nil:
			changes = append(changes, change{s: s, added: s.derive(b, len(s.data))})
		}
	}

	// Widen the anchor before anything is drawn so new and existing views
	// pad to the same edges
	for _, ch := range changes {
		if len(ch.added) == 0 || st.count < 2 || len(ch.s.data)+len(ch.added) < ch.s.minPoints {
			continue
		}
		first, last := spanOf(ch.s.data, ch.added)
		if !c.anchor.IsSet() {
			if last > first {
				c.anchor.SetOnce(first, last)
			}
			continue
		}
		c.widen(first, last)
	}

	var rendered []string
	for _, ch := range changes {
		s := ch.s
		reset := false
		if len(ch.added) > 0 {
			if len(s.data) > 0 && ch.added[0].Time < s.data[len(s.data)-1].Time {
				s.data = mergeSorted(s.data, ch.added)
				reset = true
			} else {
				s.data = append(s.data, ch.added...)
			}
			for _, p := range ch.added {
				s.values = growExtent(s.values, p.Value)
			}
		}

		switch {
		case !s.rendered:
			if s.chartable(st) {
				c.render(s)
				rendered = append(rendered, s.view.ID)
			}
		case s.view.Kind == KindBars:
			s.view.ValueDomain = bucketExtent(s.view.Buckets)
			s.handle.Apply(s.view.header(), Delta{Reset: true})
		case reset:
			c.redraw(s)
		case len(ch.added) > 0:
			c.appendPoints(s, ch.added)
		}
	}

	return rendered, skipped, nil
}

// render draws a series for the first time
func (c *Coordinator) render(s *series) {
	if s.view.Kind.TimeSeries() {
		s.view.Points, s.edges = pad(s.data, &c.anchor)
		s.view.TimeDomain, _ = extent(s.view.Points)
		s.view.TimeDomain = c.withAnchor(s.view.TimeDomain)
		s.view.ValueDomain = s.values
	} else {
		s.view.ValueDomain = bucketExtent(s.view.Buckets)
	}
	if s.view.Transform.K == 0 {
		s.view.Transform = Identity
	}
	s.handle = c.renderer.Render(s.view.clone())
	if s.handle == nil {
		s.handle = nopHandle{}
	}
	s.rendered = true
	c.views[s.view.ID] = s
}

// redraw repads the whole series and sends it as a reset
func (c *Coordinator) redraw(s *series) {
	s.view.Points, s.edges = pad(s.data, &c.anchor)
	r, _ := extent(s.view.Points)
	s.view.TimeDomain = c.withAnchor(s.view.TimeDomain.union(r))
	s.view.ValueDomain = s.values
	s.handle.Apply(s.view.header(), Delta{Reset: true, Points: append([]stream.Point(nil), s.view.Points...)})
}

// appendPoints extends a rendered series that only grew at its end: the old
// trailing pads are retracted, the new points and fresh pads appended
func (c *Coordinator) appendPoints(s *series, added []stream.Point) {
	trail := trailingPads(s.data[len(s.data)-1].Time, &c.anchor)

	d := Delta{Retract: s.edges.trailing}
	d.Points = make([]stream.Point, 0, len(added)+len(trail))
	d.Points = append(d.Points, added...)
	d.Points = append(d.Points, trail...)

	s.view.Points = d.ApplyTo(s.view.Points)
	s.edges.trailing = len(trail)

	r := Range{Start: s.view.Points[0].Time, End: s.view.Points[len(s.view.Points)-1].Time}
	s.view.TimeDomain = c.withAnchor(s.view.TimeDomain.union(r))
	s.view.ValueDomain = s.values
	s.handle.Apply(s.view.header(), d)
}

// widen extends the anchor and moves the anchor pads of every rendered
// time series to the new edges
func (c *Coordinator) widen(start, end int64) {
	startMoved, endMoved := c.anchor.Widen(start, end)
	if !startMoved && !endMoved {
		return
	}
	for _, name := range c.streamOrder {
		for _, s := range c.streams[name].series {
			if !s.rendered || !s.view.Kind.TimeSeries() || len(s.data) == 0 {
				continue
			}
			if startMoved {
				c.redraw(s)
				continue
			}
			trail := trailingPads(s.data[len(s.data)-1].Time, &c.anchor)
			d := Delta{Retract: s.edges.trailing, Points: trail}
			s.view.Points = d.ApplyTo(s.view.Points)
			s.edges.trailing = len(trail)
			s.view.TimeDomain = c.withAnchor(s.view.TimeDomain)
			s.handle.Apply(s.view.header(), d)
		}
	}
}

// withAnchor widens a time domain to the padded anchor, so every time series
// of the activity shares one horizontal extent
func (c *Coordinator) withAnchor(r Range) Range {
	if a, ok := paddedAnchor(&c.anchor); ok {
		return r.union(a)
	}
	return r
}

// spanOf returns the earliest and latest timestamp of a sorted series
// extended by a batch of new points
func spanOf(data, added []stream.Point) (int64, int64) {
	first, last := added[0].Time, added[0].Time
	for _, p := range added {
		if p.Time < first {
			first = p.Time
		}
		if p.Time > last {
			last = p.Time
		}
	}
	if len(data) > 0 {
		if data[0].Time < first {
			first = data[0].Time
		}
		if data[len(data)-1].Time > last {
			last = data[len(data)-1].Time
		}
	}
	return first, last
}

func growExtent(e Extent, v float64) Extent {
	if v < e.Min {
		e.Min = v
	}
	if v > e.Max {
		e.Max = v
	}
	return e
}

// mergeSorted merges two time ordered series. Points of a with the same
// timestamp as points of b stay in front of them.
func mergeSorted(a, b []stream.Point) []stream.Point {
	out := make([]stream.Point, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if b[j].Time < a[i].Time {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// SetTransform records the zoom and pan state of a view
func (c *Coordinator) SetTransform(id string, t Transform) error {
	if t.K < 1 {
		return fmt.Errorf("invalid zoom factor %v", t.K)
	}
	if t.X < 0 {
		t.X = 0
	}
	if limit := 1 - 1/t.K; t.X > limit {
		t.X = limit
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.views[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	s.view.Transform = t
	return nil
}

// SetBrush records a selected sub-range of a view's time axis
func (c *Coordinator) SetBrush(id string, r Range) error {
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.views[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	s.view.Brush = &r
	return nil
}

// ClearBrush removes the brush selection of a view
func (c *Coordinator) ClearBrush(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.views[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	s.view.Brush = nil
	return nil
}

// Delete removes every view of a stream and keeps the stream from coming
// back. It reports true only for the call that actually removed the
// views, so the caller knows when to delete the stored data.
func (c *Coordinator) Delete(name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}
	st, ok := c.streams[name]
	if !ok || st.deleted {
		return false, nil
	}

	deletable := false
	for _, s := range st.series {
		if s.rendered && s.view.Deletable {
			deletable = true
		}
	}
	if !deletable {
		return false, fmt.Errorf("%w: %s", ErrNotDeletable, name)
	}

	for _, s := range st.series {
		if s.rendered {
			c.renderer.Remove(s.view.header())
			delete(c.views, s.view.ID)
		}
	}
	st.series = nil
	st.pending = make(map[uint64][]stream.Record)
	st.deleted = true

	c.logger.Info("deleted stream", "stream", name)
	return true, nil
}

// Close tears the coordinator down. Views are removed from the renderer and
// batches arriving afterwards are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for _, name := range c.streamOrder {
		st := c.streams[name]
		for _, s := range st.series {
			if s.rendered {
				c.renderer.Remove(s.view.header())
			}
		}
		st.pending = nil
	}
	c.views = make(map[string]*series)
}

// Closed reports whether Close was called
func (c *Coordinator) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Views returns copies of all rendered views in layout order
func (c *Coordinator) Views() []View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var views []View
	for _, name := range c.streamOrder {
		for _, s := range c.streams[name].series {
			if s.rendered {
				views = append(views, s.view.clone())
			}
		}
	}
	return views
}

// Layout returns the IDs of all rendered views in layout order
func (c *Coordinator) Layout() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var ids []string
	for _, name := range c.streamOrder {
		for _, s := range c.streams[name].series {
			if s.rendered {
				ids = append(ids, s.view.ID)
			}
		}
	}
	return ids
}

// View returns a copy of one rendered view
func (c *Coordinator) View(id string) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.views[id]
	if !ok {
		return View{}, fmt.Errorf("%w: %s", ErrUnknownView, id)
	}
	return s.view.clone(), nil
}

// LastTimestamp returns the latest sample time received for a stream
func (c *Coordinator) LastTimestamp(name string) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.streams[name]
	if !ok || st.count == 0 {
		return 0, false
	}
	return st.last, true
}

// Distance returns the meters covered according to the speed stream and the
// time between its first and latest sample
func (c *Coordinator) Distance() (meters float64, durationMs int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.odometer.DurationMs()
	return c.odometer.Meters(), d, d > 0
}

// Anchor returns the activity time span once it is known
func (c *Coordinator) Anchor() (Range, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.anchor.IsSet() {
		return Range{}, false
	}
	return Range{Start: c.anchor.Start, End: c.anchor.End}, true
}

// Tracked returns the streams that have received samples and were not
// deleted, in vocabulary order. These are the streams worth polling.
func (c *Coordinator) Tracked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var names []string
	for _, name := range c.streamOrder {
		if st := c.streams[name]; st.count > 0 && !st.deleted {
			names = append(names, name)
		}
	}
	return names
}
