package tui

import (
	"sync"
	"time"

	"streamcharts/internal/chart"
	"streamcharts/internal/stream"
)

// panel is the terminal copy of one rendered view
type panel struct {
	view    chart.View
	points  []stream.Point
	updated time.Time
}

// Board keeps the charts drawn in the terminal. It implements
// chart.Renderer; the App reads it back when painting.
type Board struct {
	mu     sync.Mutex
	panels map[string]*panel
	order  []string
}

// NewBoard creates an empty board
func NewBoard() *Board {
	return &Board{panels: make(map[string]*panel)}
}

// Render adds a view to the board
func (b *Board) Render(v chart.View) chart.UpdateHandle {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.panels[v.ID]; !ok {
		b.order = append(b.order, v.ID)
	}
	b.panels[v.ID] = &panel{
		view:    v,
		points:  append([]stream.Point(nil), v.Points...),
		updated: time.Now(),
	}
	return boardHandle{board: b, id: v.ID}
}

// Remove drops a view from the board
func (b *Board) Remove(v chart.View) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.panels, v.ID)
	for i, id := range b.order {
		if id == v.ID {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

type boardHandle struct {
	board *Board
	id    string
}

func (h boardHandle) Apply(v chart.View, d chart.Delta) {
	h.board.mu.Lock()
	defer h.board.mu.Unlock()

	p, ok := h.board.panels[h.id]
	if !ok {
		return
	}
	p.view = v
	p.points = d.ApplyTo(p.points)
	p.updated = time.Now()
}

// setInteraction mirrors the zoom and brush state of a view
func (b *Board) setInteraction(id string, t chart.Transform, brush *chart.Range) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.panels[id]; ok {
		p.view.Transform = t
		p.view.Brush = brush
	}
}

// snapshot returns copies of the panels listed in layout, skipping IDs the
// board does not hold. A nil layout uses the order views were rendered in.
func (b *Board) snapshot(layout []string) []panel {
	b.mu.Lock()
	defer b.mu.Unlock()

	if layout == nil {
		layout = b.order
	}
	out := make([]panel, 0, len(layout))
	for _, id := range layout {
		p, ok := b.panels[id]
		if !ok {
			continue
		}
		out = append(out, panel{
			view:    p.view,
			points:  append([]stream.Point(nil), p.points...),
			updated: p.updated,
		})
	}
	return out
}

// Len returns the number of panels on the board
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}
