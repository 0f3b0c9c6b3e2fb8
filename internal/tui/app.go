package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"streamcharts/internal/chart"
	"streamcharts/internal/service"
)

const (
	maxZoom    = 64.0
	panStep    = 0.25 // fraction of the visible window
	chromeRows = 6
)

// App is the root Bubble Tea model: the charts of one activity
type App struct {
	view     *service.ActivityView
	board    *Board
	live     bool
	interval time.Duration

	viewport viewport.Model
	ready    bool
	width    int
	height   int

	selected      int
	confirmDelete bool
	showHelp      bool
	loading       bool
	polling       bool
	lastPoll      time.Time

	status string
	err    error
}

// NewApp creates the app for an opened activity. board must be the
// renderer the activity view was opened with.
func NewApp(view *service.ActivityView, board *Board, live bool, interval time.Duration) *App {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &App{
		view:     view,
		board:    board,
		live:     live,
		interval: interval,
		loading:  true,
	}
}

type loadedMsg struct {
	report chart.Report
	err    error
}

type tickMsg time.Time

type polledMsg struct {
	result service.PollResult
	at     time.Time
}

type deletedMsg struct {
	stream string
	err    error
}

// Init starts the first load
func (a *App) Init() tea.Cmd {
	return a.load()
}

func (a *App) load() tea.Cmd {
	return func() tea.Msg {
		report, err := a.view.Load()
		return loadedMsg{report: report, err: err}
	}
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(a.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) poll() tea.Cmd {
	a.polling = true
	return func() tea.Msg {
		return polledMsg{result: a.view.PollOnce(), at: time.Now()}
	}
}

func (a *App) deleteStream(name string) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{stream: name, err: a.view.DeleteStream(name)}
	}
}

// Update handles messages
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if !a.ready {
			a.viewport = viewport.New(msg.Width, msg.Height-chromeRows)
			a.ready = true
		} else {
			a.viewport.Width = msg.Width
			a.viewport.Height = msg.Height - chromeRows
		}
		a.refresh()
		return a, nil

	case loadedMsg:
		a.loading = false
		a.lastPoll = time.Now()
		if msg.err != nil {
			a.err = msg.err
			a.status = msg.err.Error()
		} else {
			a.status = fmt.Sprintf("%d charts", len(msg.report.Views))
			if n := len(msg.report.Errors); n > 0 {
				a.status += fmt.Sprintf(", %d streams failed", n)
			}
		}
		a.refresh()
		if a.live {
			return a, a.tick()
		}
		return a, nil

	case tickMsg:
		if a.polling {
			return a, a.tick()
		}
		return a, a.poll()

	case polledMsg:
		a.polling = false
		a.lastPoll = msg.at
		a.status = pollStatus(msg.result)
		a.refresh()
		if a.live {
			return a, a.tick()
		}
		return a, nil

	case deletedMsg:
		if msg.err != nil {
			a.status = fmt.Sprintf("delete %s: %v", msg.stream, msg.err)
		} else {
			a.status = "deleted " + msg.stream
		}
		a.clampSelection()
		a.refresh()
		return a, nil

	case tea.KeyMsg:
		if handled, cmd := a.handleKey(msg); handled {
			a.refresh()
			return a, cmd
		}
	}

	a.viewport, cmd = a.viewport.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if a.confirmDelete {
		a.confirmDelete = false
		if msg.String() == "y" {
			if v, ok := a.selectedView(); ok {
				return true, a.deleteStream(v.StreamID)
			}
		}
		a.status = "delete cancelled"
		return true, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		a.view.Close()
		return true, tea.Quit
	case "?":
		a.showHelp = !a.showHelp
	case "tab":
		a.selected++
		a.clampSelection()
		a.scrollToSelected()
	case "shift+tab":
		a.selected--
		a.clampSelection()
		a.scrollToSelected()
	case "+", "=":
		a.zoom(2)
	case "-":
		a.zoom(0.5)
	case "h", "left":
		a.pan(-1)
	case "l", "right":
		a.pan(1)
	case "b":
		a.brush()
	case "esc":
		a.clearBrush()
	case "d":
		if v, ok := a.selectedView(); ok && v.Deletable {
			a.confirmDelete = true
			a.status = fmt.Sprintf("delete %s? [y/N]", v.StreamID)
		} else {
			a.status = "this chart cannot be deleted"
		}
	case "r":
		if !a.polling && !a.loading {
			return true, a.poll()
		}
	default:
		return false, nil
	}
	return true, nil
}

func (a *App) selectedView() (chart.View, bool) {
	ids := a.view.Coordinator().Layout()
	if a.selected < 0 || a.selected >= len(ids) {
		return chart.View{}, false
	}
	v, err := a.view.Coordinator().View(ids[a.selected])
	return v, err == nil
}

func (a *App) clampSelection() {
	n := len(a.view.Coordinator().Layout())
	if a.selected >= n {
		a.selected = n - 1
	}
	if a.selected < 0 {
		a.selected = 0
	}
}

// setTransform stores a new transform and mirrors the clamped result on
// the board
func (a *App) setTransform(v chart.View, t chart.Transform) {
	coord := a.view.Coordinator()
	if err := coord.SetTransform(v.ID, t); err != nil {
		a.status = err.Error()
		return
	}
	if updated, err := coord.View(v.ID); err == nil {
		a.board.setInteraction(v.ID, updated.Transform, updated.Brush)
	}
}

func (a *App) zoom(factor float64) {
	v, ok := a.selectedView()
	if !ok || !v.Kind.TimeSeries() {
		return
	}
	t := v.Transform
	center := t.X + 0.5/t.K

	k := t.K * factor
	if k < 1 {
		k = 1
	}
	if k > maxZoom {
		k = maxZoom
	}
	a.setTransform(v, chart.Transform{K: k, X: center - 0.5/k})
}

func (a *App) pan(dir float64) {
	v, ok := a.selectedView()
	if !ok || !v.Kind.TimeSeries() || v.Transform.K <= 1 {
		return
	}
	t := v.Transform
	t.X += dir * panStep / t.K
	a.setTransform(v, t)
}

// brush selects the middle half of the visible window
func (a *App) brush() {
	v, ok := a.selectedView()
	if !ok || !v.Kind.TimeSeries() {
		return
	}
	w := v.Transform.Window(v.TimeDomain)
	quarter := w.Duration() / 4
	r := chart.Range{Start: w.Start + quarter, End: w.End - quarter}

	coord := a.view.Coordinator()
	if err := coord.SetBrush(v.ID, r); err != nil {
		a.status = err.Error()
		return
	}
	a.board.setInteraction(v.ID, v.Transform, &r)
}

func (a *App) clearBrush() {
	v, ok := a.selectedView()
	if !ok || v.Brush == nil {
		return
	}
	if err := a.view.Coordinator().ClearBrush(v.ID); err != nil {
		a.status = err.Error()
		return
	}
	a.board.setInteraction(v.ID, v.Transform, nil)
}

// refresh re-renders the chart list into the viewport
func (a *App) refresh() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.renderCharts())
}

func (a *App) renderCharts() string {
	if a.showHelp {
		return renderHelp()
	}
	if a.loading {
		return captionStyle.Render("Loading sensor data...")
	}

	panels := a.board.snapshot(a.view.Coordinator().Layout())
	if len(panels) == 0 {
		if a.err != nil {
			return errorStyle.Render(a.err.Error())
		}
		return captionStyle.Render("No chartable sensor data.")
	}

	cards := make([]string, len(panels))
	for i, p := range panels {
		cards[i] = renderPanel(p, a.width, i == a.selected)
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

// scrollToSelected moves the viewport so the selected card is on screen
func (a *App) scrollToSelected() {
	if !a.ready {
		return
	}
	panels := a.board.snapshot(a.view.Coordinator().Layout())
	offset := 0
	for i := 0; i < a.selected && i < len(panels); i++ {
		offset += lipgloss.Height(renderPanel(panels[i], a.width, false))
	}
	a.viewport.SetContent(a.renderCharts())
	a.viewport.SetYOffset(offset)
}

// View renders the app
func (a *App) View() string {
	if !a.ready {
		return "Initializing..."
	}
	return lipgloss.JoinVertical(lipgloss.Left, a.renderHeader(), a.viewport.View(), a.renderFooter())
}

func (a *App) renderHeader() string {
	meta := a.view.Meta()
	title := meta.Name
	if title == "" {
		title = meta.ID
	}
	parts := []string{title}
	if meta.Type != "" {
		parts = append(parts, meta.Type)
	}
	if !meta.Start.IsZero() {
		parts = append(parts, humanize.Time(meta.Start))
	}
	if summary := a.view.Summary(); summary != "" {
		parts = append(parts, summary)
	}
	header := headerStyle.Render(strings.Join(parts, " · "))
	if a.live {
		header += " " + successStyle.Render("● live")
	}
	return header
}

func (a *App) renderFooter() string {
	status := a.status
	if !a.lastPoll.IsZero() {
		status += captionStyle.Render("  updated " + humanize.Time(a.lastPoll))
	}
	if left, ok := a.view.RateLimitRemaining(); ok {
		status += captionStyle.Render(fmt.Sprintf("  %s requests left", humanize.Comma(int64(left))))
	}
	keys := strings.Join([]string{
		RenderKeyHelp("tab", "next"),
		RenderKeyHelp("+/-", "zoom"),
		RenderKeyHelp("h/l", "pan"),
		RenderKeyHelp("b", "brush"),
		RenderKeyHelp("r", "refresh"),
		RenderKeyHelp("?", "help"),
		RenderKeyHelp("q", "quit"),
	}, "  ")
	return statusStyle.Render(status) + "\n" + keys
}

// pollStatus summarizes a polling round for the status line. Failures are
// shown by their message.
func pollStatus(r service.PollResult) string {
	if len(r.Errors) == 0 {
		return fmt.Sprintf("polled %d streams", len(r.Polled))
	}
	names := make([]string, 0, len(r.Errors))
	for name := range r.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, len(names))
	for i, name := range names {
		msgs[i] = name + ": " + r.Errors[name]
	}
	return errorStyle.Render(strings.Join(msgs, "; "))
}
