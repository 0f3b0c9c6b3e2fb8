package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"streamcharts/internal/activity"
	"streamcharts/internal/analysis"
	"streamcharts/internal/api"
	"streamcharts/internal/config"
	"streamcharts/internal/fitfile"
	"streamcharts/internal/report"
	"streamcharts/internal/service"
	"streamcharts/internal/store"
	"streamcharts/internal/tui"
)

const usage = `Usage: streamcharts <command> [flags] [args]

Commands:
  view <activity-id>           chart an activity in the terminal
  report <activity-id>         write the charts of an activity as HTML
  import <file.fit>            import a FIT file into the local database
  list [-sensors]              list activities in the local database
  delete <activity-id> [name]  delete one sensor stream, or a whole local activity
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	ctx := context.Background()

	if len(args) == 0 {
		fmt.Print(usage)
		return nil
	}

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nPlease edit the config file at:\n  %s/config.json\n\n", configDir)
		fmt.Println(`Set "source" to "local" to chart imported FIT files,`)
		fmt.Println(`or to "api" and fill in the api section to chart activities from a server.`)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s/config.json\n", configDir)
		return nil
	}

	// Open database
	dbPath, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	app := &cli{cfg: cfg, db: db}
	if cfg.Source == config.SourceAPI {
		app.client = api.NewFromConfig(ctx, cfg.API, db)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "view":
		return app.view(ctx, rest)
	case "report":
		return app.report(ctx, rest)
	case "import":
		return app.importFIT(ctx, rest)
	case "list":
		return app.list(ctx, rest)
	case "delete":
		return app.delete(ctx, rest)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

// cli holds what every command needs
type cli struct {
	cfg    *config.Config
	db     *store.DB
	client *api.Client // nil unless source is "api"
}

func (c *cli) source() service.Source {
	if c.client != nil {
		return c.client
	}
	return c.db
}

func (c *cli) metaSource() service.MetaSource {
	if c.client != nil {
		return c.client
	}
	return c.db
}

func (c *cli) deleter() service.SensorDeleter {
	if c.client != nil {
		return c.client
	}
	return c.db
}

func (c *cli) view(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	live := fs.Bool("live", false, "poll for new samples while the activity is recording")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: streamcharts view [--live] <activity-id>")
	}

	meta, err := c.metaSource().Meta(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	// The alt screen owns stdout, so logs go to a file
	logger, closeLog, err := fileLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	board := tui.NewBoard()
	view := service.Open(ctx, meta, service.ViewOptions{
		Config:   c.cfg,
		Source:   c.source(),
		Deleter:  c.deleter(),
		Renderer: board,
		Logger:   logger,
	})
	defer view.Close()

	app := tui.NewApp(view, board, *live || meta.Recording, c.cfg.PollInterval())
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}

	return nil
}

func (c *cli) report(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	out := fs.String("o", "", "output file (default <activity-id>.html)")
	open := fs.Bool("open", false, "open the report in the browser")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: streamcharts report [-o file] [--open] <activity-id>")
	}

	meta, err := c.metaSource().Meta(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	renderer := report.NewRenderer()
	view := service.Open(ctx, meta, service.ViewOptions{
		Config:   c.cfg,
		Source:   c.source(),
		Renderer: renderer,
		Logger:   stderrLogger(),
	})
	defer view.Close()

	result, err := view.Load()
	if err != nil {
		return err
	}

	renderer.SetSummary(view.Summary())

	path := *out
	if path == "" {
		path = meta.ID + ".html"
	}
	if err := renderer.WriteFile(path, meta, view.Coordinator().Layout()); err != nil {
		return err
	}

	fmt.Printf("Wrote %d charts to %s\n", len(result.Views), path)
	if len(result.Errors) > 0 {
		fmt.Printf("%d streams could not be charted, see the log above\n", len(result.Errors))
	}

	if *open {
		return report.Open(path)
	}
	return nil
}

func (c *cli) importFIT(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	gpxPath := fs.String("gpx", "", "GPX track to take the gradient curve from")
	name := fs.String("name", "", "activity name (default from the file)")
	recording := fs.Bool("recording", false, "mark the activity as still recording")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: streamcharts import [--gpx file] [--name name] [--recording] <file.fit>")
	}

	imp, err := fitfile.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	if *gpxPath != "" {
		data, err := os.ReadFile(*gpxPath)
		if err != nil {
			return fmt.Errorf("reading gpx file: %w", err)
		}
		gradient, err := analysis.GradientFromGPX(data)
		if err != nil {
			return err
		}
		imp.Meta.Gradient = gradient
	}
	if *name != "" {
		imp.Meta.Name = *name
	}
	if imp.Meta.Name == "" {
		imp.Meta.Name = defaultName(fs.Arg(0), imp.Meta)
	}

	a := &store.Activity{
		Name:      imp.Meta.Name,
		Type:      imp.Meta.Type,
		StartTime: imp.Meta.Start,
		Recording: *recording,
		Gradient:  imp.Meta.Gradient,
	}
	if err := c.db.UpsertActivity(ctx, a); err != nil {
		return err
	}

	n, err := c.db.SaveStreams(ctx, a.ID, imp.Streams)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %s (%s) with %s samples in %d streams\n",
		a.Name, a.ID, humanize.Comma(int64(n)), len(imp.Streams))
	return nil
}

func (c *cli) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	limit := fs.Int("n", 20, "number of activities to show")
	sensors := fs.Bool("sensors", false, "show the sensors recorded for each activity")
	if err := fs.Parse(args); err != nil {
		return err
	}

	activities, err := c.db.ListActivities(ctx, *limit)
	if err != nil {
		return err
	}
	if len(activities) == 0 {
		fmt.Println("No activities yet. Import one with: streamcharts import <file.fit>")
		return nil
	}

	for _, a := range activities {
		state := ""
		if a.Recording {
			state = "  (recording)"
		}
		fmt.Printf("%s  %-16s  %-30s  %s%s\n",
			a.ID, a.Type, a.Name, humanize.Time(a.StartTime), state)
		if !*sensors {
			continue
		}
		names, err := c.db.Sensors(ctx, a.ID)
		if err != nil {
			return err
		}
		if len(names) > 0 {
			fmt.Printf("    %s\n", strings.Join(names, ", "))
		}
	}
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	switch len(args) {
	case 1:
		if c.client != nil {
			return errors.New("whole activities can only be deleted from the local database")
		}
		if err := c.db.DeleteActivity(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted activity %s\n", args[0])
		return nil
	case 2:
	default:
		return errors.New("usage: streamcharts delete <activity-id> [sensor name]")
	}

	if err := c.deleter().DeleteSensorData(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s from %s\n", args[1], args[0])
	return nil
}

func defaultName(path string, meta activity.Meta) string {
	base := filepath.Base(path)
	if meta.Type == "" {
		return base
	}
	return meta.Type + " " + base
}

// fileLogger logs to ~/.streamcharts/streamcharts.log
func fileLogger() (*slog.Logger, func(), error) {
	dir, err := config.GetConfigDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "streamcharts.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return newLogger(f), func() { f.Close() }, nil
}

func stderrLogger() *slog.Logger {
	return newLogger(os.Stderr)
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
