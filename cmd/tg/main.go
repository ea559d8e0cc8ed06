// Command tg loads rows from JSON, JSONL or SQLite files, builds a tree grid
// and prints the visible rows as a tree preview or as JSON.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/vanderheijden86/treegrid/pkg/config"
	"github.com/vanderheijden86/treegrid/pkg/engine"
	"github.com/vanderheijden86/treegrid/pkg/expansion"
	"github.com/vanderheijden86/treegrid/pkg/loader"
	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/pipeline"
	"github.com/vanderheijden86/treegrid/pkg/version"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	data       string
	source     string
	table      string
	configPath string
	sort       string
	filters    listFlag
	or         bool
	page       int
	pageSize   int
	depth      int
	expand     listFlag
	collapse   listFlag
	selectIDs  listFlag
	statePath  string
	format     string
	label      string
	columns    string
	width      int
	watch      bool
	stats      bool
	version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("tg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.data, "data", "", "Comma separated row files (JSON, JSONL or SQLite; db#table selects a table)")
	fs.StringVar(&o.source, "source", "", "Named source from the config file")
	fs.StringVar(&o.table, "table", "", "SQLite table for a single --data file")
	fs.StringVar(&o.configPath, "config", "", "Config file (default: XDG config dir)")
	fs.StringVar(&o.sort, "sort", "", "Sort expressions, e.g. name:asc,age:desc")
	fs.Var(&o.filters, "filter", "Filter condition, e.g. \"age > 30\" (repeatable)")
	fs.BoolVar(&o.or, "or", false, "Combine filters with OR instead of AND")
	fs.IntVar(&o.page, "page", 0, "Page to show, starting at 1 (enables paging)")
	fs.IntVar(&o.pageSize, "page-size", 0, "Root rows per page (enables paging)")
	fs.IntVar(&o.depth, "depth", -2, "Default expand depth (-1 expands everything)")
	fs.Var(&o.expand, "expand", "Row id to expand, with its ancestors (repeatable)")
	fs.Var(&o.collapse, "collapse", "Row id to collapse (repeatable)")
	fs.Var(&o.selectIDs, "select", "Row id to select (repeatable)")
	fs.StringVar(&o.statePath, "state", "", "Grid state file to restore and save")
	fs.StringVar(&o.format, "format", "text", "Output format: text or json")
	fs.StringVar(&o.label, "label", "", "Field shown in the tree column (default: name, title or the row id)")
	fs.StringVar(&o.columns, "columns", "", "Comma separated fields printed after the tree column")
	fs.IntVar(&o.width, "width", 0, "Output width (default: terminal width or 80)")
	fs.BoolVar(&o.watch, "watch", false, "Reprint whenever a source file changes")
	fs.BoolVar(&o.stats, "stats", false, "Print pipeline timing metrics to stderr")
	fs.BoolVar(&o.version, "version", false, "Show version")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: tg --data rows.json[,more.jsonl] [options]")
		fmt.Fprintln(stderr, "\nPrints the visible rows of a tree grid built from the given rows.")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch o.format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown format %q (want text or json)", o.format)
	}
	if o.page < 0 || o.pageSize < 0 {
		return nil, errors.New("--page and --page-size must not be negative")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if o.version {
		fmt.Fprintf(stdout, "tg %s\n", version.String())
		return 0
	}

	app, err := newApp(ctx, o, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := app.print(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if o.watch {
		if err := app.watch(ctx); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	if err := app.saveState(); err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}
	if o.stats {
		printStats(stderr)
	}
	return 0
}

func loadConfig(path string, stderr io.Writer) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	cfg, err := config.Load()
	if err != nil {
		// Non-fatal: continue without config
		fmt.Fprintf(stderr, "Warning: %v\n", err)
		return config.DefaultConfig(), nil
	}
	return cfg, nil
}

// resolveSources picks the row sources from --data, --source or the config.
func resolveSources(o *options, cfg config.Config) ([]loader.Source, error) {
	var sources []loader.Source
	switch {
	case o.data != "":
		sources = loader.ParseSources(o.data)
	case o.source != "":
		src := cfg.FindSource(o.source)
		if src == nil {
			return nil, fmt.Errorf("no source named %q in config", o.source)
		}
		sources = []loader.Source{{Path: src.Path, Table: src.Table}}
	default:
		for _, s := range cfg.Sources {
			sources = append(sources, loader.Source{Path: s.Path, Table: s.Table})
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("no data: pass --data or configure sources")
	}
	if o.table != "" {
		if len(sources) != 1 {
			return nil, errors.New("--table needs exactly one data source")
		}
		sources[0].Table = o.table
	}
	return sources, nil
}

func gridOptions(o *options, cfg config.Config) (engine.Options, error) {
	opts, err := cfg.GridOptions()
	if err != nil {
		return opts, err
	}
	switch {
	case o.depth == -1:
		opts.DefaultExpandDepth = expansion.Infinite
	case o.depth >= 0:
		opts.DefaultExpandDepth = o.depth
	}
	if len(o.selectIDs) > 0 && opts.SelectionMode == engine.SelectNone {
		opts.SelectionMode = engine.SelectMultiple
	}
	return opts, nil
}

// overrideParams applies the command line transform flags on top of base.
func overrideParams(o *options, base engine.Params) (engine.Params, error) {
	p := base
	if o.sort != "" {
		sorting, err := pipeline.ParseSort(o.sort)
		if err != nil {
			return p, err
		}
		p.Sort = sorting
	}
	if len(o.filters) > 0 {
		op := pipeline.And
		if o.or {
			op = pipeline.Or
		}
		filter, err := pipeline.ParseFilter(op, o.filters...)
		if err != nil {
			return p, err
		}
		p.Filter = filter
	}
	if o.pageSize > 0 {
		p.Paging.Enabled = true
		p.Paging.Size = o.pageSize
	}
	if o.page > 0 {
		if p.Paging.Size <= 0 {
			return p, errors.New("--page needs --page-size or a configured page size")
		}
		p.Paging.Enabled = true
		p.Paging.Index = o.page - 1
	}
	return p, nil
}

// lookupID resolves a command line id against the grid. Numeric text
// matches integer ids first, then string ids.
func lookupID(g *engine.Grid, s string) (model.RowID, error) {
	var candidates []model.RowID
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		candidates = append(candidates, n)
	}
	candidates = append(candidates, s)
	for _, id := range candidates {
		if rec, err := g.Record(id); err == nil {
			return rec.RowID, nil
		}
	}
	return nil, fmt.Errorf("row %q: %w", s, model.ErrRowNotFound)
}

func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
