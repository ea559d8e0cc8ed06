package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/treegrid/internal/datasource"
	"github.com/vanderheijden86/treegrid/pkg/config"
	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/engine"
	"github.com/vanderheijden86/treegrid/pkg/loader"
	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/render"
	"github.com/vanderheijden86/treegrid/pkg/watcher"
)

// app holds one tg session: the grid, its sources and the current
// transform parameters.
type app struct {
	o         *options
	cfg       config.Config
	sources   []loader.Source
	grid      *engine.Grid
	rows      []model.Row
	params    engine.Params
	statePath string
	stdout    io.Writer
	stderr    io.Writer
}

func newApp(ctx context.Context, o *options, stdout, stderr io.Writer) (*app, error) {
	cfg, err := loadConfig(o.configPath, stderr)
	if err != nil {
		return nil, err
	}
	sources, err := resolveSources(o, cfg)
	if err != nil {
		return nil, err
	}
	opts, err := gridOptions(o, cfg)
	if err != nil {
		return nil, err
	}
	g, err := engine.New(opts)
	if err != nil {
		return nil, err
	}
	a := &app{o: o, cfg: cfg, sources: sources, grid: g, stdout: stdout, stderr: stderr}

	rows, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := g.SetData(rows); err != nil {
		return nil, err
	}
	a.rows = rows

	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	a.statePath = o.statePath
	if a.statePath == "" {
		a.statePath = cfg.StateFile
	}
	if a.statePath != "" {
		restored, err := g.LoadState(a.statePath)
		if err != nil {
			fmt.Fprintf(stderr, "Warning: %v\n", err)
		} else {
			params = mergeParams(params, restored)
		}
	}
	if o.depth >= 0 || o.depth == -1 {
		g.ExpandToLevel(opts.DefaultExpandDepth)
	}
	if a.params, err = overrideParams(o, params); err != nil {
		return nil, err
	}
	if err := a.applyRowFlags(); err != nil {
		return nil, err
	}
	return a, nil
}

// mergeParams keeps config defaults for anything the restored state leaves
// empty.
func mergeParams(defaults, restored engine.Params) engine.Params {
	out := defaults
	if len(restored.Sort) > 0 {
		out.Sort = restored.Sort
	}
	if restored.Filter != nil && !restored.Filter.IsEmpty() {
		out.Filter = restored.Filter
	}
	if restored.Paging.Enabled {
		out.Paging = restored.Paging
	}
	return out
}

func (a *app) load(ctx context.Context) ([]model.Row, error) {
	opts := loader.ParseOptions{
		WarningHandler: func(msg string) { fmt.Fprintf(a.stderr, "Warning: %s\n", msg) },
	}
	rows, results, err := loader.LoadAll(ctx, a.sources, opts)
	if err != nil {
		loaded := 0
		for _, r := range results {
			if r.Error == nil {
				loaded++
			}
		}
		if loaded == 0 {
			return nil, err
		}
		fmt.Fprintf(a.stderr, "Warning: %v\n", err)
	}
	return rows, nil
}

func (a *app) applyRowFlags() error {
	g := a.grid
	for _, s := range a.o.expand {
		id, err := lookupID(g, s)
		if err != nil {
			return err
		}
		if err := g.ExpandPath(id); err != nil {
			return err
		}
		if _, err := g.Expand(id); err != nil {
			return err
		}
	}
	for _, s := range a.o.collapse {
		id, err := lookupID(g, s)
		if err != nil {
			return err
		}
		if _, err := g.Collapse(id); err != nil {
			return err
		}
	}
	var selected []model.RowID
	for _, s := range a.o.selectIDs {
		id, err := lookupID(g, s)
		if err != nil {
			return err
		}
		selected = append(selected, id)
	}
	if len(selected) > 0 {
		return g.Select(selected...)
	}
	return nil
}

func (a *app) print() error {
	v, err := a.grid.Process(a.params)
	if err != nil {
		return err
	}
	if a.o.format == "json" {
		return a.printJSON(v)
	}
	r := render.New(a.stdout, render.Options{
		LabelKey:      a.labelKey(),
		Columns:       splitList(a.o.columns),
		Width:         a.width(),
		Header:        a.o.columns != "",
		Selected:      a.selectedFunc(),
		Indeterminate: a.indeterminateFunc(),
	})
	_, err = io.WriteString(a.stdout, r.Render(v))
	return err
}

func (a *app) width() int {
	if a.o.width > 0 {
		return a.o.width
	}
	return terminalWidth(a.stdout)
}

func (a *app) selectedFunc() func(model.RowID) bool {
	if a.grid.SelectionMode() == engine.SelectNone {
		return nil
	}
	return a.grid.IsSelected
}

func (a *app) indeterminateFunc() func(model.RowID) bool {
	if a.grid.SelectionMode() != engine.SelectMultipleCascade {
		return nil
	}
	return a.grid.Indeterminate
}

// labelKey returns --label, or the first of name, title and label found in
// the data.
func (a *app) labelKey() string {
	if a.o.label != "" {
		return a.o.label
	}
	if len(a.rows) == 0 {
		return ""
	}
	for _, k := range []string{"name", "title", "label"} {
		if _, ok := a.rows[0][k]; ok {
			return k
		}
	}
	return ""
}

type jsonRow struct {
	ID          string    `json:"id"`
	Level       int       `json:"level"`
	Expanded    bool      `json:"expanded"`
	HasChildren bool      `json:"has_children"`
	Selected    bool      `json:"selected,omitempty"`
	Data        model.Row `json:"data"`
}

type jsonPage struct {
	Index      int `json:"index"`
	TotalPages int `json:"total_pages"`
	TotalRoots int `json:"total_roots"`
}

type jsonView struct {
	Rows    []jsonRow `json:"rows"`
	Matched int       `json:"matched"`
	Page    *jsonPage `json:"page,omitempty"`
}

func (a *app) printJSON(v *engine.View) error {
	childKey := a.grid.Options().ChildDataKey
	out := jsonView{Rows: make([]jsonRow, 0, v.Len()), Matched: v.Matched}
	for _, rec := range v.Records {
		out.Rows = append(out.Rows, jsonRow{
			ID:          model.IDString(rec.RowID),
			Level:       rec.Level,
			Expanded:    rec.Expanded,
			HasChildren: !rec.IsLeaf(),
			Selected:    a.grid.IsSelected(rec.RowID),
			Data:        withoutKey(rec.Data, childKey),
		})
	}
	if a.params.Paging.Enabled {
		out.Page = &jsonPage{Index: v.Page.Index, TotalPages: v.Page.TotalPages, TotalRoots: v.Page.TotalRoots}
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// withoutKey returns row minus key without touching row.
func withoutKey(row model.Row, key string) model.Row {
	if key == "" {
		return row
	}
	if _, ok := row[key]; !ok {
		return row
	}
	out := make(model.Row, len(row)-1)
	for k, v := range row {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func (a *app) saveState() error {
	if a.statePath == "" {
		return nil
	}
	return a.grid.SaveState(a.statePath)
}

// watch reprints the grid whenever a source changes until ctx is done.
func (a *app) watch(ctx context.Context) error {
	paths := make([]string, 0, len(a.sources))
	for _, s := range a.sources {
		paths = append(paths, s.Path)
	}
	w, err := watcher.NewWatcher(paths,
		watcher.WithOnError(func(err error) { fmt.Fprintf(a.stderr, "Warning: watch: %v\n", err) }),
	)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	debug.Log("tg: watching %s (polling=%v)", strings.Join(paths, ", "), w.IsPolling())

	for {
		select {
		case <-ctx.Done():
			return nil
		case changed := <-w.Changed():
			debug.Log("tg: changed %v", changed)
			if err := a.reload(ctx); err != nil {
				fmt.Fprintf(a.stderr, "Warning: reload: %v\n", err)
				continue
			}
			if err := a.print(); err != nil {
				return err
			}
		}
	}
}

// reload reads the sources again and swaps them into the grid. The trigger
// counter is bumped so every pipeline stage recomputes. On failure the old
// rows stay in place.
func (a *app) reload(ctx context.Context) error {
	rows, err := a.load(ctx)
	if err != nil {
		return err
	}
	opts := a.grid.Options()
	diff := datasource.DiffRows(a.rows, rows, datasource.DiffOptions{
		PrimaryKey:     opts.PrimaryKey,
		ChildDataKey:   opts.ChildDataKey,
		MaxDifferences: 100,
	})
	if !diff.HasChanges() {
		debug.Log("tg: reload found no changes")
	}
	if err := a.grid.SetData(rows); err != nil {
		if restoreErr := a.grid.SetData(a.rows); restoreErr != nil {
			debug.Log("tg: restoring previous rows: %v", restoreErr)
		}
		return err
	}
	fmt.Fprint(a.stderr, diff.Summary())
	a.rows = rows
	a.params.Trigger++
	return nil
}

func printStats(w io.Writer) {
	fmt.Fprintln(w, "Pipeline timings:")
	for _, s := range metrics.AllTimingStats() {
		if s.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-16s count=%-4d avg=%.3fms max=%.3fms\n", s.Name, s.Count, s.AvgMs, s.MaxMs)
	}
	for _, c := range metrics.AllCacheMetrics() {
		st := c.Stats()
		fmt.Fprintf(w, "  %-16s hits=%d misses=%d rate=%.2f\n", st.Name, st.Hits, st.Misses, st.HitRate)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
