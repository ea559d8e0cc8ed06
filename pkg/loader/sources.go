package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/treegrid/internal/datasource"
	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// Source names a file to load rows from. Table selects a SQLite table and
// may be empty when the database holds a single table.
type Source struct {
	Path  string
	Table string
	// JSONColumns lists SQLite text columns that hold JSON.
	JSONColumns []string
}

// ParseSources splits a comma separated list of paths. A path may carry a
// SQLite table as "rows.db#table".
func ParseSources(list string) []Source {
	var out []Source
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		src := Source{Path: p}
		if i := strings.LastIndex(p, "#"); i > 0 {
			src.Path, src.Table = p[:i], p[i+1:]
		}
		out = append(out, src)
	}
	return out
}

func (s Source) String() string {
	if s.Table != "" {
		return s.Path + "#" + s.Table
	}
	return s.Path
}

// LoadResult contains the result of loading a single source
type LoadResult struct {
	Source Source
	Type   datasource.SourceType
	Rows   []model.Row
	Error  error
}

// Load reads the rows of one source, dispatching on its detected type.
func Load(ctx context.Context, src Source, opts ParseOptions) ([]model.Row, error) {
	rows, _, err := load(ctx, src, opts)
	return rows, err
}

func load(ctx context.Context, src Source, opts ParseOptions) ([]model.Row, datasource.SourceType, error) {
	ds, err := datasource.Detect(src.String())
	if err != nil {
		return nil, "", err
	}
	switch ds.Type {
	case datasource.SourceTypeSQLite:
		reader, err := datasource.NewSQLiteReader(ds)
		if err != nil {
			return nil, ds.Type, fmt.Errorf("failed to open SQLite source %s: %w", ds.Path, err)
		}
		defer reader.Close()
		rows, err := reader.LoadRows(ctx, ds.Table, datasource.ReadOptions{JSONColumns: src.JSONColumns})
		if err != nil {
			return nil, ds.Type, err
		}
		if opts.RowFilter != nil {
			kept := rows[:0]
			for _, r := range rows {
				if opts.RowFilter(r) {
					kept = append(kept, r)
				}
			}
			rows = kept
		}
		return rows, ds.Type, nil
	case datasource.SourceTypeJSON, datasource.SourceTypeJSONL:
		rows, err := LoadRowsFromFileWithOptions(ds.Path, opts)
		return rows, ds.Type, err
	default:
		return nil, ds.Type, fmt.Errorf("unknown source type: %s", ds.Type)
	}
}

// LoadAll loads every source concurrently and concatenates the rows in
// source order. Sources that fail are reported in their LoadResult and in
// the joined error; rows of the other sources are still returned.
func LoadAll(ctx context.Context, sources []Source, opts ParseOptions) ([]model.Row, []LoadResult, error) {
	if len(sources) == 0 {
		return nil, nil, fmt.Errorf("no sources given")
	}
	results := make([]LoadResult, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	// Limit concurrency to avoid resource exhaustion (file descriptors, memory)
	g.SetLimit(8)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = LoadResult{Source: src, Error: err}
				return nil
			}
			rows, typ, err := load(ctx, src, opts)
			results[i] = LoadResult{Source: src, Type: typ, Rows: rows, Error: err}
			return nil // Individual source errors are captured in results, not propagated
		})
	}
	if err := g.Wait(); err != nil {
		return nil, results, err
	}

	var all []model.Row
	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("load %s: %w", r.Source, r.Error))
			continue
		}
		debug.Log("loader: %d rows from %s (%s)", len(r.Rows), r.Source, r.Type)
		all = append(all, r.Rows...)
	}
	return all, results, errors.Join(errs...)
}
