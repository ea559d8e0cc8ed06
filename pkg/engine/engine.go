// Package engine ties the hierarchy builder, expansion store, pending-edit
// overlay and transform pipeline into a single tree grid data engine.
//
// A Grid owns every piece of long-lived state. Callers feed it raw rows, run
// Process with the current sort/filter/page parameters and read the visible
// rows from the returned View. Grid is not safe for concurrent use.
package engine

import (
	"fmt"
	"time"

	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/expansion"
	"github.com/vanderheijden86/treegrid/pkg/flatten"
	"github.com/vanderheijden86/treegrid/pkg/hierarchy"
	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/pipeline"
	"github.com/vanderheijden86/treegrid/pkg/transaction"
)

// Options configures a Grid.
type Options struct {
	PrimaryKey   string
	ForeignKey   string
	ChildDataKey string

	// DefaultExpandDepth expands rows whose level is below it unless the
	// user changed them. Use expansion.Infinite to expand everything.
	DefaultExpandDepth int

	// CascadeOnDelete also deletes the descendants of a deleted row in
	// foreign-key mode. Without it they are promoted to roots.
	CascadeOnDelete bool

	// BatchEditing keeps edits pending until CommitEdits. Without it every
	// edit is committed immediately.
	BatchEditing bool

	SelectionMode SelectionMode
}

func (o Options) hierarchy() hierarchy.Options {
	return hierarchy.Options{PrimaryKey: o.PrimaryKey, ForeignKey: o.ForeignKey, ChildDataKey: o.ChildDataKey}
}

// Params are the per-run transform parameters.
type Params = pipeline.Params

// Grid is a tree grid data engine.
type Grid struct {
	opts  Options
	hopts hierarchy.Options

	base  []model.Row
	store *expansion.Store
	tx    *transaction.Service
	pipe  *pipeline.Pipeline

	built   *hierarchy.Result
	forest  []*model.Node
	version uint64
	stale   bool

	params    Params
	selection selection
	edit      rowEdit
	lastRekey map[model.RowID]model.RowID
}

// New creates an empty grid. It fails with a *model.ConfigError when the
// structural options are inconsistent.
func New(opts Options) (*Grid, error) {
	hopts := opts.hierarchy()
	if err := hopts.Validate(); err != nil {
		return nil, err
	}
	g := &Grid{
		opts:      opts,
		hopts:     hopts,
		store:     expansion.NewStore(opts.DefaultExpandDepth),
		tx:        transaction.NewService(opts.PrimaryKey, opts.BatchEditing),
		selection: newSelection(opts.SelectionMode),
	}
	g.pipe = pipeline.New(g.store)
	g.store.Subscribe(g.guardRowEdit)
	g.stale = true
	return g, nil
}

// Options returns the grid's configuration.
func (g *Grid) Options() Options {
	return g.opts
}

// SetData replaces the raw rows and rebuilds the hierarchy. The rows are
// never modified. Pending edits are kept and reapplied on top.
func (g *Grid) SetData(rows []model.Row) error {
	g.base = rows
	return g.Rebuild()
}

// Data returns the raw rows last set or committed.
func (g *Grid) Data() []model.Row {
	return g.base
}

// Rebuild merges pending edits into the raw rows and rebuilds the record
// hierarchy. Expansion state and selection are pruned of rows that no longer
// exist.
func (g *Grid) Rebuild() error {
	start := time.Now()
	rows, opts := g.effectiveRows()
	res, err := hierarchy.Build(rows, opts)
	if err != nil {
		g.stale = true
		return fmt.Errorf("rebuild: %w", err)
	}
	g.built = res
	g.forest = model.NewForest(res.Roots)
	g.version++
	g.stale = false
	g.selection.prune(g)
	if len(g.tx.States()) == 0 {
		// Rows hidden by a pending delete keep their state until the
		// overlay is resolved.
		if n := g.store.Prune(g.known); n > 0 {
			debug.Log("engine: pruned %d expansion entries", n)
		}
	}
	debug.LogTiming("engine rebuild", time.Since(start))
	return nil
}

func (g *Grid) known(id model.RowID) bool {
	_, ok := g.built.Records[id]
	return ok
}

// effectiveRows returns the rows with the overlay applied, together with the
// builder options that resolve their identities.
func (g *Grid) effectiveRows() ([]model.Row, hierarchy.Options) {
	states := g.tx.States()
	opts := g.hopts
	if len(states) == 0 {
		return g.base, opts
	}
	if opts.Mode() == hierarchy.ModeForeignKey {
		return transaction.MergeFlat(g.base, states, g.opts.PrimaryKey), opts
	}
	merged := transaction.MergeNested(g.base, states, g.opts.ChildDataKey, g.hopts.IdentityOf)
	opts.Identify = merged.IdentityOf
	return merged.Rows, opts
}

func (g *Grid) ensureBuilt() error {
	if g.stale || g.built == nil {
		return g.Rebuild()
	}
	return nil
}

// View is the result of one Process run.
type View struct {
	// Records are the visible records in display order.
	Records []*model.Record
	// Rows are the raw rows of Records.
	Rows []model.Row
	// Roots is the final forest after paging.
	Roots []*model.Node
	// SortedFlat is every record in sorted pre-order, ignoring filtering,
	// paging and expansion.
	SortedFlat []*model.Record
	// Matched is the number of records the filter matched.
	Matched int
	Page    pipeline.PageResult
}

// Len returns the number of visible rows.
func (v *View) Len() int {
	return len(v.Records)
}

// RowAt returns the raw row shown at visible index i.
func (v *View) RowAt(i int) (model.Row, bool) {
	if i < 0 || i >= len(v.Rows) {
		return nil, false
	}
	return v.Rows[i], true
}

// IndexOf returns the visible index of id, or -1.
func (v *View) IndexOf(id model.RowID) int {
	key := normalize(id)
	for i, r := range v.Records {
		if r.RowID == key {
			return i
		}
	}
	return -1
}

// Process runs the pipeline with params and flattens the visible rows.
func (g *Grid) Process(params Params) (*View, error) {
	if err := g.ensureBuilt(); err != nil {
		return nil, err
	}
	g.params = params
	res := g.pipe.Run(g.forest, g.version, params)

	v := &View{
		Roots:      res.Roots(),
		SortedFlat: res.Sorted.FlatRecords,
		Matched:    res.Filtered.Matched,
		Page:       res.Paged,
	}
	for n := range flatten.Visible(v.Roots, g.store) {
		v.Records = append(v.Records, n.Record)
		v.Rows = append(v.Rows, n.Record.Data)
	}
	v.Page.Roots = nil
	return v, nil
}

// Params returns the parameters of the last Process run.
func (g *Grid) Params() Params {
	return g.params
}

// RecordsByID returns the record map of the current hierarchy. The map is
// owned by the grid and must not be modified.
func (g *Grid) RecordsByID() map[model.RowID]*model.Record {
	if g.built == nil {
		return nil
	}
	return g.built.Records
}

// Record looks up a record by id.
func (g *Grid) Record(id model.RowID) (*model.Record, error) {
	if g.built != nil {
		if rec, ok := g.built.Records[normalize(id)]; ok {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", model.ErrRowNotFound, model.IDString(id))
}

// Roots returns the root records of the current hierarchy.
func (g *Grid) Roots() []*model.Record {
	if g.built == nil {
		return nil
	}
	return g.built.Roots
}

// FlatOrder returns every effective row in hierarchy input order, ignoring
// expansion and the transform pipeline.
func (g *Grid) FlatOrder() []model.Row {
	if g.built == nil {
		return nil
	}
	return g.built.FlatOrder
}

// Orphans lists rows promoted to roots because their parent did not resolve.
func (g *Grid) Orphans() []model.RowID {
	if g.built == nil {
		return nil
	}
	return g.built.Orphans
}

// Invalidate forces every pipeline stage to recompute on the next run, for
// callers that changed row payloads in place.
func (g *Grid) Invalidate() {
	g.pipe.Invalidate()
}

func normalize(id model.RowID) model.RowID {
	if n, ok := model.NormalizeID(id); ok {
		return n
	}
	return id
}
