package engine

import (
	"github.com/vanderheijden86/treegrid/pkg/expansion"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// IsExpanded reports whether the row is expanded. Unknown rows are not.
func (g *Grid) IsExpanded(id model.RowID) bool {
	rec, err := g.Record(id)
	if err != nil {
		return false
	}
	return g.store.IsExpanded(rec)
}

// Toggle flips the row's expansion. It reports false when a toggle
// subscriber vetoed the change.
func (g *Grid) Toggle(id model.RowID) (bool, error) {
	rec, err := g.Record(id)
	if err != nil {
		return false, err
	}
	return g.store.Toggle(rec), nil
}

// Expand expands the row unless vetoed.
func (g *Grid) Expand(id model.RowID) (bool, error) {
	return g.request(id, true)
}

// Collapse collapses the row unless vetoed.
func (g *Grid) Collapse(id model.RowID) (bool, error) {
	return g.request(id, false)
}

func (g *Grid) request(id model.RowID, expanded bool) (bool, error) {
	rec, err := g.Record(id)
	if err != nil {
		return false, err
	}
	return g.store.Request(rec, expanded), nil
}

// ExpandPath expands every ancestor of the row so it becomes visible.
func (g *Grid) ExpandPath(id model.RowID) error {
	rec, err := g.Record(id)
	if err != nil {
		return err
	}
	for _, a := range rec.Ancestors() {
		g.store.Request(a, true)
	}
	return nil
}

// ExpandAll expands every row.
func (g *Grid) ExpandAll() {
	g.store.ExpandAll()
}

// CollapseAll collapses every row.
func (g *Grid) CollapseAll() {
	g.store.CollapseAll()
}

// ExpandToLevel expands rows above depth and collapses the rest, dropping
// row-specific exceptions.
func (g *Grid) ExpandToLevel(depth int) {
	g.store.ReplaceAll(nil)
	g.store.SetDefaultDepth(depth)
}

// SetExpansionStates replaces every explicit expansion entry. Keys are
// normalized; the map is copied.
func (g *Grid) SetExpansionStates(states map[model.RowID]bool) {
	norm := make(map[model.RowID]bool, len(states))
	for id, v := range states {
		norm[normalize(id)] = v
	}
	g.store.ReplaceAll(norm)
}

// ExpansionStates returns a copy of the explicit expansion entries.
func (g *Grid) ExpansionStates() map[model.RowID]bool {
	return g.store.Snapshot()
}

// DefaultExpandDepth returns the current fallback depth.
func (g *Grid) DefaultExpandDepth() int {
	return g.store.DefaultDepth()
}

// OnToggle subscribes fn to expansion proposals. fn may veto a proposal by
// setting Cancel. The returned function unsubscribes.
func (g *Grid) OnToggle(fn func(*expansion.ToggleEvent)) (unsubscribe func()) {
	return g.store.Subscribe(fn)
}

type rowEdit struct {
	active bool
	id     model.RowID
}

// BeginRowEdit marks a row as being edited. While the edit is in progress,
// collapsing the row or any of its ancestors is vetoed so the row stays
// visible.
func (g *Grid) BeginRowEdit(id model.RowID) error {
	rec, err := g.Record(id)
	if err != nil {
		return err
	}
	g.edit = rowEdit{active: true, id: rec.RowID}
	return nil
}

// EndRowEdit ends the current row edit.
func (g *Grid) EndRowEdit() {
	g.edit = rowEdit{}
}

func (g *Grid) guardRowEdit(ev *expansion.ToggleEvent) {
	if !g.edit.active || ev.Expanded {
		return
	}
	rec, err := g.Record(g.edit.id)
	if err != nil {
		return
	}
	if ev.Record == rec || rec.IsDescendantOf(ev.Record) {
		ev.Cancel = true
	}
}
