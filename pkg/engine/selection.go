package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// SelectionMode controls how rows may be selected.
type SelectionMode int

const (
	SelectNone SelectionMode = iota
	SelectSingle
	SelectMultiple
	// SelectMultipleCascade propagates selection down to descendants and up
	// to parents whose children are all selected.
	SelectMultipleCascade
)

func (m SelectionMode) String() string {
	switch m {
	case SelectNone:
		return "none"
	case SelectSingle:
		return "single"
	case SelectMultiple:
		return "multiple"
	case SelectMultipleCascade:
		return "multipleCascade"
	default:
		return "unknown"
	}
}

// ParseSelectionMode parses the names produced by SelectionMode.String. The
// empty string is SelectNone.
func ParseSelectionMode(s string) (SelectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SelectNone, nil
	case "single":
		return SelectSingle, nil
	case "multiple":
		return SelectMultiple, nil
	case "multiplecascade", "cascade":
		return SelectMultipleCascade, nil
	}
	return SelectNone, fmt.Errorf("unknown selection mode %q", s)
}

// selection is the set of selected ids in selection order.
type selection struct {
	mode  SelectionMode
	set   map[model.RowID]bool
	order []model.RowID
}

func newSelection(mode SelectionMode) selection {
	return selection{mode: mode, set: make(map[model.RowID]bool)}
}

func (s *selection) add(id model.RowID) {
	if s.set[id] {
		return
	}
	s.set[id] = true
	s.order = append(s.order, id)
}

func (s *selection) remove(id model.RowID) {
	if !s.set[id] {
		return
	}
	delete(s.set, id)
	s.order = slices.DeleteFunc(s.order, func(x model.RowID) bool { return x == id })
}

func (s *selection) clear() {
	clear(s.set)
	s.order = nil
}

// prune drops ids that no longer resolve to a record. In cascade mode parent
// states are recomputed since their children may have changed.
func (s *selection) prune(g *Grid) {
	if len(s.order) == 0 {
		return
	}
	for _, id := range slices.Clone(s.order) {
		if _, ok := g.built.Records[id]; !ok {
			s.remove(id)
		}
	}
	if s.mode == SelectMultipleCascade {
		for _, root := range g.built.Roots {
			s.settle(root)
		}
	}
}

// settle recomputes the state of every parent below and including rec from
// its children, bottom-up.
func (s *selection) settle(rec *model.Record) {
	if len(rec.Children) == 0 {
		return
	}
	all := true
	for _, c := range rec.Children {
		s.settle(c)
		all = all && s.set[c.RowID]
	}
	if all {
		s.add(rec.RowID)
	} else {
		s.remove(rec.RowID)
	}
}

func (s *selection) rekey(mapping map[model.RowID]model.RowID) {
	for i, id := range s.order {
		if to, ok := mapping[id]; ok {
			delete(s.set, id)
			s.set[to] = true
			s.order[i] = to
		}
	}
}

// SelectionMode returns the grid's selection mode.
func (g *Grid) SelectionMode() SelectionMode {
	return g.selection.mode
}

// Select adds rows to the selection. In single mode only the last id stays
// selected; in none mode Select is a no-op. Unknown ids fail with
// model.ErrRowNotFound and nothing is selected.
func (g *Grid) Select(ids ...model.RowID) error {
	if g.selection.mode == SelectNone || len(ids) == 0 {
		return nil
	}
	recs, err := g.resolve(ids)
	if err != nil {
		return err
	}
	s := &g.selection
	switch s.mode {
	case SelectSingle:
		s.clear()
		s.add(recs[len(recs)-1].RowID)
	case SelectMultiple:
		for _, r := range recs {
			s.add(r.RowID)
		}
	case SelectMultipleCascade:
		for _, r := range recs {
			s.add(r.RowID)
			for _, d := range r.Descendants() {
				s.add(d.RowID)
			}
		}
		g.settleAncestors(recs)
	}
	return nil
}

// Deselect removes rows from the selection. In cascade mode descendants are
// deselected too and ancestors lose their selected state.
func (g *Grid) Deselect(ids ...model.RowID) error {
	recs, err := g.resolve(ids)
	if err != nil {
		return err
	}
	s := &g.selection
	for _, r := range recs {
		s.remove(r.RowID)
		if s.mode == SelectMultipleCascade {
			for _, d := range r.Descendants() {
				s.remove(d.RowID)
			}
		}
	}
	if s.mode == SelectMultipleCascade {
		g.settleAncestors(recs)
	}
	return nil
}

func (g *Grid) settleAncestors(recs []*model.Record) {
	for _, r := range recs {
		for a := r.Parent; a != nil; a = a.Parent {
			all := true
			for _, c := range a.Children {
				if !g.selection.set[c.RowID] {
					all = false
					break
				}
			}
			if all {
				g.selection.add(a.RowID)
			} else {
				g.selection.remove(a.RowID)
			}
		}
	}
}

func (g *Grid) resolve(ids []model.RowID) ([]*model.Record, error) {
	if err := g.ensureBuilt(); err != nil {
		return nil, err
	}
	recs := make([]*model.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := g.Record(id)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ClearSelection deselects every row.
func (g *Grid) ClearSelection() {
	g.selection.clear()
}

// IsSelected reports whether the row is selected.
func (g *Grid) IsSelected(id model.RowID) bool {
	return g.selection.set[normalize(id)]
}

// SelectedIDs returns the selected ids in selection order.
func (g *Grid) SelectedIDs() []model.RowID {
	return slices.Clone(g.selection.order)
}

// Indeterminate reports whether a parent row is partially selected: some but
// not all of its descendants are selected. It is only meaningful in cascade
// mode and always false otherwise.
func (g *Grid) Indeterminate(id model.RowID) bool {
	if g.selection.mode != SelectMultipleCascade {
		return false
	}
	rec, err := g.Record(id)
	if err != nil || g.selection.set[rec.RowID] {
		return false
	}
	for _, d := range rec.Descendants() {
		if g.selection.set[d.RowID] {
			return true
		}
	}
	return false
}
