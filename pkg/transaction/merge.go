package transaction

import (
	"github.com/vanderheijden86/treegrid/pkg/hierarchy"
	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// MergeFlat applies pending states to flat rows keyed by primaryKey.
// Deleted rows are dropped, updated rows are replaced by patched clones and
// added rows are appended in order of first touch. Untouched rows are
// returned as is; the input slice and its rows are never modified.
func MergeFlat(rows []model.Row, states []*State, primaryKey string) []model.Row {
	if len(states) == 0 {
		return rows
	}
	defer metrics.Timer(metrics.OverlayMerge)()

	byID := make(map[model.RowID]*State, len(states))
	for _, st := range states {
		byID[st.ID] = st
	}
	out := make([]model.Row, 0, len(rows))
	for _, row := range rows {
		id, ok := model.NormalizeID(row[primaryKey])
		st := byID[id]
		if !ok || st == nil {
			out = append(out, row)
			continue
		}
		switch st.Type {
		case Delete:
		case Update:
			out = append(out, patched(row, st.Value))
		default:
			out = append(out, row)
		}
	}
	for _, st := range states {
		if st.Type == Add {
			out = append(out, st.Value.Clone())
		}
	}
	return out
}

func patched(row, patch model.Row) model.Row {
	c := row.Clone()
	merge(c, patch)
	return c
}

// Merged is the result of MergeNested. Origin maps every cloned row to the
// identity of the row it stands for, so callers can keep identities stable
// across the copy.
type Merged struct {
	Rows   []model.Row
	Origin map[model.RowRef]model.RowID
}

// IdentityOf resolves a merged row through Origin.
func (m *Merged) IdentityOf(row model.Row) (model.RowID, bool) {
	id, ok := m.Origin[model.RefOf(row)]
	return id, ok
}

// MergeNested applies pending states to rows that carry their children under
// childKey. The whole hierarchy is cloned first so the caller's rows and
// child slices are untouched. Deletes drop the row with its subtree; adds are
// appended under their ParentID, or at the root when it is nil. Adds whose
// parent no longer exists are dropped.
//
// identify resolves the identity of a base row; it must agree with the ids
// the states were recorded under.
func MergeNested(rows []model.Row, states []*State, childKey string, identify func(model.Row) (model.RowID, bool)) *Merged {
	defer metrics.Timer(metrics.OverlayMerge)()

	m := &nestedMerge{
		key:      childKey,
		identify: identify,
		states:   make(map[model.RowID]*State, len(states)),
		adds:     make(map[model.RowID][]*State),
		out:      &Merged{Origin: make(map[model.RowRef]model.RowID)},
	}
	var rootAdds []*State
	for _, st := range states {
		m.states[st.ID] = st
		if st.Type != Add {
			continue
		}
		if st.ParentID == nil {
			rootAdds = append(rootAdds, st)
			continue
		}
		m.adds[st.ParentID] = append(m.adds[st.ParentID], st)
	}

	m.out.Rows = m.level(rows)
	for _, st := range rootAdds {
		m.out.Rows = append(m.out.Rows, m.added(st))
	}
	return m.out
}

type nestedMerge struct {
	key      string
	identify func(model.Row) (model.RowID, bool)
	states   map[model.RowID]*State
	adds     map[model.RowID][]*State
	out      *Merged
}

func (m *nestedMerge) level(rows []model.Row) []model.Row {
	var out []model.Row
	for _, row := range rows {
		if row == nil {
			continue
		}
		id, ok := m.identify(row)
		var st *State
		if ok {
			st = m.states[id]
		}
		if st != nil && st.Type == Delete {
			continue
		}

		c := row.Clone()
		if st != nil && st.Type == Update {
			for k, v := range st.Value {
				if k != m.key {
					c[k] = v
				}
			}
		}
		children := m.level(hierarchy.ChildRows(row, m.key))
		if ok {
			for _, add := range m.adds[id] {
				children = append(children, m.added(add))
			}
		}
		if children != nil {
			c[m.key] = children
		} else if _, had := row[m.key]; had {
			c[m.key] = []model.Row{}
		}
		if ok {
			m.out.Origin[model.RefOf(c)] = id
		}
		out = append(out, c)
	}
	return out
}

// added materializes an added row together with adds nested below it.
func (m *nestedMerge) added(st *State) model.Row {
	c := st.Value.Clone()
	delete(c, m.key)
	var children []model.Row
	for _, add := range m.adds[st.ID] {
		children = append(children, m.added(add))
	}
	if children != nil {
		c[m.key] = children
	}
	m.out.Origin[model.RefOf(c)] = st.ID
	return c
}
