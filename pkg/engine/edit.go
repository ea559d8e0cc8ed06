package engine

import (
	"github.com/google/uuid"

	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/hierarchy"
	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/transaction"
)

// AddRow adds row under parentID, or as a root when parentID is nil, and
// returns the new row's id. A row without a primary key gets a generated
// UUID. Adding under an unknown parent fails with *model.InvalidParentError
// and leaves the grid unchanged.
func (g *Grid) AddRow(row model.Row, parentID model.RowID) (model.RowID, error) {
	if err := g.ensureBuilt(); err != nil {
		return nil, err
	}
	var parent *model.Record
	if parentID != nil {
		var err error
		if parent, err = g.Record(parentID); err != nil {
			return nil, &model.InvalidParentError{ParentID: parentID}
		}
	}

	value := row.Clone()
	if value == nil {
		value = model.Row{}
	}
	var id model.RowID
	if pk := g.opts.PrimaryKey; pk != "" {
		if v, ok := model.NormalizeID(value[pk]); ok {
			id = v
		} else {
			id = uuid.NewString()
			value[pk] = id
		}
		if _, exists := g.built.Records[id]; exists {
			return nil, &model.DuplicateRowIDError{RowID: id}
		}
	} else {
		id = uuid.NewString()
	}

	tx := transaction.Transaction{ID: id, Type: transaction.Add, Value: value}
	if parent != nil {
		tx.ParentID = parent.RowID
	}
	if g.hopts.Mode() == hierarchy.ModeForeignKey {
		if parent != nil {
			value[g.opts.ForeignKey] = parent.Data[g.opts.PrimaryKey]
		} else {
			value[g.opts.ForeignKey] = nil
		}
	}
	if err := g.record([]transaction.Transaction{tx}, []model.Row{nil}); err != nil {
		return nil, err
	}
	if parent != nil {
		g.store.SetExpanded(g.resolveCommitted(parent.RowID), true)
	}
	return g.resolveCommitted(id), nil
}

// UpdateRow shallow-merges patch into the row. Changing the primary key
// fails with model.ErrImmutableKey. In foreign-key mode a patch may move the
// row under another parent; a move that would create a cycle is rejected.
func (g *Grid) UpdateRow(id model.RowID, patch model.Row) error {
	if err := g.ensureBuilt(); err != nil {
		return err
	}
	rec, err := g.Record(id)
	if err != nil {
		return err
	}
	tx := transaction.Transaction{ID: rec.RowID, Type: transaction.Update, Value: patch.Clone()}
	return g.record([]transaction.Transaction{tx}, []model.Row{rec.Data})
}

// DeleteRow removes the row. In child-data-key mode the row's subtree goes
// with it. In foreign-key mode descendants are deleted too when
// CascadeOnDelete is set, and otherwise promoted to roots.
func (g *Grid) DeleteRow(id model.RowID) error {
	if err := g.ensureBuilt(); err != nil {
		return err
	}
	rec, err := g.Record(id)
	if err != nil {
		return err
	}
	txs := []transaction.Transaction{{ID: rec.RowID, Type: transaction.Delete}}
	bases := []model.Row{rec.Data}
	if g.opts.CascadeOnDelete && g.hopts.Mode() == hierarchy.ModeForeignKey {
		for _, d := range rec.Descendants() {
			txs = append(txs, transaction.Transaction{ID: d.RowID, Type: transaction.Delete})
			bases = append(bases, d.Data)
		}
	}
	if err := g.record(txs, bases); err != nil {
		return err
	}
	if g.edit.active && (g.edit.id == rec.RowID || !g.rowExists(g.edit.id)) {
		g.EndRowEdit()
	}
	return nil
}

// record logs an edit unit, rebuilds, and commits it right away unless batch
// editing is on. A unit that leaves the hierarchy unbuildable is rolled back.
func (g *Grid) record(txs []transaction.Transaction, bases []model.Row) error {
	if err := g.tx.AddAll(txs, bases); err != nil {
		return err
	}
	if err := g.Rebuild(); err != nil {
		g.tx.Rollback()
		if rerr := g.Rebuild(); rerr != nil {
			debug.Log("engine: rebuild after rollback: %v", rerr)
		}
		return err
	}
	if !g.tx.Enabled() {
		return g.CommitEdits()
	}
	return nil
}

// resolveCommitted maps an id recorded before an immediate commit to the id
// the row has now. Only rows identified by object identity change ids.
func (g *Grid) resolveCommitted(id model.RowID) model.RowID {
	if to, ok := g.lastRekey[id]; ok {
		return to
	}
	return id
}

func (g *Grid) rowExists(id model.RowID) bool {
	_, err := g.Record(id)
	return err == nil
}

// PendingEdits returns the aggregated pending states in order of first
// touch.
func (g *Grid) PendingEdits() []*transaction.State {
	return g.tx.States()
}

// Transactions returns the pending transaction log.
func (g *Grid) Transactions() []transaction.Transaction {
	return g.tx.Transactions()
}

// CanUndo reports whether there is a pending edit to undo.
func (g *Grid) CanUndo() bool { return g.tx.CanUndo() }

// CanRedo reports whether there is an undone edit to redo.
func (g *Grid) CanRedo() bool { return g.tx.CanRedo() }

// Undo reverts the latest pending edit.
func (g *Grid) Undo() (bool, error) {
	if !g.tx.Undo() {
		return false, nil
	}
	return true, g.Rebuild()
}

// Redo reapplies the latest undone edit.
func (g *Grid) Redo() (bool, error) {
	if !g.tx.Redo() {
		return false, nil
	}
	return true, g.Rebuild()
}

// DiscardEdits drops pending edits of ids, or all of them.
func (g *Grid) DiscardEdits(ids ...model.RowID) error {
	g.tx.Clear(normalizeAll(ids)...)
	return g.Rebuild()
}

// CommitEdits writes pending edits of ids (or all of them) into the grid's
// raw rows. The caller's original rows are never modified; committed rows
// are clones.
func (g *Grid) CommitEdits(ids ...model.RowID) error {
	states := g.tx.Commit(normalizeAll(ids)...)
	g.lastRekey = nil
	if len(states) == 0 {
		return nil
	}
	if g.hopts.Mode() == hierarchy.ModeForeignKey {
		g.base = transaction.MergeFlat(g.base, states, g.opts.PrimaryKey)
		return g.Rebuild()
	}

	merged := transaction.MergeNested(g.base, states, g.opts.ChildDataKey, g.hopts.IdentityOf)
	g.base = merged.Rows
	if g.opts.PrimaryKey == "" {
		// Rows are identified by object identity; the committed rows are new
		// objects, so move expansion and selection over to them.
		mapping := make(map[model.RowID]model.RowID, len(merged.Origin))
		for ref, id := range merged.Origin {
			mapping[id] = ref
		}
		g.store.Rekey(mapping)
		g.selection.rekey(mapping)
		if g.edit.active {
			if to, ok := mapping[g.edit.id]; ok {
				g.edit.id = to
			}
		}
		g.lastRekey = mapping
	}
	return g.Rebuild()
}

func normalizeAll(ids []model.RowID) []model.RowID {
	out := make([]model.RowID, len(ids))
	for i, id := range ids {
		out[i] = normalize(id)
	}
	return out
}
