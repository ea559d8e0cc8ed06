// Package transaction keeps pending row edits as an overlay on top of the
// base data until they are committed or discarded.
//
// Every edit is logged. The log is folded into one aggregated state per row,
// and undo/redo move entries between the log and a redo stack.
package transaction

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// Type is the kind of an edit.
type Type int

const (
	Add Type = iota + 1
	Update
	Delete
)

func (t Type) String() string {
	switch t {
	case Add:
		return "add"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// ErrAlreadyAdded is returned when a row id is added twice.
var ErrAlreadyAdded = errors.New("row already has a pending add")

// Transaction is one edit. ParentID is only meaningful for Add.
type Transaction struct {
	ID       model.RowID
	Type     Type
	Value    model.Row
	ParentID model.RowID
}

// State is the aggregated pending change of one row. Value holds the merged
// patch for updates and the full row for adds. Base is the row as it was
// before the first edit (nil for adds).
type State struct {
	ID       model.RowID
	Type     Type
	Value    model.Row
	ParentID model.RowID
	Base     model.Row
}

type entry struct {
	tx    Transaction
	base  model.Row
	group int
}

// Service aggregates transactions per row.
type Service struct {
	primaryKey string
	enabled    bool

	log    []entry
	redo   []entry
	states map[model.RowID]*State
	order  []model.RowID
	groups int
}

// NewService creates a service. primaryKey is the field that may not be
// changed by updates; it may be empty. enabled selects batch editing: when
// false, callers are expected to commit right after every edit.
func NewService(primaryKey string, enabled bool) *Service {
	return &Service{
		primaryKey: primaryKey,
		enabled:    enabled,
		states:     make(map[model.RowID]*State),
	}
}

// Enabled reports whether batch editing is on.
func (s *Service) Enabled() bool {
	return s.enabled
}

// Add records a transaction. base is the row as currently stored (nil for
// adds). On error nothing is recorded.
func (s *Service) Add(tx Transaction, base model.Row) error {
	return s.AddAll([]Transaction{tx}, []model.Row{base})
}

// AddAll records transactions as one unit: they are undone and redone
// together, and none is recorded if any fails. bases[i] belongs to txs[i].
func (s *Service) AddAll(txs []Transaction, bases []model.Row) error {
	if len(txs) != len(bases) {
		return fmt.Errorf("transaction: %d transactions with %d base rows", len(txs), len(bases))
	}
	for i, tx := range txs {
		if tx.ID == nil {
			return fmt.Errorf("transaction %s: missing row id", tx.Type)
		}
		if err := s.apply(tx, bases[i]); err != nil {
			if i > 0 {
				s.replay()
			}
			return err
		}
	}
	s.groups++
	for i, tx := range txs {
		s.log = append(s.log, entry{tx: tx, base: bases[i], group: s.groups})
		debug.Log("transaction: %s %v", tx.Type, tx.ID)
	}
	s.redo = s.redo[:0]
	return nil
}

func (s *Service) apply(tx Transaction, base model.Row) error {
	st, ok := s.states[tx.ID]
	if ok && st.Type == Delete {
		return fmt.Errorf("%s %v: %w", tx.Type, tx.ID, model.ErrRowDeleted)
	}
	if tx.Type == Update || tx.Type == Add {
		if err := s.checkKey(tx); err != nil {
			return err
		}
	}

	if !ok {
		switch tx.Type {
		case Add:
			s.put(&State{ID: tx.ID, Type: Add, Value: tx.Value.Clone(), ParentID: tx.ParentID})
		case Update:
			s.put(&State{ID: tx.ID, Type: Update, Value: tx.Value.Clone(), Base: base})
		case Delete:
			s.put(&State{ID: tx.ID, Type: Delete, Base: base})
		default:
			return fmt.Errorf("transaction %v: unknown type %d", tx.ID, tx.Type)
		}
		return nil
	}

	switch tx.Type {
	case Add:
		return fmt.Errorf("add %v: %w", tx.ID, ErrAlreadyAdded)
	case Update:
		merge(st.Value, tx.Value)
	case Delete:
		if st.Type == Add {
			s.drop(tx.ID)
			return nil
		}
		st.Type = Delete
		st.Value = nil
	default:
		return fmt.Errorf("transaction %v: unknown type %d", tx.ID, tx.Type)
	}
	return nil
}

// checkKey rejects values that would move a row to another identity.
func (s *Service) checkKey(tx Transaction) error {
	if s.primaryKey == "" {
		return nil
	}
	v, ok := tx.Value[s.primaryKey]
	if !ok {
		return nil
	}
	id, ok := model.NormalizeID(v)
	if !ok || id != tx.ID {
		return fmt.Errorf("%s %v: %w", tx.Type, tx.ID, model.ErrImmutableKey)
	}
	return nil
}

func merge(dst, patch model.Row) {
	for k, v := range patch {
		dst[k] = v
	}
}

func (s *Service) put(st *State) {
	if st.Value == nil && st.Type != Delete {
		st.Value = model.Row{}
	}
	s.states[st.ID] = st
	s.order = append(s.order, st.ID)
}

func (s *Service) drop(id model.RowID) {
	delete(s.states, id)
	s.order = slices.DeleteFunc(s.order, func(x model.RowID) bool { return x == id })
}

// State returns the aggregated state of id, if any.
func (s *Service) State(id model.RowID) (*State, bool) {
	st, ok := s.states[id]
	return st, ok
}

// States returns every aggregated state in order of first touch.
func (s *Service) States() []*State {
	out := make([]*State, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.states[id])
	}
	return out
}

// Len returns the number of rows with pending changes.
func (s *Service) Len() int {
	return len(s.states)
}

// Transactions returns the logged transactions, oldest first.
func (s *Service) Transactions() []Transaction {
	out := make([]Transaction, len(s.log))
	for i, e := range s.log {
		out[i] = e.tx
	}
	return out
}

// CanUndo reports whether there is a transaction to undo.
func (s *Service) CanUndo() bool {
	return len(s.log) > 0
}

// CanRedo reports whether there is an undone transaction to redo.
func (s *Service) CanRedo() bool {
	return len(s.redo) > 0
}

// Undo reverts the latest transaction, or the latest AddAll unit.
func (s *Service) Undo() bool {
	last := s.popGroup()
	if last == nil {
		return false
	}
	s.redo = append(s.redo, last...)
	s.replay()
	return true
}

// Rollback reverts the latest unit like Undo but does not make it redoable.
func (s *Service) Rollback() bool {
	if s.popGroup() == nil {
		return false
	}
	s.replay()
	return true
}

func (s *Service) popGroup() []entry {
	if len(s.log) == 0 {
		return nil
	}
	g := s.log[len(s.log)-1].group
	i := len(s.log)
	for i > 0 && s.log[i-1].group == g {
		i--
	}
	out := slices.Clone(s.log[i:])
	s.log = s.log[:i]
	return out
}

// Redo reapplies the most recently undone unit.
func (s *Service) Redo() bool {
	if len(s.redo) == 0 {
		return false
	}
	g := s.redo[len(s.redo)-1].group
	i := len(s.redo)
	for i > 0 && s.redo[i-1].group == g {
		i--
	}
	unit := s.redo[i:]
	for _, e := range unit {
		if err := s.apply(e.tx, e.base); err != nil {
			debug.Log("transaction: redo %v: %v", e.tx.ID, err)
			s.replay()
			return false
		}
	}
	s.log = append(s.log, unit...)
	s.redo = s.redo[:i]
	return true
}

// replay rebuilds the aggregated states from the log.
func (s *Service) replay() {
	clear(s.states)
	s.order = s.order[:0]
	for _, e := range s.log {
		if err := s.apply(e.tx, e.base); err != nil {
			debug.Log("transaction: replay %v: %v", e.tx.ID, err)
		}
	}
}

// Clear discards the pending changes of ids, or of every row when none are
// given. The redo stack is dropped.
func (s *Service) Clear(ids ...model.RowID) {
	s.take(ids)
}

// Commit removes the pending changes of ids (every row when none are given)
// and returns them so the caller can write them to the base data.
func (s *Service) Commit(ids ...model.RowID) []*State {
	return s.take(ids)
}

func (s *Service) take(ids []model.RowID) []*State {
	s.redo = nil
	if len(ids) == 0 {
		out := s.States()
		s.log = nil
		clear(s.states)
		s.order = nil
		return out
	}
	var out []*State
	for _, id := range ids {
		if st, ok := s.states[id]; ok {
			out = append(out, st)
			s.drop(id)
		}
	}
	s.log = slices.DeleteFunc(s.log, func(e entry) bool { return slices.Contains(ids, e.tx.ID) })
	return out
}
