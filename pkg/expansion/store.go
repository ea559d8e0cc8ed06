// Package expansion tracks which rows of a tree grid are expanded.
//
// Only explicit user changes are stored; rows absent from the map fall back to
// the default rule "expanded if level < DefaultDepth".
package expansion

import (
	"maps"
	"math"
	"slices"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// Infinite is the default depth used by ExpandAll.
const Infinite = math.MaxInt

// ToggleEvent is the proposal handed to subscribers before an expansion
// change is committed. Setting Cancel vetoes the change.
type ToggleEvent struct {
	RowID    model.RowID
	Record   *model.Record
	Expanded bool // state the row will have if the change is committed
	Cancel   bool
}

// Store is a mapping from row identity to expansion state.
type Store struct {
	defaultDepth int
	explicit     map[model.RowID]bool

	subscribers map[int]func(*ToggleEvent)
	nextSub     int
}

// NewStore creates a store with the given default expand depth.
func NewStore(defaultDepth int) *Store {
	return &Store{
		defaultDepth: defaultDepth,
		explicit:     make(map[model.RowID]bool),
		subscribers:  make(map[int]func(*ToggleEvent)),
	}
}

// DefaultDepth returns the depth below which rows without an explicit entry
// are expanded.
func (s *Store) DefaultDepth() int {
	return s.defaultDepth
}

// SetDefaultDepth changes the fallback depth. Explicit entries are kept.
func (s *Store) SetDefaultDepth(depth int) {
	s.defaultDepth = depth
}

// IsExpanded returns the explicit entry for the record if present, otherwise
// whether its level is below the default depth.
func (s *Store) IsExpanded(rec *model.Record) bool {
	if rec == nil {
		return false
	}
	if v, ok := s.explicit[rec.RowID]; ok {
		return v
	}
	return rec.Level < s.defaultDepth
}

// Explicit returns the explicit entry for id, if any.
func (s *Store) Explicit(id model.RowID) (expanded, ok bool) {
	expanded, ok = s.explicit[id]
	return expanded, ok
}

// SetExpanded stores an explicit entry without notifying subscribers.
func (s *Store) SetExpanded(id model.RowID, expanded bool) {
	s.explicit[id] = expanded
}

// Subscribe registers fn to receive toggle proposals and returns a function
// that removes the subscription.
func (s *Store) Subscribe(fn func(*ToggleEvent)) (unsubscribe func()) {
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() { delete(s.subscribers, id) }
}

// Propose builds a proposal to set rec to expanded and lets every subscriber
// inspect it. Nothing is stored until Commit.
func (s *Store) Propose(rec *model.Record, expanded bool) *ToggleEvent {
	ev := &ToggleEvent{RowID: rec.RowID, Record: rec, Expanded: expanded}
	for _, id := range slices.Sorted(maps.Keys(s.subscribers)) {
		s.subscribers[id](ev)
	}
	return ev
}

// Commit stores a proposal unless it was canceled and reports whether the
// state was written.
func (s *Store) Commit(ev *ToggleEvent) bool {
	if ev == nil || ev.Cancel {
		return false
	}
	s.explicit[ev.RowID] = ev.Expanded
	return true
}

// Toggle flips the row's state, creating an explicit entry from the computed
// default when absent. It returns false when a subscriber vetoed the change.
func (s *Store) Toggle(rec *model.Record) bool {
	if rec == nil {
		return false
	}
	return s.Commit(s.Propose(rec, !s.IsExpanded(rec)))
}

// Request proposes setting rec to expanded and commits unless vetoed. A
// request that would not change the state is a no-op that reports true.
func (s *Store) Request(rec *model.Record, expanded bool) bool {
	if rec == nil {
		return false
	}
	if s.IsExpanded(rec) == expanded {
		return true
	}
	return s.Commit(s.Propose(rec, expanded))
}

// ExpandAll expands every row. Row-specific exceptions are dropped.
func (s *Store) ExpandAll() {
	s.defaultDepth = Infinite
	clear(s.explicit)
}

// CollapseAll collapses every row. Row-specific exceptions are dropped.
func (s *Store) CollapseAll() {
	s.defaultDepth = 0
	clear(s.explicit)
}

// ReplaceAll replaces the explicit entries with a copy of states. The store
// never aliases the caller's map.
func (s *Store) ReplaceAll(states map[model.RowID]bool) {
	s.explicit = maps.Clone(states)
	if s.explicit == nil {
		s.explicit = make(map[model.RowID]bool)
	}
}

// Snapshot returns a copy of the explicit entries.
func (s *Store) Snapshot() map[model.RowID]bool {
	return maps.Clone(s.explicit)
}

// Len returns the number of explicit entries.
func (s *Store) Len() int {
	return len(s.explicit)
}

// Rekey moves explicit entries from old identities to new ones. Entries whose
// identity is not in the mapping are kept as they are.
func (s *Store) Rekey(mapping map[model.RowID]model.RowID) {
	if len(mapping) == 0 {
		return
	}
	next := make(map[model.RowID]bool, len(s.explicit))
	for id, v := range s.explicit {
		if to, ok := mapping[id]; ok {
			next[to] = v
			continue
		}
		next[id] = v
	}
	s.explicit = next
}

// Prune drops explicit entries for identities that keep reports as gone.
func (s *Store) Prune(keep func(model.RowID) bool) int {
	n := 0
	for id := range s.explicit {
		if !keep(id) {
			delete(s.explicit, id)
			n++
		}
	}
	return n
}
