// Package model defines the record entity shared by every stage of the tree
// grid data engine: raw rows, row identity, hierarchy records and the derived
// view nodes produced by the transform pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Row is an opaque raw row object. The engine never mutates a caller's row;
// it clones rows (shallowly) when an edit has to be overlaid.
type Row map[string]any

// Clone returns a shallow copy of the row. Nested values (including embedded
// child collections) are shared with the original.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// RowID identifies a row. It always holds a comparable value: either a
// normalized primary-key value or a RowRef.
type RowID = any

// RowRef identifies a row by the row object itself. It is used in nested mode
// when no primary key is configured. The address of a map is stable for its
// lifetime, so a RowRef stays valid as long as some record holds the row.
type RowRef uintptr

func (r RowRef) String() string {
	return fmt.Sprintf("row@%#x", uintptr(r))
}

// RefOf returns the identity of the row object itself.
func RefOf(r Row) RowRef {
	if r == nil {
		return 0
	}
	return RowRef(reflect.ValueOf(r).Pointer())
}

// NormalizeID converts a primary-key value into a canonical RowID so that the
// same key decoded from different sources (JSON numbers, SQLite integers,
// literal ints in Go code) compares equal. Integral numbers become int64,
// other floats stay float64. ok is false for nil, NaN and uncomparable values.
func NormalizeID(v any) (id RowID, ok bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return uint64ID(uint64(x)), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return uint64ID(x), true
	case float32:
		return floatID(float64(x))
	case float64:
		return floatID(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return floatID(f)
		}
		return string(x), true
	case string, bool, RowRef:
		return x, true
	}
	if !reflect.TypeOf(v).Comparable() {
		return nil, false
	}
	return v, true
}

func uint64ID(u uint64) RowID {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

// NaN never equals itself, so it cannot key a map.
func floatID(f float64) (RowID, bool) {
	if math.IsNaN(f) {
		return nil, false
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64 {
		return int64(f), true
	}
	return f, true
}

// IDString renders a RowID for logs, persisted state and error messages.
func IDString(id RowID) string {
	if id == nil {
		return "<nil>"
	}
	return fmt.Sprint(id)
}

// RowKind discriminates the two row variants a grid renders.
type RowKind int

const (
	// FlatRow is a record with no parent and no children.
	FlatRow RowKind = iota
	// TreeRow is a record that takes part in a hierarchy.
	TreeRow
)

func (k RowKind) String() string {
	switch k {
	case FlatRow:
		return "flat"
	case TreeRow:
		return "tree"
	default:
		return fmt.Sprintf("RowKind(%d)", int(k))
	}
}

// Record is a node of the hierarchy built from the raw rows.
type Record struct {
	RowID    RowID
	Data     Row       // shared with the source dataset, never cloned here
	Children []*Record // source order
	Parent   *Record   // navigation only
	Level    int       // 0 for roots

	// Expanded is a snapshot of the expansion store, refreshed by every
	// flatten pass.
	Expanded bool
	// IsFilteredOutParent marks a record retained by the filter stage only
	// because one of its descendants matched.
	IsFilteredOutParent bool

	Kind RowKind
}

// IsLeaf reports whether the record has no children.
func (r *Record) IsLeaf() bool {
	return len(r.Children) == 0
}

// Ancestors returns the chain of ancestors from the root down to the parent.
func (r *Record) Ancestors() []*Record {
	var chain []*Record
	for p := r.Parent; p != nil; p = p.Parent {
		chain = append(chain, p)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// IsDescendantOf reports whether anc is a strict ancestor of r.
func (r *Record) IsDescendantOf(anc *Record) bool {
	for p := r.Parent; p != nil; p = p.Parent {
		if p == anc {
			return true
		}
	}
	return false
}

// Descendants returns every descendant in pre-order.
func (r *Record) Descendants() []*Record {
	var out []*Record
	var walk func(rec *Record)
	walk = func(rec *Record) {
		for _, c := range rec.Children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(r)
	return out
}

// UpdateKind recomputes the discriminant from the record's links.
func (r *Record) UpdateKind() {
	if r.Parent == nil && len(r.Children) == 0 {
		r.Kind = FlatRow
		return
	}
	r.Kind = TreeRow
}

// Node is a view over a record produced by a pipeline stage. Stages build new
// node forests with their own child ordering and membership; the records they
// point at are shared, which keeps row identity stable across stages.
type Node struct {
	Record   *Record
	Children []*Node
}

// NewForest mirrors the record hierarchy as a node forest.
func NewForest(roots []*Record) []*Node {
	out := make([]*Node, 0, len(roots))
	for _, r := range roots {
		out = append(out, newNode(r))
	}
	return out
}

func newNode(r *Record) *Node {
	n := &Node{Record: r}
	if len(r.Children) > 0 {
		n.Children = make([]*Node, 0, len(r.Children))
		for _, c := range r.Children {
			n.Children = append(n.Children, newNode(c))
		}
	}
	return n
}

// WalkNodes visits every node in pre-order. Returning false from fn stops
// descent into that node's children.
func WalkNodes(roots []*Node, fn func(n *Node) bool) {
	for _, n := range roots {
		if fn(n) {
			WalkNodes(n.Children, fn)
		}
	}
}
