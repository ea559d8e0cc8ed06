package pipeline

import (
	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// Logic joins the operands of a filter tree.
type Logic int

const (
	And Logic = iota
	Or
)

func (l Logic) String() string {
	if l == Or {
		return "or"
	}
	return "and"
}

// FilterOperand is a *Condition or a nested *FilterTree.
type FilterOperand interface {
	Match(row model.Row) bool
}

// Condition tests one field of a row.
type Condition struct {
	Field      string
	Condition  Operation
	SearchVal  any
	IgnoreCase bool
}

// Match evaluates the condition against row.
func (c *Condition) Match(row model.Row) bool {
	if c.Condition.Logic == nil {
		return false
	}
	return c.Condition.Logic(Resolve(row, c.Field), c.SearchVal, c.IgnoreCase)
}

// FilterTree is a boolean expression over conditions.
type FilterTree struct {
	Operator Logic
	Operands []FilterOperand
}

// NewFilterTree returns a tree joining operands with op.
func NewFilterTree(op Logic, operands ...FilterOperand) *FilterTree {
	return &FilterTree{Operator: op, Operands: operands}
}

// IsEmpty reports whether the tree holds no condition: every operand, if
// any, is itself an empty tree.
func (t *FilterTree) IsEmpty() bool {
	if t == nil {
		return true
	}
	for _, op := range t.Operands {
		sub, ok := op.(*FilterTree)
		if !ok || !sub.IsEmpty() {
			return false
		}
	}
	return true
}

// Match evaluates the tree against row. An empty tree matches everything.
func (t *FilterTree) Match(row model.Row) bool {
	if t.IsEmpty() {
		return true
	}
	for _, op := range t.Operands {
		m := op.Match(row)
		if t.Operator == Or && m {
			return true
		}
		if t.Operator == And && !m {
			return false
		}
	}
	return t.Operator == And
}

// ForceExpander receives the ancestors a filter keeps open.
type ForceExpander interface {
	SetExpanded(id model.RowID, expanded bool)
}

// FilterResult is the output of the filter stage.
type FilterResult struct {
	Roots   []*model.Node
	Matched int
}

// Filter keeps every node that matches the tree or has a matching
// descendant. A node kept only for its descendants is flagged
// IsFilteredOutParent. Every kept node with kept children is expanded in
// store so matches are visible. An empty tree returns the input untouched.
func Filter(roots []*model.Node, tree *FilterTree, store ForceExpander) FilterResult {
	if tree.IsEmpty() {
		return FilterResult{Roots: roots, Matched: countNodes(roots)}
	}
	defer metrics.Timer(metrics.FilterStage)()

	f := &filterRun{tree: tree, store: store}
	out := f.level(roots)
	debug.Log("filter: %d matched, %d roots kept", f.matched, len(out))
	return FilterResult{Roots: out, Matched: f.matched}
}

type filterRun struct {
	tree    *FilterTree
	store   ForceExpander
	matched int
}

func (f *filterRun) level(nodes []*model.Node) []*model.Node {
	var out []*model.Node
	for _, n := range nodes {
		children := f.level(n.Children)
		rec := n.Record
		matches := f.tree.Match(rec.Data)
		if !matches && len(children) == 0 {
			rec.IsFilteredOutParent = false
			continue
		}
		if matches {
			f.matched++
		}
		rec.IsFilteredOutParent = !matches
		if len(children) > 0 && f.store != nil {
			f.store.SetExpanded(rec.RowID, true)
		}
		out = append(out, &model.Node{Record: rec, Children: children})
	}
	return out
}

func countNodes(nodes []*model.Node) int {
	n := 0
	model.WalkNodes(nodes, func(*model.Node) bool {
		n++
		return true
	})
	return n
}

// ClearFilterFlags resets IsFilteredOutParent on every record of the forest.
func ClearFilterFlags(roots []*model.Node) {
	model.WalkNodes(roots, func(n *model.Node) bool {
		n.Record.IsFilteredOutParent = false
		return true
	})
}
