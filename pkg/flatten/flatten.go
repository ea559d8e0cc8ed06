// Package flatten projects a node forest onto the ordered list of rows a grid
// shows.
package flatten

import (
	"iter"

	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// ExpansionState answers whether a record is expanded.
type ExpansionState interface {
	IsExpanded(rec *model.Record) bool
}

// Visible returns the pre-order sequence of nodes whose every ancestor is
// expanded. The sequence is lazy and restartable: each range walks the forest
// again and refreshes every record's cached Expanded flag, including records
// below collapsed ancestors that are not yielded.
//
// Sibling order is never changed here.
func Visible(roots []*model.Node, state ExpansionState) iter.Seq[*model.Node] {
	return func(yield func(*model.Node) bool) {
		defer metrics.Timer(metrics.Flatten)()
		walkVisible(roots, state, true, yield)
	}
}

func walkVisible(nodes []*model.Node, state ExpansionState, shown bool, yield func(*model.Node) bool) bool {
	for _, n := range nodes {
		rec := n.Record
		rec.Expanded = state.IsExpanded(rec)
		if shown && !yield(n) {
			return false
		}
		if !walkVisible(n.Children, state, shown && rec.Expanded, yield) {
			return false
		}
	}
	return true
}

// All returns every node in pre-order, ignoring expansion.
func All(roots []*model.Node) iter.Seq[*model.Node] {
	return func(yield func(*model.Node) bool) {
		walkAll(roots, yield)
	}
}

func walkAll(nodes []*model.Node, yield func(*model.Node) bool) bool {
	for _, n := range nodes {
		if !yield(n) || !walkAll(n.Children, yield) {
			return false
		}
	}
	return true
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[*model.Node]) []*model.Node {
	var out []*model.Node
	for n := range seq {
		out = append(out, n)
	}
	return out
}

// Records drains seq into the records it points at.
func Records(seq iter.Seq[*model.Node]) []*model.Record {
	var out []*model.Record
	for n := range seq {
		out = append(out, n.Record)
	}
	return out
}

// Rows drains seq into the raw rows of its records.
func Rows(seq iter.Seq[*model.Node]) []model.Row {
	var out []model.Row
	for n := range seq {
		out = append(out, n.Record.Data)
	}
	return out
}
