package pipeline

import (
	"slices"

	"github.com/vanderheijden86/treegrid/pkg/flatten"
	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// SortDirection is the direction of a sort expression.
type SortDirection int

const (
	SortNone SortDirection = iota
	SortAscending
	SortDescending
)

func (d SortDirection) String() string {
	switch d {
	case SortAscending:
		return "asc"
	case SortDescending:
		return "desc"
	default:
		return "none"
	}
}

// SortExpression sorts by one field. Strategy defaults to DefaultCompare.
type SortExpression struct {
	Field      string        `json:"field" yaml:"field"`
	Dir        SortDirection `json:"dir" yaml:"dir"`
	IgnoreCase bool          `json:"ignore_case" yaml:"ignore_case"`
	Strategy   Comparator    `json:"-" yaml:"-"`
}

// SortResult is the output of the sort stage.
type SortResult struct {
	Roots []*model.Node
	// FlatRecords is every record of the sorted forest in pre-order, ignoring
	// expansion.
	FlatRecords []*model.Record
}

// activeExpressions drops expressions that do not sort.
func activeExpressions(exprs []SortExpression) []SortExpression {
	var out []SortExpression
	for _, e := range exprs {
		if e.Dir == SortNone || e.Field == "" {
			continue
		}
		if e.Strategy == nil {
			e.Strategy = DefaultCompare
		}
		out = append(out, e)
	}
	return out
}

// Sort reorders the children of every node independently. The first
// expression decides; later ones break ties; remaining ties keep their input
// order. The input forest is not modified.
func Sort(roots []*model.Node, exprs []SortExpression) SortResult {
	defer metrics.Timer(metrics.SortStage)()

	active := activeExpressions(exprs)
	out := roots
	if len(active) > 0 {
		out = sortLevel(roots, active)
	}
	return SortResult{
		Roots:       out,
		FlatRecords: flatten.Records(flatten.All(out)),
	}
}

func sortLevel(nodes []*model.Node, exprs []SortExpression) []*model.Node {
	if len(nodes) == 0 {
		return nil
	}
	sorted := make([]*model.Node, len(nodes))
	for i, n := range nodes {
		sorted[i] = &model.Node{Record: n.Record, Children: sortLevel(n.Children, exprs)}
	}
	slices.SortStableFunc(sorted, func(a, b *model.Node) int {
		return compareRows(a.Record.Data, b.Record.Data, exprs)
	})
	return sorted
}

func compareRows(a, b model.Row, exprs []SortExpression) int {
	for _, e := range exprs {
		c := e.Strategy(Resolve(a, e.Field), Resolve(b, e.Field), e.IgnoreCase)
		if e.Dir == SortDescending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}
