package hierarchy

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// cycleError reports every parent loop among the records that could not be
// reached from a root. Records hanging below a loop are not loop members and
// are left out of the report.
func cycleError(ordered, selfRefs []*model.Record, roots []*model.Record) error {
	reachable := make(map[*model.Record]bool, len(ordered))
	var mark func(rec *model.Record)
	mark = func(rec *model.Record) {
		reachable[rec] = true
		for _, c := range rec.Children {
			mark(c)
		}
	}
	for _, r := range roots {
		mark(r)
	}

	index := make(map[*model.Record]int64, len(ordered))
	for i, rec := range ordered {
		index[rec] = int64(i)
	}

	var cycles [][]model.RowID
	for _, rec := range selfRefs {
		cycles = append(cycles, []model.RowID{rec.RowID})
	}

	// Edges point from child to parent; every unreachable record has exactly
	// one outgoing edge, so each strongly connected component with more than
	// one member is a simple loop.
	g := simple.NewDirectedGraph()
	for _, rec := range ordered {
		if reachable[rec] || rec.Parent == nil {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(index[rec]), simple.Node(index[rec.Parent])))
	}
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		members := make(map[int64]bool, len(scc))
		start := int64(-1)
		for _, n := range scc {
			members[n.ID()] = true
			if start < 0 || n.ID() < start {
				start = n.ID()
			}
		}
		var loop []model.RowID
		for rec := ordered[start]; ; rec = rec.Parent {
			loop = append(loop, rec.RowID)
			if !members[index[rec.Parent]] || rec.Parent == ordered[start] {
				break
			}
		}
		cycles = append(cycles, loop)
	}

	sort.SliceStable(cycles, func(i, j int) bool {
		return firstIndex(cycles[i], ordered) < firstIndex(cycles[j], ordered)
	})
	return &model.CyclicHierarchyError{Cycles: cycles}
}

func firstIndex(loop []model.RowID, ordered []*model.Record) int {
	for i, rec := range ordered {
		if rec.RowID == loop[0] {
			return i
		}
	}
	return len(ordered)
}
