package flatten

import (
	"testing"

	"github.com/vanderheijden86/treegrid/pkg/expansion"
	"github.com/vanderheijden86/treegrid/pkg/hierarchy"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// sample builds:
//
//	1
//	├── 2
//	│   └── 4
//	│       └── 6
//	└── 3
//	5
func sample(t *testing.T) *hierarchy.Result {
	t.Helper()
	rows := []model.Row{
		{"id": 1},
		{"id": 2, "parent": 1},
		{"id": 3, "parent": 1},
		{"id": 4, "parent": 2},
		{"id": 5},
		{"id": 6, "parent": 4},
	}
	res, err := hierarchy.Build(rows, hierarchy.Options{PrimaryKey: "id", ForeignKey: "parent"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return res
}

func visibleIDs(roots []*model.Node, state ExpansionState) []int64 {
	var out []int64
	for n := range Visible(roots, state) {
		out = append(out, n.Record.RowID.(int64))
	}
	return out
}

func assertIDs(t *testing.T, got []int64, want ...int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestVisibleHonorsDefaultDepth(t *testing.T) {
	res := sample(t)
	forest := model.NewForest(res.Roots)

	assertIDs(t, visibleIDs(forest, expansion.NewStore(0)), 1, 5)
	// Depth 1: roots expanded, so level-1 rows are shown; level 2 is hidden.
	assertIDs(t, visibleIDs(forest, expansion.NewStore(1)), 1, 2, 3, 5)
	assertIDs(t, visibleIDs(forest, expansion.NewStore(expansion.Infinite)), 1, 2, 4, 6, 3, 5)
}

func TestVisibleCollapsedAncestorHidesSubtree(t *testing.T) {
	res := sample(t)
	forest := model.NewForest(res.Roots)
	store := expansion.NewStore(expansion.Infinite)
	store.SetExpanded(int64(2), false)

	assertIDs(t, visibleIDs(forest, store), 1, 2, 3, 5)

	// Re-expanding restores the deeper rows, whose own state was kept.
	store.SetExpanded(int64(2), true)
	assertIDs(t, visibleIDs(forest, store), 1, 2, 4, 6, 3, 5)
}

func TestVisibleRefreshesCachedFlagBelowCollapsed(t *testing.T) {
	res := sample(t)
	forest := model.NewForest(res.Roots)
	store := expansion.NewStore(0)
	store.SetExpanded(int64(4), true)

	for range Visible(forest, store) {
	}
	if !res.Records[int64(4)].Expanded {
		t.Error("expected hidden record's cached flag refreshed")
	}
	if res.Records[int64(1)].Expanded {
		t.Error("expected root collapsed")
	}
}

func TestVisibleIsRestartableAndStoppable(t *testing.T) {
	res := sample(t)
	forest := model.NewForest(res.Roots)
	store := expansion.NewStore(expansion.Infinite)
	seq := Visible(forest, store)

	first := Collect(seq)
	second := Collect(seq)
	if len(first) != 6 || len(second) != 6 {
		t.Fatalf("expected both walks to yield 6 nodes, got %d and %d", len(first), len(second))
	}

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("expected early stop after 2, got %d", n)
	}
}

func TestAllIgnoresExpansion(t *testing.T) {
	res := sample(t)
	forest := model.NewForest(res.Roots)
	recs := Records(All(forest))
	if len(recs) != 6 {
		t.Fatalf("expected 6 records, got %d", len(recs))
	}
	rows := Rows(All(forest))
	if rows[1]["id"] != 2 || rows[2]["id"] != 4 {
		t.Errorf("expected pre-order rows, got %v", rows)
	}
}

func TestVisibilityPredicate(t *testing.T) {
	res := sample(t)
	forest := model.NewForest(res.Roots)
	store := expansion.NewStore(1)
	store.SetExpanded(int64(2), true)
	store.SetExpanded(int64(1), false)

	shown := make(map[model.RowID]bool)
	for n := range Visible(forest, store) {
		shown[n.Record.RowID] = true
	}
	for id, rec := range res.Records {
		want := true
		for _, a := range rec.Ancestors() {
			if !store.IsExpanded(a) {
				want = false
			}
		}
		if shown[id] != want {
			t.Errorf("record %v: shown=%v, want %v", id, shown[id], want)
		}
	}
}
