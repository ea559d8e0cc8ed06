package engine

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/vanderheijden86/treegrid/pkg/expansion"
	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/pipeline"
)

// orgRows is a small foreign-key hierarchy:
//
//	1 Ann
//	├── 2 Bob
//	│   └── 4 Dan
//	└── 3 Cid
//	5 Eve
//	6 Fay
func orgRows() []model.Row {
	return []model.Row{
		{"id": 1, "parentId": nil, "name": "Ann", "age": 40},
		{"id": 2, "parentId": 1, "name": "Bob", "age": 30},
		{"id": 3, "parentId": 1, "name": "Cid", "age": 30},
		{"id": 4, "parentId": 2, "name": "Dan", "age": 25},
		{"id": 5, "parentId": nil, "name": "Eve", "age": 35},
		{"id": 6, "parentId": nil, "name": "Fay", "age": 20},
	}
}

func newGrid(t *testing.T, opts Options, rows []model.Row) *Grid {
	t.Helper()
	if opts.PrimaryKey == "" && opts.ChildDataKey == "" {
		opts.PrimaryKey = "id"
	}
	if opts.ForeignKey == "" && opts.ChildDataKey == "" {
		opts.ForeignKey = "parentId"
	}
	g, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := g.SetData(rows); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	return g
}

func process(t *testing.T, g *Grid, params Params) *View {
	t.Helper()
	v, err := g.Process(params)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return v
}

func visibleIDs(v *View) []model.RowID {
	out := make([]model.RowID, len(v.Records))
	for i, r := range v.Records {
		out[i] = r.RowID
	}
	return out
}

func int64s(ids ...int) []model.RowID {
	out := make([]model.RowID, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []Options{
		{},
		{PrimaryKey: "id", ForeignKey: "parentId", ChildDataKey: "children"},
		{ForeignKey: "parentId"},
	}
	for _, opts := range tests {
		var cfgErr *model.ConfigError
		if _, err := New(opts); !errors.As(err, &cfgErr) {
			t.Errorf("New(%+v): expected ConfigError, got %v", opts, err)
		}
	}
}

func TestProcessExpandedView(t *testing.T) {
	g := newGrid(t, Options{DefaultExpandDepth: 1}, orgRows())
	v := process(t, g, Params{})
	// Level 0 is expanded, level 1 is not: Dan stays hidden.
	if got := visibleIDs(v); !slices.Equal(got, int64s(1, 2, 3, 5, 6)) {
		t.Fatalf("visible = %v", got)
	}
	if row, ok := v.RowAt(1); !ok || row["name"] != "Bob" {
		t.Errorf("RowAt(1) = %v", row)
	}
	if _, ok := v.RowAt(10); ok {
		t.Error("RowAt past the end should fail")
	}
	if len(v.SortedFlat) != 6 {
		t.Errorf("SortedFlat should hold every record, got %d", len(v.SortedFlat))
	}
	if v.IndexOf(3) != 2 || v.IndexOf(4) != -1 {
		t.Errorf("IndexOf: 3 -> %d, 4 -> %d", v.IndexOf(3), v.IndexOf(4))
	}
}

func TestProcessSortFilterPage(t *testing.T) {
	g := newGrid(t, Options{DefaultExpandDepth: expansion.Infinite}, orgRows())
	filter, err := pipeline.ParseFilter(pipeline.And, "name = dan")
	if err != nil {
		t.Fatal(err)
	}
	v := process(t, g, Params{
		Sort:   []pipeline.SortExpression{{Field: "name", Dir: pipeline.SortDescending}},
		Filter: filter,
	})
	if got := visibleIDs(v); !slices.Equal(got, int64s(1, 2, 4)) {
		t.Fatalf("filtered view = %v", got)
	}
	if !v.Records[0].IsFilteredOutParent || v.Records[2].IsFilteredOutParent {
		t.Error("ancestors should be marked, the match should not")
	}

	v = process(t, g, Params{
		Sort:   []pipeline.SortExpression{{Field: "age", Dir: pipeline.SortAscending}},
		Paging: pipeline.PageState{Enabled: true, Index: 1, Size: 2},
	})
	// Roots by age: Fay 20, Eve 35, Ann 40; page 2 holds Ann with her subtree.
	if got := visibleIDs(v); !slices.Equal(got, int64s(1, 2, 4, 3)) {
		t.Fatalf("paged view = %v", got)
	}
	if v.Page.TotalPages != 2 || v.Page.TotalRoots != 3 {
		t.Errorf("page info = %+v", v.Page)
	}
}

// TestToggleVeto: a subscriber cancels the toggle and the state is unchanged.
func TestToggleVeto(t *testing.T) {
	g := newGrid(t, Options{DefaultExpandDepth: 1}, orgRows())
	before := g.IsExpanded(1)
	unsubscribe := g.OnToggle(func(ev *expansion.ToggleEvent) { ev.Cancel = true })

	ok, err := g.Toggle(1)
	if err != nil {
		t.Fatal(err)
	}
	if ok || g.IsExpanded(1) != before {
		t.Fatalf("veto ignored: ok=%v expanded=%v", ok, g.IsExpanded(1))
	}
	if len(g.ExpansionStates()) != 0 {
		t.Error("vetoed toggle must not store an entry")
	}

	unsubscribe()
	if ok, _ := g.Toggle(1); !ok || g.IsExpanded(1) == before {
		t.Error("toggle should apply after unsubscribing")
	}
	if _, err := g.Toggle(99); !errors.Is(err, model.ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
}

func TestExpansionOperations(t *testing.T) {
	g := newGrid(t, Options{}, orgRows())
	if len(visibleIDs(process(t, g, Params{}))) != 3 {
		t.Fatal("depth 0 should show roots only")
	}
	if err := g.ExpandPath(4); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(process(t, g, Params{})); !slices.Equal(got, int64s(1, 2, 4, 3, 5, 6)) {
		t.Fatalf("after ExpandPath = %v", got)
	}
	g.CollapseAll()
	if g.IsExpanded(1) || len(g.ExpansionStates()) != 0 {
		t.Error("CollapseAll should collapse and drop exceptions")
	}
	g.ExpandToLevel(1)
	if !g.IsExpanded(1) || g.IsExpanded(2) {
		t.Error("ExpandToLevel(1) should expand level 0 only")
	}

	states := map[model.RowID]bool{2: true}
	g.SetExpansionStates(states)
	states[3] = true
	if g.IsExpanded(3) {
		t.Error("store must not alias the caller's map")
	}
	if !g.IsExpanded(2) {
		t.Error("int key should be normalized")
	}
}

func TestRowEditGuardVetoesCollapse(t *testing.T) {
	g := newGrid(t, Options{DefaultExpandDepth: expansion.Infinite}, orgRows())
	if err := g.BeginRowEdit(4); err != nil {
		t.Fatal(err)
	}
	for _, id := range []int{1, 2, 4} {
		if ok, _ := g.Collapse(id); ok {
			t.Errorf("collapse of %d should be vetoed while 4 is edited", id)
		}
	}
	if ok, _ := g.Collapse(5); !ok {
		t.Error("unrelated rows may collapse")
	}
	g.EndRowEdit()
	if ok, _ := g.Collapse(1); !ok {
		t.Error("collapse should apply after the edit ends")
	}
}

// TestDeleteThenUndo: deleting row 5 hides it; undo restores it in place.
func TestDeleteThenUndo(t *testing.T) {
	rows := []model.Row{
		{"id": 1, "parentId": nil},
		{"id": 2, "parentId": 1},
		{"id": 5, "parentId": 1},
		{"id": 3, "parentId": 1},
	}
	g := newGrid(t, Options{DefaultExpandDepth: expansion.Infinite, BatchEditing: true}, rows)
	if err := g.DeleteRow(5); err != nil {
		t.Fatal(err)
	}
	if got := visibleIDs(process(t, g, Params{})); !slices.Equal(got, int64s(1, 2, 3)) {
		t.Fatalf("after delete = %v", got)
	}
	if ok, err := g.Undo(); !ok || err != nil {
		t.Fatalf("Undo = %v, %v", ok, err)
	}
	if got := visibleIDs(process(t, g, Params{})); !slices.Equal(got, int64s(1, 2, 5, 3)) {
		t.Fatalf("after undo = %v", got)
	}
	if ok, _ := g.Redo(); !ok || g.rowExists(5) {
		t.Error("redo should delete 5 again")
	}
}

func flatIDs(rows []model.Row) []model.RowID {
	out := make([]model.RowID, len(rows))
	for i, r := range rows {
		out[i], _ = model.NormalizeID(r["id"])
	}
	return out
}

func TestFlatOrderFollowsOverlay(t *testing.T) {
	g := newGrid(t, Options{BatchEditing: true}, orgRows())
	if err := g.DeleteRow(3); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddRow(model.Row{"id": 8, "name": "Hal"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddRow(model.Row{"id": 7, "name": "Gil"}, 5); err != nil {
		t.Fatal(err)
	}
	want := int64s(1, 2, 4, 5, 6, 8, 7)
	if got := flatIDs(g.FlatOrder()); !slices.Equal(got, want) {
		t.Fatalf("pending flat order = %v, want %v", got, want)
	}
	if err := g.CommitEdits(); err != nil {
		t.Fatal(err)
	}
	if got := flatIDs(g.FlatOrder()); !slices.Equal(got, want) {
		t.Errorf("committed flat order = %v, want %v", got, want)
	}
	if got := flatIDs(g.Data()); !slices.Equal(got, want) {
		t.Errorf("raw data order = %v, want %v", got, want)
	}
}

func TestRebuildPrunesExpansionOfRemovedRows(t *testing.T) {
	tests := []struct {
		name  string
		batch bool
	}{
		{"auto commit", false},
		{"batch", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGrid(t, Options{BatchEditing: tt.batch}, orgRows())
			for _, id := range []int{1, 2} {
				if ok, err := g.Expand(id); !ok || err != nil {
					t.Fatalf("Expand(%d) = %v, %v", id, ok, err)
				}
			}
			if err := g.DeleteRow(2); err != nil {
				t.Fatal(err)
			}
			_, kept := g.ExpansionStates()[int64(2)]
			if tt.batch != kept {
				t.Errorf("entry for deleted row kept = %v, want %v", kept, tt.batch)
			}
			if !tt.batch {
				return
			}
			// Discarding restores the row with its state; committing drops it.
			if err := g.DiscardEdits(); err != nil {
				t.Fatal(err)
			}
			if !g.IsExpanded(2) {
				t.Error("discarded delete should keep row 2 expanded")
			}
			if err := g.DeleteRow(2); err != nil {
				t.Fatal(err)
			}
			if err := g.CommitEdits(); err != nil {
				t.Fatal(err)
			}
			states := g.ExpansionStates()
			if _, ok := states[int64(2)]; ok || !states[int64(1)] {
				t.Errorf("after commit states = %v, want only row 1", states)
			}
		})
	}
}

func TestAddRowUnderUnknownParent(t *testing.T) {
	g := newGrid(t, Options{BatchEditing: true}, orgRows())
	_, err := g.AddRow(model.Row{"id": 7}, 99)
	var perr *model.InvalidParentError
	if !errors.As(err, &perr) {
		t.Fatalf("expected InvalidParentError, got %v", err)
	}
	if len(g.RecordsByID()) != 6 || len(g.PendingEdits()) != 0 {
		t.Error("failed add must leave the grid unchanged")
	}
}

func TestAddRow(t *testing.T) {
	g := newGrid(t, Options{BatchEditing: true}, orgRows())
	id, err := g.AddRow(model.Row{"name": "Gil"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := id.(string); !ok {
		t.Fatalf("expected a generated string id, got %T", id)
	}
	rec, err := g.Record(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Parent == nil || rec.Parent.RowID != int64(2) || rec.Level != 2 {
		t.Errorf("added row misplaced: parent=%v level=%d", rec.Parent, rec.Level)
	}
	if rec.Data["id"] != id || rec.Data["parentId"] != 2 {
		t.Errorf("added row data = %v", rec.Data)
	}
	if !g.IsExpanded(2) {
		t.Error("parent should be expanded to show the new row")
	}
	if _, err := g.AddRow(model.Row{"id": 3}, nil); err == nil {
		t.Error("duplicate primary key should fail")
	}
	if len(g.Data()) != 6 {
		t.Error("pending add must not touch the raw rows")
	}
}

func TestAutoCommitAndBatchEditing(t *testing.T) {
	rows := orgRows()

	auto := newGrid(t, Options{}, rows)
	if err := auto.UpdateRow(2, model.Row{"name": "Bobby"}); err != nil {
		t.Fatal(err)
	}
	if len(auto.PendingEdits()) != 0 || auto.CanUndo() {
		t.Error("edits should commit immediately without batch editing")
	}
	if auto.Data()[1]["name"] != "Bobby" {
		t.Errorf("committed data = %v", auto.Data()[1])
	}
	if rows[1]["name"] != "Bob" {
		t.Error("the caller's row must never be modified")
	}

	batch := newGrid(t, Options{BatchEditing: true}, rows)
	if err := batch.UpdateRow(2, model.Row{"name": "Bobby"}); err != nil {
		t.Fatal(err)
	}
	rec, _ := batch.Record(2)
	if rec.Data["name"] != "Bobby" || batch.Data()[1]["name"] != "Bob" {
		t.Error("pending update should show in records but not in raw data")
	}
	if err := batch.CommitEdits(); err != nil {
		t.Fatal(err)
	}
	if batch.Data()[1]["name"] != "Bobby" || len(batch.PendingEdits()) != 0 {
		t.Error("commit should write the update into the raw data")
	}

	if err := batch.UpdateRow(3, model.Row{"name": "x"}); err != nil {
		t.Fatal(err)
	}
	if err := batch.DiscardEdits(); err != nil {
		t.Fatal(err)
	}
	if rec, _ := batch.Record(3); rec.Data["name"] != "Cid" {
		t.Error("discard should restore the row")
	}
}

func TestUpdateRowRejectsInvalidChanges(t *testing.T) {
	g := newGrid(t, Options{BatchEditing: true}, orgRows())
	if err := g.UpdateRow(1, model.Row{"id": 7}); !errors.Is(err, model.ErrImmutableKey) {
		t.Errorf("expected ErrImmutableKey, got %v", err)
	}

	// Moving 1 under its grandchild would close a loop.
	err := g.UpdateRow(1, model.Row{"parentId": 4})
	var cyc *model.CyclicHierarchyError
	if !errors.As(err, &cyc) {
		t.Fatalf("expected CyclicHierarchyError, got %v", err)
	}
	if len(g.PendingEdits()) != 0 || g.CanRedo() {
		t.Error("rejected move must be rolled back")
	}
	if rec, _ := g.Record(1); rec.Parent != nil || len(rec.Children) != 2 {
		t.Error("hierarchy should be intact after the rollback")
	}

	if err := g.UpdateRow(4, model.Row{"parentId": 5}); err != nil {
		t.Fatal(err)
	}
	if rec, _ := g.Record(4); rec.Parent.RowID != int64(5) {
		t.Error("valid reparent should move the row")
	}
	if err := g.DeleteRow(4); err != nil {
		t.Fatal(err)
	}
	if err := g.UpdateRow(4, model.Row{"name": "x"}); !errors.Is(err, model.ErrRowNotFound) {
		t.Errorf("editing a deleted row: got %v", err)
	}
}

func TestDeleteCascadeAndPromotion(t *testing.T) {
	cascade := newGrid(t, Options{BatchEditing: true, CascadeOnDelete: true}, orgRows())
	if err := cascade.DeleteRow(1); err != nil {
		t.Fatal(err)
	}
	if len(cascade.RecordsByID()) != 2 {
		t.Fatalf("cascade should remove the whole subtree, %d left", len(cascade.RecordsByID()))
	}
	cascade.Undo()
	if len(cascade.RecordsByID()) != 6 || cascade.CanUndo() {
		t.Error("one undo should restore the cascaded delete")
	}

	promote := newGrid(t, Options{BatchEditing: true}, orgRows())
	if err := promote.DeleteRow(2); err != nil {
		t.Fatal(err)
	}
	rec, err := promote.Record(4)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Parent != nil || rec.Level != 0 || !slices.Contains(promote.Orphans(), model.RowID(int64(4))) {
		t.Error("children of a deleted row should be promoted to roots")
	}
}

func nestedRows() []model.Row {
	return []model.Row{
		{"name": "A", "children": []model.Row{
			{"name": "B", "children": []model.Row{{"name": "C"}}},
		}},
		{"name": "D"},
	}
}

func TestNestedEditsWithoutPrimaryKey(t *testing.T) {
	rows := nestedRows()
	g := newGrid(t, Options{ChildDataKey: "children", SelectionMode: SelectMultiple}, rows)
	a := g.Roots()[0]
	b := a.Children[0]
	if _, err := g.Expand(a.RowID); err != nil {
		t.Fatal(err)
	}
	if err := g.Select(b.RowID); err != nil {
		t.Fatal(err)
	}

	if err := g.UpdateRow(a.RowID, model.Row{"name": "A2"}); err != nil {
		t.Fatal(err)
	}
	if rows[0]["name"] != "A" {
		t.Fatal("the caller's rows must not change")
	}
	a2 := g.Roots()[0]
	if a2.Data["name"] != "A2" {
		t.Fatalf("root = %v", a2.Data)
	}
	if !g.IsExpanded(a2.RowID) {
		t.Error("expansion should follow the committed row")
	}
	if !g.IsSelected(a2.Children[0].RowID) {
		t.Error("selection should follow the committed row")
	}

	id, err := g.AddRow(model.Row{"name": "E"}, a2.Children[0].RowID)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := g.Record(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Level != 2 || rec.Parent.Data["name"] != "B" {
		t.Errorf("added nested row misplaced: level %d", rec.Level)
	}
	if len(rows[0]["children"].([]model.Row)[0]["children"].([]model.Row)) != 1 {
		t.Error("embedded child slices must not be mutated")
	}
}

func TestNestedDeleteDropsSubtree(t *testing.T) {
	rows := []model.Row{
		{"id": 1, "children": []model.Row{{"id": 2, "children": []model.Row{{"id": 3}}}}},
		{"id": 4},
	}
	g := newGrid(t, Options{PrimaryKey: "id", ChildDataKey: "children", BatchEditing: true}, rows)
	if _, err := g.AddRow(model.Row{"id": 10}, 2); err != nil {
		t.Fatal(err)
	}
	if err := g.DeleteRow(2); err != nil {
		t.Fatal(err)
	}
	if len(g.RecordsByID()) != 2 {
		t.Fatalf("expected 1 and 4 left, got %d records", len(g.RecordsByID()))
	}
	g.Undo()
	if rec, err := g.Record(10); err != nil || rec.Parent.RowID != int64(2) {
		t.Errorf("undo should restore the subtree with the pending add: %v", err)
	}
}

func TestSelectionModes(t *testing.T) {
	none := newGrid(t, Options{}, orgRows())
	none.Select(1)
	if none.IsSelected(1) {
		t.Error("none mode selects nothing")
	}

	single := newGrid(t, Options{SelectionMode: SelectSingle}, orgRows())
	single.Select(1)
	single.Select(2)
	if got := single.SelectedIDs(); !slices.Equal(got, int64s(2)) {
		t.Errorf("single selection = %v", got)
	}

	multi := newGrid(t, Options{SelectionMode: SelectMultiple}, orgRows())
	multi.Select(3, 1)
	if got := multi.SelectedIDs(); !slices.Equal(got, int64s(3, 1)) {
		t.Errorf("multiple selection = %v", got)
	}
	if err := multi.Select(99); !errors.Is(err, model.ErrRowNotFound) {
		t.Errorf("expected ErrRowNotFound, got %v", err)
	}
	if multi.Indeterminate(1) {
		t.Error("indeterminate only applies to cascade mode")
	}
}

func TestCascadeSelection(t *testing.T) {
	g := newGrid(t, Options{SelectionMode: SelectMultipleCascade, BatchEditing: true}, orgRows())
	g.Select(2)
	if !g.IsSelected(4) || g.IsSelected(1) || !g.Indeterminate(1) {
		t.Fatal("selecting 2 should select 4 and leave 1 indeterminate")
	}
	g.Select(3)
	if !g.IsSelected(1) || g.Indeterminate(1) {
		t.Fatal("1 should be selected once all children are")
	}
	g.Deselect(4)
	if g.IsSelected(2) || g.IsSelected(1) || !g.Indeterminate(1) || g.Indeterminate(2) {
		t.Fatalf("after deselecting 4: selected=%v", g.SelectedIDs())
	}

	// Deleting the only unselected child makes the parent fully selected.
	g.ClearSelection()
	g.Select(3)
	if g.IsSelected(1) {
		t.Fatal("1 still has an unselected child")
	}
	if err := g.DeleteRow(2); err != nil {
		t.Fatal(err)
	}
	if !g.IsSelected(1) || g.IsSelected(4) {
		t.Errorf("selection after delete = %v", g.SelectedIDs())
	}
}

func TestSelectionSurvivesTransforms(t *testing.T) {
	g := newGrid(t, Options{SelectionMode: SelectMultiple, BatchEditing: true}, orgRows())
	g.Select(4, 6)
	filter, _ := pipeline.ParseFilter(pipeline.And, "name = eve")
	process(t, g, Params{
		Sort:   []pipeline.SortExpression{{Field: "name", Dir: pipeline.SortDescending}},
		Filter: filter,
		Paging: pipeline.PageState{Enabled: true, Size: 1},
	})
	if !g.IsSelected(4) || !g.IsSelected(6) {
		t.Error("selection must survive sort, filter and page")
	}
	g.DeleteRow(6)
	if got := g.SelectedIDs(); !slices.Equal(got, int64s(4)) {
		t.Errorf("deleted rows should be pruned from the selection, got %v", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	opts := Options{SelectionMode: SelectMultiple, DefaultExpandDepth: 1}
	g := newGrid(t, opts, orgRows())
	filter, err := pipeline.ParseFilter(pipeline.Or, "age > 30", "name ^= f")
	if err != nil {
		t.Fatal(err)
	}
	params := Params{
		Sort:   []pipeline.SortExpression{{Field: "age", Dir: pipeline.SortDescending}},
		Filter: filter,
		Paging: pipeline.PageState{Enabled: true, Size: 2},
	}
	want := visibleIDs(process(t, g, params))
	g.Expand(2)
	g.Select(5, 3)

	path := filepath.Join(t.TempDir(), "state", "grid.json")
	if err := g.SaveState(path); err != nil {
		t.Fatal(err)
	}

	h := newGrid(t, opts, orgRows())
	restored, err := h.LoadState(path)
	if err != nil {
		t.Fatal(err)
	}
	if !h.IsExpanded(2) || h.IsExpanded(4) {
		t.Error("expansion not restored")
	}
	if got := h.SelectedIDs(); !slices.Equal(got, int64s(5, 3)) {
		t.Errorf("selection = %v", got)
	}
	if restored.Paging != params.Paging {
		t.Errorf("paging = %+v", restored.Paging)
	}
	if got := visibleIDs(process(t, h, restored)); !slices.Equal(got, want) {
		t.Errorf("restored view = %v, want %v", got, want)
	}
}

func TestLoadStateFiles(t *testing.T) {
	g := newGrid(t, Options{}, orgRows())
	dir := t.TempDir()
	if _, err := g.LoadState(filepath.Join(dir, "missing.json")); err != nil {
		t.Errorf("missing state file should be ignored: %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := g.LoadState(bad); err == nil {
		t.Error("corrupt state file should be reported")
	}

	stale := filepath.Join(dir, "stale.json")
	os.WriteFile(stale, []byte(`{"version":1,"expansion":{"1":true,"404":true},"selection":["404"]}`), 0o644)
	if _, err := g.LoadState(stale); err != nil {
		t.Fatal(err)
	}
	if !g.IsExpanded(1) || len(g.ExpansionStates()) != 1 {
		t.Error("unknown ids should be ignored")
	}
}
