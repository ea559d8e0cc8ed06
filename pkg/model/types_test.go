package model

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want RowID
		ok   bool
	}{
		{"int", 5, int64(5), true},
		{"int32", int32(5), int64(5), true},
		{"uint8", uint8(5), int64(5), true},
		{"integral float", float64(5), int64(5), true},
		{"fractional float", 5.5, 5.5, true},
		{"json integer", json.Number("7"), int64(7), true},
		{"json float", json.Number("7.25"), 7.25, true},
		{"string", "bv-1", "bv-1", true},
		{"nil", nil, nil, false},
		{"slice", []int{1}, nil, false},
		{"nan", math.NaN(), nil, false},
		{"nan float32", float32(math.NaN()), nil, false},
		{"json nan", json.Number("NaN"), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeID(tt.in)
			if ok != tt.ok {
				t.Fatalf("NormalizeID(%v) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("NormalizeID(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRefOfStable(t *testing.T) {
	row := Row{"name": "a"}
	if RefOf(row) != RefOf(row) {
		t.Fatal("expected RefOf to be stable for the same row")
	}
	clone := row.Clone()
	if RefOf(clone) == RefOf(row) {
		t.Error("expected clone to have a different identity")
	}
	if RefOf(nil) != 0 {
		t.Error("expected nil row to have zero ref")
	}
}

func TestRowCloneIsShallow(t *testing.T) {
	kids := []Row{{"id": 2}}
	row := Row{"id": 1, "kids": kids}
	clone := row.Clone()
	clone["id"] = 9
	if row["id"] != 1 {
		t.Error("clone must not write through to the original")
	}
	if len(clone["kids"].([]Row)) != 1 {
		t.Error("expected nested values to be shared")
	}
}

func TestRecordNavigation(t *testing.T) {
	root := &Record{RowID: int64(1)}
	child := &Record{RowID: int64(2), Parent: root, Level: 1}
	grand := &Record{RowID: int64(3), Parent: child, Level: 2}
	root.Children = []*Record{child}
	child.Children = []*Record{grand}

	anc := grand.Ancestors()
	if len(anc) != 2 || anc[0] != root || anc[1] != child {
		t.Fatalf("unexpected ancestors %v", anc)
	}
	if !grand.IsDescendantOf(root) {
		t.Error("expected grand to descend from root")
	}
	if root.IsDescendantOf(grand) {
		t.Error("root must not descend from grand")
	}
	desc := root.Descendants()
	if len(desc) != 2 || desc[0] != child || desc[1] != grand {
		t.Errorf("unexpected descendants %v", desc)
	}

	for _, r := range []*Record{root, child, grand} {
		r.UpdateKind()
		if r.Kind != TreeRow {
			t.Errorf("record %v: expected tree row, got %v", r.RowID, r.Kind)
		}
	}
	lone := &Record{RowID: int64(4)}
	lone.UpdateKind()
	if lone.Kind != FlatRow {
		t.Errorf("expected flat row, got %v", lone.Kind)
	}
}

func TestNewForestMirrorsRecords(t *testing.T) {
	root := &Record{RowID: "a"}
	c1 := &Record{RowID: "b", Parent: root, Level: 1}
	c2 := &Record{RowID: "c", Parent: root, Level: 1}
	root.Children = []*Record{c1, c2}

	forest := NewForest([]*Record{root})
	if len(forest) != 1 || forest[0].Record != root {
		t.Fatal("expected forest root to point at the record")
	}
	if len(forest[0].Children) != 2 || forest[0].Children[1].Record != c2 {
		t.Fatal("expected children mirrored in order")
	}

	var seen []RowID
	WalkNodes(forest, func(n *Node) bool {
		seen = append(seen, n.Record.RowID)
		return true
	})
	if len(seen) != 3 {
		t.Errorf("expected 3 nodes visited, got %d", len(seen))
	}
}

func TestErrorMessages(t *testing.T) {
	err := error(&CyclicHierarchyError{Cycles: [][]RowID{{int64(1), int64(2)}}})
	if !strings.Contains(err.Error(), "1 -> 2") {
		t.Errorf("unexpected message %q", err.Error())
	}
	var target *CyclicHierarchyError
	if !errors.As(err, &target) {
		t.Error("expected errors.As to match CyclicHierarchyError")
	}
	if msg := (&InvalidParentError{ParentID: int64(99)}).Error(); !strings.Contains(msg, "99") {
		t.Errorf("unexpected message %q", msg)
	}
}
