package datasource

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/vanderheijden86/treegrid/pkg/hierarchy"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// RowDiff represents differences between two loads of the same rows
type RowDiff struct {
	// Added contains ids present in the new rows but not in the old ones
	Added []string
	// Removed contains ids present in the old rows but not in the new ones
	Removed []string
	// Changed contains rows whose compared fields differ
	Changed []FieldDifference
	// CountOld is the number of keyed rows before
	CountOld int
	// CountNew is the number of keyed rows after
	CountNew int
}

// FieldDifference lists the fields that changed for a single row
type FieldDifference struct {
	ID     string   `json:"id"`
	Fields []string `json:"fields"`
}

// HasChanges returns true if there are any differences between the loads
func (d RowDiff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Changed) > 0
}

// Summary returns a human-readable summary of the differences
func (d RowDiff) Summary() string {
	if !d.HasChanges() {
		return fmt.Sprintf("No changes (%d rows)", d.CountNew)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d rows -> %d rows:\n", d.CountOld, d.CountNew)
	list := func(label string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&sb, "  - %d %s\n", len(ids), label)
		if len(ids) <= 5 {
			for _, id := range ids {
				fmt.Fprintf(&sb, "    - %s\n", id)
			}
		}
	}
	list("added", d.Added)
	list("removed", d.Removed)
	if len(d.Changed) > 0 {
		fmt.Fprintf(&sb, "  - %d changed\n", len(d.Changed))
		if len(d.Changed) <= 5 {
			for _, c := range d.Changed {
				fmt.Fprintf(&sb, "    - %s: %s\n", c.ID, strings.Join(c.Fields, ", "))
			}
		}
	}
	return sb.String()
}

// DiffOptions configures the diff operation
type DiffOptions struct {
	// PrimaryKey identifies rows; rows without it are not compared
	PrimaryKey string
	// ChildDataKey, when set, makes the diff descend into embedded children
	ChildDataKey string
	// CompareFields specifies which fields to compare (empty = all fields)
	CompareFields []string
	// MaxDifferences limits the number of differences tracked (0 = unlimited)
	MaxDifferences int
}

// DiffRows compares two loads of rows by primary key. Results are sorted by
// id so the output is stable.
func DiffRows(before, after []model.Row, opts DiffOptions) RowDiff {
	mapA := index(before, opts)
	mapB := index(after, opts)
	diff := RowDiff{CountOld: len(mapA), CountNew: len(mapB)}
	room := func(n int) bool { return opts.MaxDifferences == 0 || n < opts.MaxDifferences }

	for _, id := range sortedKeys(mapA) {
		if _, exists := mapB[id]; !exists && room(len(diff.Removed)) {
			diff.Removed = append(diff.Removed, id)
		}
	}
	for _, id := range sortedKeys(mapB) {
		rowA, exists := mapA[id]
		if !exists {
			if room(len(diff.Added)) {
				diff.Added = append(diff.Added, id)
			}
			continue
		}
		if fields := changedFields(rowA, mapB[id], opts); len(fields) > 0 && room(len(diff.Changed)) {
			diff.Changed = append(diff.Changed, FieldDifference{ID: id, Fields: fields})
		}
	}
	return diff
}

func index(rows []model.Row, opts DiffOptions) map[string]model.Row {
	out := make(map[string]model.Row, len(rows))
	var walk func(rows []model.Row)
	walk = func(rows []model.Row) {
		for _, row := range rows {
			if id, ok := model.NormalizeID(row[opts.PrimaryKey]); ok && opts.PrimaryKey != "" {
				out[model.IDString(id)] = row
			}
			if opts.ChildDataKey != "" {
				walk(hierarchy.ChildRows(row, opts.ChildDataKey))
			}
		}
	}
	walk(rows)
	return out
}

func changedFields(a, b model.Row, opts DiffOptions) []string {
	fields := opts.CompareFields
	if len(fields) == 0 {
		seen := make(map[string]bool)
		for _, r := range []model.Row{a, b} {
			for k := range r {
				if k != opts.ChildDataKey && !seen[k] {
					seen[k] = true
					fields = append(fields, k)
				}
			}
		}
		slices.Sort(fields)
	}
	var out []string
	for _, f := range fields {
		if !reflect.DeepEqual(a[f], b[f]) {
			out = append(out, f)
		}
	}
	return out
}

func sortedKeys(m map[string]model.Row) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
