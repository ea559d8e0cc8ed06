package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// AssertRecordCount verifies the expected number of records.
func AssertRecordCount(t *testing.T, records map[model.RowID]*model.Record, expected int) {
	t.Helper()
	if len(records) != expected {
		t.Errorf("expected %d records, got %d", expected, len(records))
	}
}

// AssertLevels verifies that roots sit at level 0 and every child one level
// below its parent, with parent links consistent.
func AssertLevels(t *testing.T, roots []*model.Record) {
	t.Helper()
	var walk func(recs []*model.Record, parent *model.Record, level int)
	walk = func(recs []*model.Record, parent *model.Record, level int) {
		for _, r := range recs {
			if r.Level != level {
				t.Errorf("record %v: level %d, want %d", r.RowID, r.Level, level)
			}
			if r.Parent != parent {
				t.Errorf("record %v: wrong parent link", r.RowID)
			}
			walk(r.Children, r, level+1)
		}
	}
	walk(roots, nil, 0)
}

// AssertNoDuplicateIDs verifies that no record appears twice in a sequence.
func AssertNoDuplicateIDs(t *testing.T, records []*model.Record) {
	t.Helper()
	seen := make(map[model.RowID]bool)
	for _, r := range records {
		if seen[r.RowID] {
			t.Errorf("duplicate row ID: %v", r.RowID)
		}
		seen[r.RowID] = true
	}
}

// AssertIDs verifies the row IDs of records in order. Expected IDs are
// normalized the same way the builder normalizes keys.
func AssertIDs(t *testing.T, records []*model.Record, want ...any) {
	t.Helper()
	got := RecordIDs(records)
	if len(got) != len(want) {
		t.Errorf("expected IDs %v, got %v", want, got)
		return
	}
	for i, w := range want {
		id, _ := model.NormalizeID(w)
		if got[i] != id {
			t.Errorf("expected IDs %v, got %v", want, got)
			return
		}
	}
}

// RecordIDs returns the row IDs of records in order.
func RecordIDs(records []*model.Record) []model.RowID {
	ids := make([]model.RowID, len(records))
	for i, r := range records {
		ids[i] = r.RowID
	}
	return ids
}

// AssertJSONEqual compares two values after JSON round-tripping.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file, or rewrites it
// when GENERATE_GOLDEN is set.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	path := g.Path()

	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}
	if string(expected) == actual {
		return
	}
	want := strings.Split(string(expected), "\n")
	got := strings.Split(actual, "\n")
	for i := 0; i < len(want) || i < len(got); i++ {
		var w, a string
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			a = got[i]
		}
		if w != a {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, w, a)
			return
		}
	}
	g.t.Errorf("golden file mismatch (length differs)")
}

// WriteRowsFile writes rows to a file under a fresh temp dir and returns its
// path. Files ending in .jsonl get one object per line; others a JSON array.
func WriteRowsFile(t *testing.T, name string, rows []model.Row) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	var data []byte
	if strings.HasSuffix(name, ".jsonl") {
		data = []byte(ToJSONL(rows))
	} else {
		var err error
		data, err = json.Marshal(rows)
		if err != nil {
			t.Fatalf("failed to marshal rows: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write rows file: %v", err)
	}
	return path
}

// Outline renders a record forest as an indented list of IDs, one per line.
// It is handy for comparing whole trees in a single assertion.
func Outline(roots []*model.Record) string {
	var sb strings.Builder
	var walk func(recs []*model.Record)
	walk = func(recs []*model.Record) {
		for _, r := range recs {
			fmt.Fprintf(&sb, "%s%v\n", strings.Repeat("  ", r.Level), r.RowID)
			walk(r.Children)
		}
	}
	walk(roots)
	return sb.String()
}
