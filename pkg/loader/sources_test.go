package loader_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/treegrid/pkg/loader"
	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/testutil"
)

func writeSQLite(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rows.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func rowIDs(rows []model.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		id, _ := model.NormalizeID(r["id"])
		out[i] = model.IDString(id)
	}
	return out
}

func TestParseSources(t *testing.T) {
	got := loader.ParseSources(" a.jsonl, ,data/rows.db#people,b.json ")
	want := []loader.Source{
		{Path: "a.jsonl"},
		{Path: "data/rows.db", Table: "people"},
		{Path: "b.json"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseSources = %#v, want %#v", got, want)
	}
	if got[1].String() != "data/rows.db#people" {
		t.Errorf("String() = %q", got[1].String())
	}
	if loader.ParseSources("") != nil {
		t.Error("Expected no sources for empty list")
	}
}

func TestLoadSQLite(t *testing.T) {
	path := writeSQLite(t,
		`CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, parentId INTEGER, tags TEXT)`,
		`INSERT INTO people VALUES (1, 'Ann', NULL, '["a","b"]')`,
		`INSERT INTO people VALUES (2, 'Bob', 1, NULL)`,
	)

	rows, err := loader.Load(context.Background(), loader.Source{Path: path, JSONColumns: []string{"tags"}}, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0]["name"] != "Ann" || rows[0]["parentId"] != nil {
		t.Errorf("unexpected first row %v", rows[0])
	}
	if rows[1]["parentId"] != int64(1) {
		t.Errorf("Expected integer parentId, got %#v", rows[1]["parentId"])
	}
	if !reflect.DeepEqual(rows[0]["tags"], []any{"a", "b"}) {
		t.Errorf("Expected JSON column to be decoded, got %#v", rows[0]["tags"])
	}
}

func TestLoadSQLiteNeedsTableChoice(t *testing.T) {
	path := writeSQLite(t,
		`CREATE TABLE a (id INTEGER)`,
		`CREATE TABLE b (id INTEGER)`,
		`INSERT INTO b VALUES (7)`,
	)
	ctx := context.Background()

	if _, err := loader.Load(ctx, loader.Source{Path: path}, loader.ParseOptions{}); err == nil {
		t.Fatal("Expected error when the database has several tables")
	}
	rows, err := loader.Load(ctx, loader.Source{Path: path, Table: "b"}, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("Load b: %v", err)
	}
	if len(rows) != 1 || rows[0]["id"] != int64(7) {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestLoadAll(t *testing.T) {
	jsonl := testutil.WriteRowsFile(t, "a.jsonl", []model.Row{{"id": 1}, {"id": 2, "parentId": 1}})
	array := testutil.WriteRowsFile(t, "b.json", []model.Row{{"id": 3}})
	db := writeSQLite(t,
		`CREATE TABLE rows (id INTEGER, parentId INTEGER)`,
		`INSERT INTO rows VALUES (4, 3), (5, NULL)`,
	)

	sources := []loader.Source{{Path: jsonl}, {Path: array}, {Path: db}}
	rows, results, err := loader.LoadAll(context.Background(), sources, loader.ParseOptions{})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if got, want := rowIDs(rows), []string{"1", "2", "3", "4", "5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected rows in source order %v, got %v", want, got)
	}
	if len(results) != 3 || results[2].Type != "sqlite" || results[1].Type != "json" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestLoadAllPartialFailure(t *testing.T) {
	good := testutil.WriteRowsFile(t, "a.jsonl", []model.Row{{"id": 1}})
	missing := filepath.Join(t.TempDir(), "missing.jsonl")

	rows, results, err := loader.LoadAll(context.Background(),
		[]loader.Source{{Path: missing}, {Path: good}}, loader.ParseOptions{})
	if err == nil {
		t.Fatal("Expected joined error for the missing source")
	}
	if !strings.Contains(err.Error(), "missing.jsonl") {
		t.Errorf("Expected error to name the source, got %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected rows of the good source, got %v", rows)
	}
	if results[0].Error == nil || results[1].Error != nil {
		t.Errorf("unexpected per-source errors %+v", results)
	}
}

func TestLoadAllNoSources(t *testing.T) {
	if _, _, err := loader.LoadAll(context.Background(), nil, loader.ParseOptions{}); err == nil {
		t.Fatal("Expected error with no sources")
	}
}

func TestLoadRejectsTableOnJSON(t *testing.T) {
	path := testutil.WriteRowsFile(t, "a.json", []model.Row{{"id": 1}})
	if _, err := loader.Load(context.Background(), loader.Source{Path: path, Table: "x"}, loader.ParseOptions{}); err == nil {
		t.Fatal("Expected error selecting a table in a JSON file")
	}
}
