//go:build ignore

// generate_testdata.go creates standard row datasets for benchmarking and
// manual runs of tg.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//
//	testdata/benchmark/small.jsonl    (100 rows)
//	testdata/benchmark/medium.jsonl   (1000 rows)
//	testdata/benchmark/large.jsonl    (5000 rows)
//	testdata/benchmark/huge.jsonl     (20000 rows)
//	testdata/benchmark/nested.json    (forest of 10 roots in child-key form)
package main

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/testutil"
)

type datasetSpec struct {
	name string
	size int
}

var datasets = []datasetSpec{
	{"small", 100},
	{"medium", 1000},
	{"large", 5000},
	{"huge", 20000},
}

func main() {
	outputDir := filepath.Join("testdata", "benchmark")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d rows)...\n", ds.name, ds.size)

		gen := testutil.New(testutil.GeneratorConfig{Seed: int64(ds.size)})
		fixture := gen.Random(ds.size, rootRate(ds.size))
		rows := gen.ToForeignKeyRows(fixture)

		jsonl := testutil.ToJSONL(rows)
		outputPath := filepath.Join(outputDir, ds.name+".jsonl")
		if err := os.WriteFile(outputPath, []byte(jsonl), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d bytes, %d roots)\n", outputPath, len(jsonl), countRoots(rows))
	}

	gen := testutil.New(testutil.GeneratorConfig{Seed: 7})
	nested := gen.ToNestedRows(gen.Forest(10, 3, 3))
	data, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode nested dataset: %v\n", err)
		os.Exit(1)
	}
	nestedPath := filepath.Join(outputDir, "nested.json")
	if err := os.WriteFile(nestedPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", nestedPath, err)
		os.Exit(1)
	}
	fmt.Printf("  Written %s (%d roots)\n", nestedPath, len(nested))

	fmt.Println("\nDone! Test datasets created in", outputDir)
}

// rootRate keeps larger datasets deeper: small sets are mostly flat, huge
// ones have about one root per hundred rows.
func rootRate(size int) float64 {
	switch {
	case size <= 100:
		return 0.1
	case size <= 1000:
		return 0.05
	case size <= 5000:
		return 0.02
	default:
		return 0.01
	}
}

func countRoots(rows []model.Row) int {
	n := 0
	for _, r := range rows {
		if r["parentId"] == nil {
			n++
		}
	}
	return n
}
