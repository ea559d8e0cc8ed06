// Package testutil provides deterministic fixture generators and assertions
// for tree grid tests.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// TreeFixture is an abstract forest. Parents[i] is the index of node i's
// parent, or -1 for a root. Indexes outside the node range model orphans.
type TreeFixture struct {
	Description string     `json:"description"`
	Parents     []int      `json:"parents"`
	Properties  Properties `json:"properties,omitempty"`
}

// Properties holds optional metadata about the fixture.
type Properties struct {
	HasCycles     bool `json:"has_cycles,omitempty"`
	Orphans       int  `json:"orphans,omitempty"`
	Roots         int  `json:"roots,omitempty"`
	ExpectedDepth int  `json:"expected_depth,omitempty"`
}

// Size returns the number of nodes.
func (f TreeFixture) Size() int {
	return len(f.Parents)
}

// GeneratorConfig controls row generation.
type GeneratorConfig struct {
	Seed         int64     // Random seed for determinism (0 = use current time)
	PrimaryKey   string    // default "id"
	ForeignKey   string    // default "parentId"
	ChildDataKey string    // default "children"
	BaseTime     time.Time // Base time for "created" values
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:         42,
		PrimaryKey:   "id",
		ForeignKey:   "parentId",
		ChildDataKey: "children",
		BaseTime:     time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// Generator creates fixtures with various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.PrimaryKey == "" {
		cfg.PrimaryKey = def.PrimaryKey
	}
	if cfg.ForeignKey == "" {
		cfg.ForeignKey = def.ForeignKey
	}
	if cfg.ChildDataKey == "" {
		cfg.ChildDataKey = def.ChildDataKey
	}
	if cfg.BaseTime.IsZero() {
		cfg.BaseTime = def.BaseTime
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// Config returns the effective config.
func (g *Generator) Config() GeneratorConfig {
	return g.cfg
}

// Chain creates a single path n0 <- n1 <- ... <- n{size-1}.
func (g *Generator) Chain(size int) TreeFixture {
	parents := make([]int, size)
	for i := range parents {
		parents[i] = i - 1
	}
	return TreeFixture{
		Description: fmt.Sprintf("Chain of %d nodes", size),
		Parents:     parents,
		Properties:  Properties{Roots: min(size, 1), ExpectedDepth: max(size-1, 0)},
	}
}

// Star creates one root with `spokes` direct children.
func (g *Generator) Star(spokes int) TreeFixture {
	parents := make([]int, spokes+1)
	parents[0] = -1
	for i := 1; i <= spokes; i++ {
		parents[i] = 0
	}
	depth := 0
	if spokes > 0 {
		depth = 1
	}
	return TreeFixture{
		Description: fmt.Sprintf("Star with %d spokes", spokes),
		Parents:     parents,
		Properties:  Properties{Roots: 1, ExpectedDepth: depth},
	}
}

// Tree creates a complete tree with given depth and branching factor,
// listed breadth first.
func (g *Generator) Tree(depth, breadth int) TreeFixture {
	if depth < 1 {
		depth = 1
	}
	if breadth < 1 {
		breadth = 1
	}
	parents := []int{-1}
	level := []int{0}
	for d := 0; d < depth; d++ {
		var next []int
		for _, p := range level {
			for b := 0; b < breadth; b++ {
				parents = append(parents, p)
				next = append(next, len(parents)-1)
			}
		}
		level = next
	}
	return TreeFixture{
		Description: fmt.Sprintf("Tree with depth=%d, breadth=%d (%d nodes)", depth, breadth, len(parents)),
		Parents:     parents,
		Properties:  Properties{Roots: 1, ExpectedDepth: depth},
	}
}

// Forest creates `roots` independent trees of the given depth and breadth.
func (g *Generator) Forest(roots, depth, breadth int) TreeFixture {
	var parents []int
	for r := 0; r < roots; r++ {
		offset := len(parents)
		for _, p := range g.Tree(depth, breadth).Parents {
			if p >= 0 {
				p += offset
			}
			parents = append(parents, p)
		}
	}
	return TreeFixture{
		Description: fmt.Sprintf("Forest of %d trees (depth=%d, breadth=%d)", roots, depth, breadth),
		Parents:     parents,
		Properties:  Properties{Roots: roots, ExpectedDepth: depth},
	}
}

// Random creates a forest of size nodes where each node is a root with
// probability rootRate and otherwise hangs under a random earlier node.
func (g *Generator) Random(size int, rootRate float64) TreeFixture {
	parents := make([]int, size)
	roots := 0
	for i := range parents {
		if i == 0 || g.rng.Float64() < rootRate {
			parents[i] = -1
			roots++
			continue
		}
		parents[i] = g.rng.Intn(i)
	}
	return TreeFixture{
		Description: fmt.Sprintf("Random forest of %d nodes", size),
		Parents:     parents,
		Properties:  Properties{Roots: roots},
	}
}

// Shuffled returns the fixture with nodes listed in random order. Parent
// links follow their nodes.
func (g *Generator) Shuffled(f TreeFixture) TreeFixture {
	perm := g.rng.Perm(f.Size())
	pos := make([]int, len(perm))
	for newIdx, oldIdx := range perm {
		pos[oldIdx] = newIdx
	}
	parents := make([]int, len(perm))
	for newIdx, oldIdx := range perm {
		p := f.Parents[oldIdx]
		if p >= 0 && p < f.Size() {
			p = pos[p]
		}
		parents[newIdx] = p
	}
	f.Description += " (shuffled)"
	f.Parents = parents
	return f
}

// Cycle creates size nodes whose parents form a single loop.
func (g *Generator) Cycle(size int) TreeFixture {
	parents := make([]int, size)
	for i := range parents {
		parents[i] = (i + size - 1) % size
	}
	return TreeFixture{
		Description: fmt.Sprintf("Cycle of %d nodes", size),
		Parents:     parents,
		Properties:  Properties{HasCycles: true},
	}
}

// WithOrphans appends n rows whose parent does not exist.
func (g *Generator) WithOrphans(f TreeFixture, n int) TreeFixture {
	for i := 0; i < n; i++ {
		f.Parents = append(f.Parents, 1_000_000+i)
	}
	f.Properties.Orphans += n
	f.Properties.Roots += n
	return f
}

// ID returns the primary key of node i.
func ID(i int) int {
	return i + 1
}

var sampleNames = []string{"alpha", "Bravo", "charlie", "Delta", "echo", "Foxtrot", "golf", "Hotel"}

func (g *Generator) payload(i int) model.Row {
	return model.Row{
		g.cfg.PrimaryKey: ID(i),
		"name":           fmt.Sprintf("%s-%d", sampleNames[g.rng.Intn(len(sampleNames))], i),
		"score":          g.rng.Intn(100),
		"active":         g.rng.Intn(2) == 0,
		"created":        g.cfg.BaseTime.Add(time.Duration(i) * time.Hour),
	}
}

// ToForeignKeyRows converts a fixture to flat rows linked by foreign key.
// Root rows carry a nil foreign key.
func (g *Generator) ToForeignKeyRows(f TreeFixture) []model.Row {
	rows := make([]model.Row, f.Size())
	for i, p := range f.Parents {
		row := g.payload(i)
		if p < 0 {
			row[g.cfg.ForeignKey] = nil
		} else {
			row[g.cfg.ForeignKey] = ID(p)
		}
		rows[i] = row
	}
	return rows
}

// ToNestedRows converts a fixture to root rows carrying their children
// under the child data key. Orphans become roots; cyclic fixtures are not
// representable and return nil.
func (g *Generator) ToNestedRows(f TreeFixture) []model.Row {
	if f.Properties.HasCycles {
		return nil
	}
	rows := make([]model.Row, f.Size())
	for i := range rows {
		rows[i] = g.payload(i)
	}
	var roots []model.Row
	for i, p := range f.Parents {
		if p < 0 || p >= f.Size() {
			roots = append(roots, rows[i])
			continue
		}
		kids, _ := rows[p][g.cfg.ChildDataKey].([]model.Row)
		rows[p][g.cfg.ChildDataKey] = append(kids, rows[i])
	}
	return roots
}

// ToJSONL renders rows as one JSON object per line.
func ToJSONL(rows []model.Row) string {
	var sb strings.Builder
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			continue
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// QuickTree creates foreign-key rows for a complete tree with default
// settings.
func QuickTree(depth, breadth int) []model.Row {
	gen := NewDefault()
	return gen.ToForeignKeyRows(gen.Tree(depth, breadth))
}

// QuickForest creates foreign-key rows for a forest with default settings.
func QuickForest(roots, depth, breadth int) []model.Row {
	gen := NewDefault()
	return gen.ToForeignKeyRows(gen.Forest(roots, depth, breadth))
}

// QuickNested creates nested rows for a forest with default settings.
func QuickNested(roots, depth, breadth int) []model.Row {
	gen := NewDefault()
	return gen.ToNestedRows(gen.Forest(roots, depth, breadth))
}

// QuickRandom creates foreign-key rows for a random forest.
func QuickRandom(size int, rootRate float64) []model.Row {
	gen := NewDefault()
	return gen.ToForeignKeyRows(gen.Random(size, rootRate))
}
