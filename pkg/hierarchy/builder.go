package hierarchy

import (
	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// Result is the output of a build.
type Result struct {
	Roots   []*model.Record
	Records map[model.RowID]*model.Record
	// FlatOrder is every row regardless of expansion: input order in
	// foreign-key mode, pre-order in child-data-key mode.
	FlatOrder []model.Row
	// Orphans lists rows promoted to roots because their parent reference
	// did not resolve.
	Orphans []model.RowID
}

// Len returns the number of records.
func (r *Result) Len() int {
	return len(r.Records)
}

// Build converts rows into a forest of records.
func Build(rows []model.Row, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	defer metrics.Timer(metrics.HierarchyBuild)()

	var (
		res *Result
		err error
	)
	switch opts.Mode() {
	case ModeForeignKey:
		res, err = buildForeignKey(rows, opts)
	case ModeChildDataKey:
		res, err = buildNested(rows, opts)
	}
	if err != nil {
		return nil, err
	}
	debug.Log("hierarchy: built %d records, %d roots (%s mode)", len(res.Records), len(res.Roots), opts.Mode())
	return res, nil
}

// buildForeignKey links rows in two explicit passes so that parents may
// appear after their children in the input.
func buildForeignKey(rows []model.Row, opts Options) (*Result, error) {
	res := &Result{
		Records:   make(map[model.RowID]*model.Record, len(rows)),
		FlatOrder: make([]model.Row, 0, len(rows)),
	}

	// Pass 1: index every row by primary key.
	ordered := make([]*model.Record, 0, len(rows))
	for i, row := range rows {
		id, ok := opts.IdentityOf(row)
		if !ok {
			return nil, &model.MissingKeyError{Field: opts.PrimaryKey, Index: i}
		}
		if _, dup := res.Records[id]; dup {
			return nil, &model.DuplicateRowIDError{RowID: id}
		}
		rec := &model.Record{RowID: id, Data: row}
		res.Records[id] = rec
		ordered = append(ordered, rec)
		res.FlatOrder = append(res.FlatOrder, row)
	}

	// Pass 2: link by foreign key. Unresolved references become roots after
	// the true roots.
	var selfRefs []*model.Record
	var orphans []*model.Record
	for _, rec := range ordered {
		parentID, hasParent := model.NormalizeID(rec.Data[opts.ForeignKey])
		if !hasParent {
			res.Roots = append(res.Roots, rec)
			continue
		}
		parent, found := res.Records[parentID]
		switch {
		case !found:
			orphans = append(orphans, rec)
		case parent == rec:
			selfRefs = append(selfRefs, rec)
		default:
			rec.Parent = parent
			parent.Children = append(parent.Children, rec)
		}
	}
	for _, rec := range orphans {
		res.Roots = append(res.Roots, rec)
		res.Orphans = append(res.Orphans, rec.RowID)
	}
	debug.LogIf(len(orphans) > 0, "hierarchy: promoted %d orphan rows to roots", len(orphans))

	reached := assignLevels(res.Roots)
	if len(selfRefs) > 0 || reached != len(ordered) {
		return nil, cycleError(ordered, selfRefs, res.Roots)
	}
	return res, nil
}

// assignLevels walks the forest from its roots, setting levels and kinds, and
// returns the number of records reached.
func assignLevels(roots []*model.Record) int {
	n := 0
	var walk func(rec *model.Record, level int)
	walk = func(rec *model.Record, level int) {
		n++
		rec.Level = level
		rec.UpdateKind()
		for _, c := range rec.Children {
			walk(c, level+1)
		}
	}
	for _, r := range roots {
		walk(r, 0)
	}
	return n
}

// buildNested descends into embedded child collections, assigning level and
// parent during traversal.
func buildNested(rows []model.Row, opts Options) (*Result, error) {
	res := &Result{
		Records: make(map[model.RowID]*model.Record, len(rows)),
	}
	inPath := make(map[model.RowRef]model.RowID)
	seen := make(map[model.RowRef]bool)
	var path []model.RowID

	var visit func(row model.Row, parent *model.Record, level int) (*model.Record, error)
	visit = func(row model.Row, parent *model.Record, level int) (*model.Record, error) {
		ref := model.RefOf(row)
		id, ok := opts.IdentityOf(row)
		if !ok {
			return nil, &model.MissingKeyError{Field: opts.PrimaryKey, Index: len(res.FlatOrder)}
		}
		if _, looping := inPath[ref]; looping {
			return nil, &model.CyclicHierarchyError{Cycles: [][]model.RowID{loopFrom(path, inPath[ref])}}
		}
		if seen[ref] {
			return nil, &model.DuplicateRowIDError{RowID: id}
		}
		if _, dup := res.Records[id]; dup {
			return nil, &model.DuplicateRowIDError{RowID: id}
		}
		seen[ref] = true

		rec := &model.Record{RowID: id, Data: row, Parent: parent, Level: level}
		res.Records[id] = rec
		res.FlatOrder = append(res.FlatOrder, row)

		inPath[ref] = id
		path = append(path, id)
		for _, child := range ChildRows(row, opts.ChildDataKey) {
			c, err := visit(child, rec, level+1)
			if err != nil {
				return nil, err
			}
			rec.Children = append(rec.Children, c)
		}
		path = path[:len(path)-1]
		delete(inPath, ref)

		rec.UpdateKind()
		return rec, nil
	}

	for _, row := range rows {
		rec, err := visit(row, nil, 0)
		if err != nil {
			return nil, err
		}
		res.Roots = append(res.Roots, rec)
	}
	return res, nil
}

func loopFrom(path []model.RowID, start model.RowID) []model.RowID {
	for i, id := range path {
		if id == start {
			return append([]model.RowID(nil), path[i:]...)
		}
	}
	return []model.RowID{start}
}

// ChildRows returns the rows embedded under key. Unknown shapes yield nil so
// that malformed child fields degrade to leaves.
func ChildRows(row model.Row, key string) []model.Row {
	switch v := row[key].(type) {
	case []model.Row:
		return v
	case []map[string]any:
		out := make([]model.Row, 0, len(v))
		for _, m := range v {
			if m != nil {
				out = append(out, model.Row(m))
			}
		}
		return out
	case []any:
		out := make([]model.Row, 0, len(v))
		for _, e := range v {
			switch m := e.(type) {
			case model.Row:
				if m != nil {
					out = append(out, m)
				}
			case map[string]any:
				if m != nil {
					out = append(out, model.Row(m))
				}
			}
		}
		return out
	}
	return nil
}
