package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/treegrid/pkg/model"
	"github.com/vanderheijden86/treegrid/pkg/pipeline"
)

// StateVersion is the schema version written by SaveState.
const StateVersion = 1

// GridState is the persisted view state of a grid. Row ids are stored in
// their string form.
type GridState struct {
	Version            int                   `json:"version"`
	DefaultExpandDepth *int                  `json:"default_expand_depth,omitempty"`
	Expansion          map[string]bool       `json:"expansion,omitempty"`
	Sorting            []pipeline.SortState  `json:"sorting,omitempty"`
	Filtering          *pipeline.FilterState `json:"filtering,omitempty"`
	Paging             *pipeline.PageState   `json:"paging,omitempty"`
	Selection          []string              `json:"selection,omitempty"`
}

// State captures the current expansion, selection and last Process
// parameters.
func (g *Grid) State() (*GridState, error) {
	filter, err := pipeline.EncodeFilter(g.params.Filter)
	if err != nil {
		return nil, err
	}
	depth := g.store.DefaultDepth()
	st := &GridState{
		Version:            StateVersion,
		DefaultExpandDepth: &depth,
		Sorting:            pipeline.EncodeSort(g.params.Sort),
		Filtering:          filter,
	}
	if g.params.Paging.Enabled {
		p := g.params.Paging
		st.Paging = &p
	}
	if snap := g.store.Snapshot(); len(snap) > 0 {
		st.Expansion = make(map[string]bool, len(snap))
		for id, v := range snap {
			st.Expansion[model.IDString(id)] = v
		}
	}
	for _, id := range g.selection.order {
		st.Selection = append(st.Selection, model.IDString(id))
	}
	return st, nil
}

// ApplyState restores expansion and selection from st and returns the
// Process parameters it describes. Ids that match no current row are
// ignored. The caller runs Process with the returned parameters.
func (g *Grid) ApplyState(st *GridState) (Params, error) {
	params := g.params
	if st == nil {
		return params, nil
	}
	if st.Version > StateVersion {
		return params, fmt.Errorf("state version %d is newer than supported version %d", st.Version, StateVersion)
	}
	sorting, err := pipeline.DecodeSort(st.Sorting)
	if err != nil {
		return params, fmt.Errorf("decode sorting: %w", err)
	}
	filter, err := pipeline.DecodeFilter(st.Filtering)
	if err != nil {
		return params, fmt.Errorf("decode filtering: %w", err)
	}
	if err := g.ensureBuilt(); err != nil {
		return params, err
	}

	byString := make(map[string]model.RowID, len(g.built.Records))
	for id := range g.built.Records {
		byString[model.IDString(id)] = id
	}

	if st.DefaultExpandDepth != nil {
		g.store.SetDefaultDepth(*st.DefaultExpandDepth)
	}
	expansion := make(map[model.RowID]bool, len(st.Expansion))
	for key, v := range st.Expansion {
		if id, ok := byString[key]; ok {
			expansion[id] = v
		}
	}
	g.store.ReplaceAll(expansion)

	g.selection.clear()
	var selected []model.RowID
	for _, key := range st.Selection {
		if id, ok := byString[key]; ok {
			selected = append(selected, id)
		}
	}
	if err := g.Select(selected...); err != nil {
		return params, err
	}

	params.Sort = sorting
	params.Filter = filter
	params.Paging = pipeline.PageState{}
	if st.Paging != nil {
		params.Paging = *st.Paging
	}
	g.params = params
	return params, nil
}

// SaveState writes the grid state as JSON to path, creating parent
// directories.
func (g *Grid) SaveState(path string) error {
	st, err := g.State()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal grid state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write grid state: %w", err)
	}
	return nil
}

// LoadState reads a state file written by SaveState and applies it. A
// missing file is not an error and leaves the grid untouched; a corrupt file
// is logged and reported.
func (g *Grid) LoadState(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return g.params, nil
	}
	if err != nil {
		return g.params, fmt.Errorf("read grid state: %w", err)
	}
	var st GridState
	if err := json.Unmarshal(data, &st); err != nil {
		log.Printf("warning: invalid grid state file %s, using defaults: %v", path, err)
		return g.params, fmt.Errorf("parse grid state: %w", err)
	}
	return g.ApplyState(&st)
}
