package pipeline

import (
	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// PageState selects a window of root rows.
type PageState struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Index   int  `json:"index" yaml:"index"`
	Size    int  `json:"size" yaml:"size"`
}

// PageResult is the output of the paging stage. Index is the page actually
// shown after clamping.
type PageResult struct {
	Roots      []*model.Node
	Index      int
	TotalPages int
	TotalRoots int
}

// Page slices root nodes only; a root's subtree always stays on the root's
// page. Out-of-range indexes clamp to the nearest page. There is always at
// least one page, possibly empty.
func Page(roots []*model.Node, state PageState) PageResult {
	total := len(roots)
	if !state.Enabled || state.Size <= 0 {
		return PageResult{Roots: roots, TotalPages: 1, TotalRoots: total}
	}
	defer metrics.Timer(metrics.PageStage)()

	pages := max((total+state.Size-1)/state.Size, 1)
	idx := state.Index
	if idx >= pages {
		idx = pages - 1
	}
	if idx < 0 {
		idx = 0
	}
	start := idx * state.Size
	end := min(start+state.Size, total)
	return PageResult{
		Roots:      roots[start:end:end],
		Index:      idx,
		TotalPages: pages,
		TotalRoots: total,
	}
}
