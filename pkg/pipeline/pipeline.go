// Package pipeline implements the sort, filter and page stages that turn a
// record forest into the forest a grid displays, and a memoizing runner that
// chains them.
package pipeline

import (
	"fmt"
	"unsafe"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/vanderheijden86/treegrid/pkg/debug"
	"github.com/vanderheijden86/treegrid/pkg/metrics"
	"github.com/vanderheijden86/treegrid/pkg/model"
)

// Params are the inputs of one pipeline run. Trigger is an external counter;
// bumping it forces every stage to recompute even when nothing else changed.
type Params struct {
	Sort    []SortExpression
	Filter  *FilterTree
	Paging  PageState
	Trigger int64
}

// Result holds every stage's output.
type Result struct {
	Sorted   SortResult
	Filtered FilterResult
	Paged    PageResult
}

// Roots returns the final forest.
func (r Result) Roots() []*model.Node {
	return r.Paged.Roots
}

type stage[T any] struct {
	valid   bool
	input   uint64
	params  uint64
	trigger int64
	out     T
	version uint64
}

// Pipeline memoizes each stage. A stage reruns only when its input forest,
// its parameter hash or the trigger changed.
type Pipeline struct {
	store ForceExpander

	gen     uint64
	sort    stage[SortResult]
	filter  stage[FilterResult]
	page    stage[PageResult]
	flagged bool
}

// New returns a pipeline whose filter stage force-expands through store.
func New(store ForceExpander) *Pipeline {
	return &Pipeline{store: store}
}

// Invalidate drops every memoized result.
func (p *Pipeline) Invalidate() {
	p.sort.valid = false
	p.filter.valid = false
	p.page.valid = false
}

// Run processes roots. version identifies the input forest: callers bump it
// whenever they hand in a different forest.
func (p *Pipeline) Run(roots []*model.Node, version uint64, params Params) Result {
	sorted, sv := run(p, &p.sort, version, sortHash(params.Sort), params.Trigger, func() SortResult {
		return Sort(roots, params.Sort)
	})
	filtered, fv := run(p, &p.filter, sv, filterHash(params.Filter), params.Trigger, func() FilterResult {
		if params.Filter.IsEmpty() {
			if p.flagged {
				ClearFilterFlags(sorted.Roots)
				p.flagged = false
			}
			return Filter(sorted.Roots, nil, p.store)
		}
		p.flagged = true
		return Filter(sorted.Roots, params.Filter, p.store)
	})
	paged, _ := run(p, &p.page, fv, hashOf(params.Paging), params.Trigger, func() PageResult {
		return Page(filtered.Roots, params.Paging)
	})
	return Result{Sorted: sorted, Filtered: filtered, Paged: paged}
}

func run[T any](p *Pipeline, s *stage[T], input, params uint64, trigger int64, compute func() T) (T, uint64) {
	if s.valid && s.input == input && s.params == params && s.trigger == trigger && params != 0 {
		metrics.PipelineCache.Hit()
		return s.out, s.version
	}
	metrics.PipelineCache.Miss()
	p.gen++
	*s = stage[T]{
		valid:   true,
		input:   input,
		params:  params,
		trigger: trigger,
		out:     compute(),
		version: p.gen,
	}
	return s.out, s.version
}

// hashOf returns 0 when v cannot be hashed, which disables memoization for
// that run.
func hashOf(v any) uint64 {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		debug.Log("pipeline: hash params: %v", err)
		return 0
	}
	// reserve 0 for "unhashable"
	return h | 1
}

type sortKey struct {
	Field      string
	Dir        int
	IgnoreCase bool
}

// sortHash keys the sort stage. Any strategy other than DefaultCompare may
// carry captured state the hash cannot see, so it disables memoization.
func sortHash(exprs []SortExpression) uint64 {
	active := activeExpressions(exprs)
	keys := make([]sortKey, 0, len(active))
	for _, e := range active {
		if !sameFunc(e.Strategy, Comparator(DefaultCompare)) {
			return 0
		}
		keys = append(keys, sortKey{
			Field:      e.Field,
			Dir:        int(e.Dir),
			IgnoreCase: e.IgnoreCase,
		})
	}
	return hashOf(keys)
}

type filterKey struct {
	Operator   int
	Field      string
	Type       string
	Condition  string
	Search     string
	IgnoreCase bool
	Operands   []filterKey
}

// filterHash keys the filter stage. Conditions whose logic is not the
// registered one, and operand types other than Condition and FilterTree,
// disable memoization.
func filterHash(tree *FilterTree) uint64 {
	if tree.IsEmpty() {
		return hashOf(filterKey{})
	}
	k, ok := filterKeyOf(tree)
	if !ok {
		return 0
	}
	return hashOf(k)
}

func filterKeyOf(op FilterOperand) (filterKey, bool) {
	switch x := op.(type) {
	case *FilterTree:
		if x.IsEmpty() {
			return filterKey{}, true
		}
		k := filterKey{Operator: int(x.Operator) + 1}
		for _, child := range x.Operands {
			ck, ok := filterKeyOf(child)
			if !ok {
				return filterKey{}, false
			}
			k.Operands = append(k.Operands, ck)
		}
		return k, true
	case *Condition:
		if x == nil || !registered(x.Condition) {
			return filterKey{}, false
		}
		return filterKey{
			Field:      x.Field,
			Type:       string(x.Condition.Type),
			Condition:  x.Condition.Name,
			Search:     fmt.Sprintf("%T:%v", x.SearchVal, x.SearchVal),
			IgnoreCase: x.IgnoreCase,
		}, true
	default:
		return filterKey{}, false
	}
}

// registered reports whether op is the registry's own operation for its type
// and name.
func registered(op Operation) bool {
	reg, err := LookupCondition(op.Type, op.Name)
	return err == nil && reg.Unary == op.Unary && sameFunc(op.Logic, reg.Logic)
}

// sameFunc reports whether a and b are the same closure. Comparing code
// pointers is not enough: closures built by one factory share code but not
// captured state.
func sameFunc[F any](a, b F) bool {
	return *(*unsafe.Pointer)(unsafe.Pointer(&a)) == *(*unsafe.Pointer)(unsafe.Pointer(&b))
}
