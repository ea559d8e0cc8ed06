package pipeline

import (
	"fmt"
	"strings"
)

// SortState is the persisted form of a sort expression. Custom comparators
// are not persisted.
type SortState struct {
	Field      string `json:"field" yaml:"field"`
	Dir        string `json:"dir" yaml:"dir"`
	IgnoreCase bool   `json:"ignore_case,omitempty" yaml:"ignore_case,omitempty"`
}

// EncodeSort converts expressions to their persisted form.
func EncodeSort(exprs []SortExpression) []SortState {
	var out []SortState
	for _, e := range activeExpressions(exprs) {
		out = append(out, SortState{Field: e.Field, Dir: e.Dir.String(), IgnoreCase: e.IgnoreCase})
	}
	return out
}

// DecodeSort is the inverse of EncodeSort.
func DecodeSort(states []SortState) ([]SortExpression, error) {
	var out []SortExpression
	for _, s := range states {
		e := SortExpression{Field: s.Field, IgnoreCase: s.IgnoreCase}
		switch strings.ToLower(s.Dir) {
		case "asc", "":
			e.Dir = SortAscending
		case "desc":
			e.Dir = SortDescending
		case "none":
			continue
		default:
			return nil, fmt.Errorf("sort %s: unknown direction %q", s.Field, s.Dir)
		}
		out = append(out, e)
	}
	return out, nil
}

// FilterState is the persisted form of a filter tree.
type FilterState struct {
	Operator string         `json:"operator" yaml:"operator"`
	Operands []OperandState `json:"operands" yaml:"operands"`
}

// OperandState is either a condition or, when Tree is set, a nested tree.
type OperandState struct {
	Field      string       `json:"field,omitempty" yaml:"field,omitempty"`
	Type       DataType     `json:"type,omitempty" yaml:"type,omitempty"`
	Condition  string       `json:"condition,omitempty" yaml:"condition,omitempty"`
	SearchVal  any          `json:"search_val,omitempty" yaml:"search_val,omitempty"`
	IgnoreCase bool         `json:"ignore_case,omitempty" yaml:"ignore_case,omitempty"`
	Tree       *FilterState `json:"tree,omitempty" yaml:"tree,omitempty"`
}

// EncodeFilter converts a filter tree to its persisted form. Only *Condition
// and *FilterTree operands can be encoded.
func EncodeFilter(tree *FilterTree) (*FilterState, error) {
	if tree.IsEmpty() {
		return nil, nil
	}
	st := &FilterState{Operator: tree.Operator.String()}
	for _, op := range tree.Operands {
		switch x := op.(type) {
		case *Condition:
			st.Operands = append(st.Operands, OperandState{
				Field:      x.Field,
				Type:       x.Condition.Type,
				Condition:  x.Condition.Name,
				SearchVal:  x.SearchVal,
				IgnoreCase: x.IgnoreCase,
			})
		case *FilterTree:
			sub, err := EncodeFilter(x)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				st.Operands = append(st.Operands, OperandState{Tree: sub})
			}
		default:
			return nil, fmt.Errorf("filter operand %T cannot be persisted", op)
		}
	}
	return st, nil
}

// DecodeFilter rebuilds a filter tree, looking conditions up by name.
func DecodeFilter(st *FilterState) (*FilterTree, error) {
	if st == nil || len(st.Operands) == 0 {
		return nil, nil
	}
	tree := &FilterTree{}
	switch strings.ToLower(st.Operator) {
	case "and", "":
		tree.Operator = And
	case "or":
		tree.Operator = Or
	default:
		return nil, fmt.Errorf("filter: unknown operator %q", st.Operator)
	}
	for _, o := range st.Operands {
		if o.Tree != nil {
			sub, err := DecodeFilter(o.Tree)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				tree.Operands = append(tree.Operands, sub)
			}
			continue
		}
		op, err := LookupCondition(o.Type, o.Condition)
		if err != nil {
			return nil, err
		}
		tree.Operands = append(tree.Operands, &Condition{
			Field:      o.Field,
			Condition:  op,
			SearchVal:  o.SearchVal,
			IgnoreCase: o.IgnoreCase,
		})
	}
	return tree, nil
}
