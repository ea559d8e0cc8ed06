package pipeline

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// DataType selects a condition registry.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeDate    DataType = "date"
)

// Operation is a named filtering condition. Unary operations ignore the
// search value.
type Operation struct {
	Name  string
	Type  DataType
	Unary bool
	Logic func(value, search any, ignoreCase bool) bool
}

var registries = map[DataType][]Operation{
	TypeString:  stringConditions(),
	TypeNumber:  numberConditions(),
	TypeBoolean: booleanConditions(),
	TypeDate:    dateConditions(),
}

// LookupCondition returns the named condition of a data type. Unknown names
// wrap model.ErrUnknownCondition.
func LookupCondition(typ DataType, name string) (Operation, error) {
	for _, op := range registries[typ] {
		if op.Name == name {
			return op, nil
		}
	}
	return Operation{}, fmt.Errorf("%w: %s/%s", model.ErrUnknownCondition, typ, name)
}

// ConditionNames lists the conditions registered for a data type.
func ConditionNames(typ DataType) []string {
	var names []string
	for _, op := range registries[typ] {
		names = append(names, op.Name)
	}
	return names
}

// shared by every registry
func presenceConditions(typ DataType) []Operation {
	return []Operation{
		{Name: "empty", Type: typ, Unary: true, Logic: func(v, _ any, _ bool) bool { return isEmptyValue(v) }},
		{Name: "notEmpty", Type: typ, Unary: true, Logic: func(v, _ any, _ bool) bool { return !isEmptyValue(v) }},
		{Name: "null", Type: typ, Unary: true, Logic: func(v, _ any, _ bool) bool { return v == nil }},
		{Name: "notNull", Type: typ, Unary: true, Logic: func(v, _ any, _ bool) bool { return v != nil }},
	}
}

func stringPair(v, search any, ignoreCase bool) (string, string, bool) {
	if v == nil {
		return "", "", false
	}
	a, b := fmt.Sprint(v), fmt.Sprint(search)
	if search == nil {
		b = ""
	}
	if ignoreCase {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	return a, b, true
}

func stringOp(name string, fn func(a, b string) bool) Operation {
	return Operation{Name: name, Type: TypeString, Logic: func(v, search any, ignoreCase bool) bool {
		a, b, ok := stringPair(v, search, ignoreCase)
		return ok && fn(a, b)
	}}
}

func stringConditions() []Operation {
	ops := []Operation{
		stringOp("contains", strings.Contains),
		{Name: "doesNotContain", Type: TypeString, Logic: func(v, search any, ignoreCase bool) bool {
			a, b, ok := stringPair(v, search, ignoreCase)
			return !ok || !strings.Contains(a, b)
		}},
		stringOp("startsWith", strings.HasPrefix),
		stringOp("endsWith", strings.HasSuffix),
		stringOp("equals", func(a, b string) bool { return a == b }),
		{Name: "doesNotEqual", Type: TypeString, Logic: func(v, search any, ignoreCase bool) bool {
			a, b, ok := stringPair(v, search, ignoreCase)
			return !ok || a != b
		}},
		{Name: "in", Type: TypeString, Logic: func(v, search any, ignoreCase bool) bool {
			set := stringSet(search)
			if len(set) == 0 || v == nil {
				return false
			}
			a := fmt.Sprint(v)
			if ignoreCase {
				return slices.ContainsFunc(set, func(s string) bool { return strings.EqualFold(s, a) })
			}
			return slices.Contains(set, a)
		}},
	}
	return append(ops, presenceConditions(TypeString)...)
}

// stringSet accepts []string or the []any a JSON round trip produces.
func stringSet(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}

func numberOp(name string, fn func(a, b float64) bool) Operation {
	return Operation{Name: name, Type: TypeNumber, Logic: func(v, search any, _ bool) bool {
		a, ok := parseNumber(v)
		if !ok {
			return false
		}
		b, ok := parseNumber(search)
		return ok && fn(a, b)
	}}
}

func numberConditions() []Operation {
	ops := []Operation{
		numberOp("equals", func(a, b float64) bool { return a == b }),
		{Name: "doesNotEqual", Type: TypeNumber, Logic: func(v, search any, _ bool) bool {
			a, okA := parseNumber(v)
			b, okB := parseNumber(search)
			return !okA || !okB || a != b
		}},
		numberOp("greaterThan", func(a, b float64) bool { return a > b }),
		numberOp("lessThan", func(a, b float64) bool { return a < b }),
		numberOp("greaterThanOrEqualTo", func(a, b float64) bool { return a >= b }),
		numberOp("lessThanOrEqualTo", func(a, b float64) bool { return a <= b }),
	}
	return append(ops, presenceConditions(TypeNumber)...)
}

func asBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

func booleanConditions() []Operation {
	ops := []Operation{
		{Name: "all", Type: TypeBoolean, Unary: true, Logic: func(any, any, bool) bool { return true }},
		{Name: "true", Type: TypeBoolean, Unary: true, Logic: func(v, _ any, _ bool) bool {
			b, ok := asBool(v)
			return ok && b
		}},
		{Name: "false", Type: TypeBoolean, Unary: true, Logic: func(v, _ any, _ bool) bool {
			b, ok := asBool(v)
			return ok && !b
		}},
	}
	return append(ops, presenceConditions(TypeBoolean)...)
}

// day truncates t to its calendar date in its own location.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateOp(name string, fn func(a, b time.Time) bool) Operation {
	return Operation{Name: name, Type: TypeDate, Logic: func(v, search any, _ bool) bool {
		a, ok := parseTime(v)
		if !ok {
			return false
		}
		b, ok := parseTime(search)
		return ok && fn(day(a), day(b))
	}}
}

func dateConditions() []Operation {
	ops := []Operation{
		dateOp("equals", time.Time.Equal),
		{Name: "doesNotEqual", Type: TypeDate, Logic: func(v, search any, _ bool) bool {
			a, okA := parseTime(v)
			b, okB := parseTime(search)
			return !okA || !okB || !day(a).Equal(day(b))
		}},
		dateOp("before", time.Time.Before),
		dateOp("after", time.Time.After),
		dateOp("thisYear", func(a, b time.Time) bool { return a.Year() == b.Year() }),
		dateOp("thisMonth", func(a, b time.Time) bool { return a.Year() == b.Year() && a.Month() == b.Month() }),
	}
	return append(ops, presenceConditions(TypeDate)...)
}
