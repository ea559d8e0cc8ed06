package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseSort parses "field[:asc|desc],..." into sort expressions. String
// comparisons ignore case.
func ParseSort(s string) ([]SortExpression, error) {
	var out []SortExpression
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("sort %q: missing field", part)
		}
		expr := SortExpression{Field: field, Dir: SortAscending, IgnoreCase: true}
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			expr.Dir = SortDescending
		default:
			return nil, fmt.Errorf("sort %q: unknown direction %q", part, dir)
		}
		out = append(out, expr)
	}
	return out, nil
}

// FormatSort is the inverse of ParseSort.
func FormatSort(exprs []SortExpression) string {
	var parts []string
	for _, e := range activeExpressions(exprs) {
		parts = append(parts, e.Field+":"+e.Dir.String())
	}
	return strings.Join(parts, ",")
}

var conditionPattern = regexp.MustCompile(`^\s*([\w.]+)\s*(>=|<=|!=|!~|\^=|\$=|=|>|<|~|\sis\s)\s*(.*?)\s*$`)

var symbolOps = map[string]string{
	"=":  "equals",
	"!=": "doesNotEqual",
	">":  "greaterThan",
	"<":  "lessThan",
	">=": "greaterThanOrEqualTo",
	"<=": "lessThanOrEqualTo",
	"~":  "contains",
	"!~": "doesNotContain",
	"^=": "startsWith",
	"$=": "endsWith",
}

var dateOps = map[string]string{
	"=":  "equals",
	"!=": "doesNotEqual",
	"<":  "before",
	">":  "after",
}

// ParseCondition parses a single condition such as "age >= 30",
// `name ~ "smith"`, "due < 2024-01-31" or "notes is empty". The data type is
// inferred from the value: numbers, dates (YYYY-MM-DD or RFC 3339) and
// true/false select their registries; anything else is a case-insensitive
// string condition.
func ParseCondition(s string) (*Condition, error) {
	m := conditionPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("condition %q: expected <field> <op> <value>", s)
	}
	field, sym, raw := m[1], strings.TrimSpace(m[2]), m[3]

	if sym == "is" {
		return parseUnary(field, raw)
	}

	if unquoted, err := strconv.Unquote(raw); err == nil {
		return stringCondition(field, sym, unquoted)
	}
	switch sym {
	case "~", "!~", "^=", "$=":
		return stringCondition(field, sym, raw)
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		op, err := LookupCondition(TypeNumber, symbolOps[sym])
		if err != nil {
			return nil, err
		}
		return &Condition{Field: field, Condition: op, SearchVal: n}, nil
	}
	if b, ok := asBool(raw); ok && (sym == "=" || sym == "!=") {
		name := strconv.FormatBool(b == (sym == "="))
		op, err := LookupCondition(TypeBoolean, name)
		if err != nil {
			return nil, err
		}
		return &Condition{Field: field, Condition: op}, nil
	}
	if t, ok := parseTime(raw); ok {
		name, ok := dateOps[sym]
		if !ok {
			return nil, fmt.Errorf("condition %q: operator %s not supported for dates", s, sym)
		}
		op, err := LookupCondition(TypeDate, name)
		if err != nil {
			return nil, err
		}
		return &Condition{Field: field, Condition: op, SearchVal: t}, nil
	}
	return stringCondition(field, sym, raw)
}

func stringCondition(field, sym, val string) (*Condition, error) {
	op, err := LookupCondition(TypeString, symbolOps[sym])
	if err != nil {
		return nil, err
	}
	return &Condition{Field: field, Condition: op, SearchVal: val, IgnoreCase: true}, nil
}

func parseUnary(field, name string) (*Condition, error) {
	typ := TypeString
	if _, ok := asBool(name); ok {
		typ = TypeBoolean
	}
	op, err := LookupCondition(typ, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if !op.Unary {
		return nil, fmt.Errorf("condition %s is %s: needs a value", field, name)
	}
	return &Condition{Field: field, Condition: op}, nil
}

// ParseFilter parses each expression with ParseCondition and joins them
// with op. No expressions yield a nil tree.
func ParseFilter(op Logic, exprs ...string) (*FilterTree, error) {
	if len(exprs) == 0 {
		return nil, nil
	}
	tree := &FilterTree{Operator: op}
	for _, e := range exprs {
		c, err := ParseCondition(e)
		if err != nil {
			return nil, err
		}
		tree.Operands = append(tree.Operands, c)
	}
	return tree, nil
}
