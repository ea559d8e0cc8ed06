package pipeline

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vanderheijden86/treegrid/pkg/model"
)

// Resolve returns the value of field in row. Dotted fields walk nested maps
// ("address.city").
func Resolve(row model.Row, field string) any {
	if row == nil {
		return nil
	}
	if v, ok := row[field]; ok || !strings.Contains(field, ".") {
		return v
	}
	var cur any = map[string]any(row)
	for _, part := range strings.Split(field, ".") {
		switch m := cur.(type) {
		case map[string]any:
			cur = m[part]
		case model.Row:
			cur = m[part]
		default:
			return nil
		}
	}
	return cur
}

// Comparator orders two field values. It returns a negative number when a
// sorts before b, zero when they tie and a positive number otherwise.
type Comparator func(a, b any, ignoreCase bool) int

// type ranks used when values of different kinds meet
const (
	rankNil = iota
	rankNumber
	rankString
	rankBool
	rankTime
	rankOther
)

func rankOf(v any) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case string:
		return rankString
	case time.Time:
		return rankTime
	}
	if _, ok := toFloat(v); ok {
		return rankNumber
	}
	return rankOther
}

// DefaultCompare is the comparator used when a sort expression names none.
// Nil sorts first, then numbers, strings, booleans and times. Numbers compare
// numerically across Go kinds and strings compare lexically, case-folded when
// ignoreCase is set.
func DefaultCompare(a, b any, ignoreCase bool) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case rankNumber:
		if ai, ok := toInt(a); ok {
			if bi, ok := toInt(b); ok {
				return cmp.Compare(ai, bi)
			}
		}
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return cmp.Compare(af, bf)
	case rankString:
		as, bs := a.(string), b.(string)
		if ignoreCase {
			as, bs = strings.ToLower(as), strings.ToLower(bs)
		}
		return strings.Compare(as, bs)
	case rankTime:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// parseNumber converts filter search values, which may arrive as strings.
func parseNumber(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, !x.IsZero()
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, !x.IsZero()
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case time.Time:
		return x.IsZero()
	}
	return false
}
