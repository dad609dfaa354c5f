package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/broxiva/subscriptions/pkg/types"
)

// matchAll evaluates validated filters against a record flattened to column
// values, following the semantics of types.CommonFilter.Build.
func matchAll(fields map[string]any, filters types.CommonFilters) bool {
	for _, f := range filters {
		if !match(fields[f.Field], f) {
			return false
		}
	}
	return true
}

func match(v any, f *types.CommonFilter) bool {
	if len(f.Values) == 0 {
		return true
	}
	first := f.Values[0]
	switch f.Operator {
	case types.CommonFilterOperatorEq:
		return compareValues(v, first) == 0
	case types.CommonFilterOperatorNotEq:
		return compareValues(v, first) != 0
	case types.CommonFilterOperatorLt:
		return compareValues(v, first) < 0
	case types.CommonFilterOperatorLte:
		return compareValues(v, first) <= 0
	case types.CommonFilterOperatorGt:
		return compareValues(v, first) > 0
	case types.CommonFilterOperatorGte:
		return compareValues(v, first) >= 0
	case types.CommonFilterOperatorRange:
		return len(f.Values) >= 2 && compareValues(v, first) >= 0 && compareValues(v, f.Values[1]) <= 0
	case types.CommonFilterOperatorIn:
		for _, candidate := range f.Values {
			if compareValues(v, candidate) == 0 {
				return true
			}
		}
		return false
	}
	return false
}

// compareValues compares a column value with a filter value. Times compare
// chronologically against RFC 3339 or YYYY-MM-DD strings; everything else
// compares by its string form.
func compareValues(a, b any) int {
	if ta, ok := a.(time.Time); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb)
		}
	}
	if pa, ok := a.(*time.Time); ok {
		if pa == nil {
			return strings.Compare("", fmt.Sprint(b))
		}
		return compareValues(*pa, b)
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
