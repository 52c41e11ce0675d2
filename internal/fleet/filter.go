package fleet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/djorigin/rpasops/internal/util"
)

// Relation filter expressions are conjunctions of simple comparisons, e.g.
//
//	severity == major && rectified_date == null
//	due_date < today && completed_date == null
//
// The right-hand side is a literal, the sentinel "null", or the sentinel
// "today". Conditions are evaluated in memory against the related records.

type filterOp string

const (
	opEq filterOp = "=="
	opNe filterOp = "!="
	opLt filterOp = "<"
	opGt filterOp = ">"
)

type condition struct {
	field string
	op    filterOp
	value string
}

// parseFilter splits a filter expression into conditions. An empty filter
// matches everything.
func parseFilter(expr string) ([]condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var conds []condition
	for _, clause := range strings.Split(expr, "&&") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return nil, fmt.Errorf("fleet: empty clause in filter %q", expr)
		}

		var op filterOp
		var idx int
		// Two-character operators have to be tried first.
		for _, candidate := range []filterOp{opEq, opNe, opLt, opGt} {
			if i := strings.Index(clause, string(candidate)); i > 0 {
				op, idx = candidate, i
				break
			}
		}
		if op == "" {
			return nil, fmt.Errorf("fleet: no comparison operator in clause %q", clause)
		}

		field := strings.TrimSpace(clause[:idx])
		value := strings.TrimSpace(clause[idx+len(op):])
		if field == "" || value == "" {
			return nil, fmt.Errorf("fleet: malformed clause %q", clause)
		}
		conds = append(conds, condition{field: field, op: op, value: value})
	}
	return conds, nil
}

// fieldGetter exposes a record's fields to the matcher. Unknown fields
// return ok=false, which fails the whole match as a filter error.
type fieldGetter func(name string) (any, bool)

// matchAll reports whether a record satisfies every condition. The second
// return is false when a condition references an unknown field or an
// unsupported comparison.
func matchAll(conds []condition, get fieldGetter, now time.Time) (bool, bool) {
	for _, cond := range conds {
		value, known := get(cond.field)
		if !known {
			return false, false
		}
		matched, ok := matchOne(cond, value, now)
		if !ok {
			return false, false
		}
		if !matched {
			return false, true
		}
	}
	return true, true
}

func matchOne(cond condition, value any, now time.Time) (matched, ok bool) {
	switch cond.value {
	case "null":
		isNil := value == nil
		switch cond.op {
		case opEq:
			return isNil, true
		case opNe:
			return !isNil, true
		}
		return false, false

	case "today":
		dt, isTime := asDate(value)
		if !isTime {
			// An unset date never equals, precedes, or follows today.
			switch cond.op {
			case opEq, opLt, opGt:
				return false, true
			case opNe:
				return true, true
			}
			return false, false
		}
		today := util.DateOnly(now)
		switch cond.op {
		case opLt:
			return dt.Before(today), true
		case opGt:
			return dt.After(today), true
		case opEq:
			return dt.Equal(today), true
		case opNe:
			return !dt.Equal(today), true
		}
		return false, false
	}

	switch v := value.(type) {
	case nil:
		// A literal never equals an unset value.
		switch cond.op {
		case opEq:
			return false, true
		case opNe:
			return true, true
		}
		return false, false
	case string:
		switch cond.op {
		case opEq:
			return v == cond.value, true
		case opNe:
			return v != cond.value, true
		}
		return false, false
	case bool:
		want, err := strconv.ParseBool(cond.value)
		if err != nil {
			return false, false
		}
		switch cond.op {
		case opEq:
			return v == want, true
		case opNe:
			return v != want, true
		}
		return false, false
	case float64:
		want, err := strconv.ParseFloat(cond.value, 64)
		if err != nil {
			return false, false
		}
		switch cond.op {
		case opEq:
			return v == want, true
		case opNe:
			return v != want, true
		case opLt:
			return v < want, true
		case opGt:
			return v > want, true
		}
		return false, false
	case int:
		return matchOne(cond, float64(v), now)
	}
	return false, false
}

func asDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return util.DateOnly(v), true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return util.DateOnly(*v), true
	}
	return time.Time{}, false
}
