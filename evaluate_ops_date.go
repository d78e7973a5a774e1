package reactiveschema

import (
	"math"
	"time"
)

const dateOnlyLayout = "2006-01-02"

// evalDateOp implements the Date group (spec.md §4.B): today now days year
// month day date yearfrac datedif. Dates accept both "YYYY-MM-DD" and ISO
// 8601; today/now apply the configured timezone offset.
func (e *Evaluator) evalDateOp(n *Node, scope *Scope, depth int) (any, error) {
	switch n.Kind {
	case KindToday:
		return e.now().Format(dateOnlyLayout), nil
	case KindNow:
		return e.now().Format(time.RFC3339), nil
	}

	arg0, err := e.arg(n, 0, scope, depth)
	if err != nil {
		return nil, err
	}

	switch n.Kind {
	case KindYear, KindMonth, KindDay:
		t, ok := parseDate(toStringValue(arg0))
		if !ok {
			return nil, nil
		}
		switch n.Kind {
		case KindYear:
			return float64(t.Year()), nil
		case KindMonth:
			return float64(t.Month()), nil
		default:
			return float64(t.Day()), nil
		}
	case KindDate:
		y, err := e.intArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		m, err := e.intArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		d, err := e.intArg(n, 2, scope, depth)
		if err != nil {
			return nil, err
		}
		return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC).Format(dateOnlyLayout), nil
	case KindDays:
		a, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		b, err := e.stringArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		ta, okA := parseDate(a)
		tb, okB := parseDate(b)
		if !okA || !okB {
			return nil, nil
		}
		return float64(int(tb.Sub(ta).Hours() / 24)), nil
	case KindYearFrac:
		a, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		b, err := e.stringArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		ta, okA := parseDate(a)
		tb, okB := parseDate(b)
		if !okA || !okB {
			return nil, nil
		}
		return normalizeNumber(tb.Sub(ta).Hours() / 24 / 365), nil
	case KindDateDif:
		a, err := e.stringArg(n, 0, scope, depth)
		if err != nil {
			return nil, err
		}
		b, err := e.stringArg(n, 1, scope, depth)
		if err != nil {
			return nil, err
		}
		unit, err := e.stringArg(n, 2, scope, depth)
		if err != nil {
			return nil, err
		}
		ta, okA := parseDate(a)
		tb, okB := parseDate(b)
		if !okA || !okB {
			return nil, nil
		}
		days := tb.Sub(ta).Hours() / 24
		switch unit {
		case "Y":
			return math.Trunc(days / 365), nil
		case "M":
			return math.Trunc(days / 30), nil
		default:
			return math.Trunc(days), nil
		}
	}
	return nil, nil
}

func (e *Evaluator) now() time.Time {
	t := time.Now().UTC()
	if e.tzOffsetMinutes != nil {
		t = t.Add(time.Duration(*e.tzOffsetMinutes) * time.Minute)
	}
	return t
}

func parseDate(s string) (time.Time, bool) {
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
