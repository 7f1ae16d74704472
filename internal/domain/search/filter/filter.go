// Package filter holds the index pre-filters of a paper search: tag matches
// and numeric ranges, combined as must (all of) plus one should (any of) group.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Expression is a pre-filter: every must condition and, when present, at
// least one should condition.
type Expression struct {
	must   []Condition
	should []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, should []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(should) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many should conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, should: should}, nil
}

// AnyOf matches documents whose tag field key holds any of values.
// Blank values are skipped; the returned slice holds the kept values.
func AnyOf(key string, values []string) (Expression, []string, error) {
	var kept []string
	var should []Condition
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		c, err := NewMatch(key, v)
		if err != nil {
			return Expression{}, nil, err
		}
		kept = append(kept, v)
		should = append(should, c)
	}
	e, err := NewExpression(nil, should)
	if err != nil {
		return Expression{}, nil, err
	}
	return e, kept, nil
}

// And returns a copy of e with extra must conditions.
func (e Expression) And(conds ...Condition) (Expression, error) {
	must := make([]Condition, 0, len(e.must)+len(conds))
	must = append(must, e.must...)
	must = append(must, conds...)
	return NewExpression(must, e.should)
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// Should returns the should conditions.
func (e Expression) Should() []Condition { return e.should }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.should) == 0
}

// Condition is a single filter clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, errors.New("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, errors.New("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, errors.New("at least one range boundary is required")
	}
	if gt != nil && gte != nil {
		return Range{}, errors.New("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, errors.New("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// TimeRange covers unix seconds in [since, until). A zero bound is open.
func TimeRange(since, until time.Time) (Range, error) {
	if !since.IsZero() && !until.IsZero() && !until.After(since) {
		return Range{}, fmt.Errorf("empty time range %s..%s",
			since.UTC().Format(time.DateOnly), until.UTC().Format(time.DateOnly))
	}
	var gte, lt *float64
	if !since.IsZero() {
		v := float64(since.Unix())
		gte = &v
	}
	if !until.IsZero() {
		v := float64(until.Unix())
		lt = &v
	}
	return NewRangeFilter(nil, gte, lt, nil)
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }
