package grid

import (
	"fmt"
	"strings"
)

// FilterOperator names a comparison applied by a filter entry.
type FilterOperator string

const (
	OpEquals       FilterOperator = "eq"
	OpNotEquals    FilterOperator = "neq"
	OpGreater      FilterOperator = "gt"
	OpGreaterEqual FilterOperator = "gte"
	OpLess         FilterOperator = "lt"
	OpLessEqual    FilterOperator = "lte"
	OpIn           FilterOperator = "in"
	OpContains     FilterOperator = "contains"
)

// Filter is one (field, operator, value) constraint.
type Filter struct {
	Field    string
	Operator FilterOperator
	Value    interface{}
}

// FilterSpec is a set of filters combined with AND semantics. Entry order
// never affects the result set.
type FilterSpec []Filter

// Matches evaluates the full spec against a record. A record with an
// absent field fails that filter and is excluded.
func (fs FilterSpec) Matches(record Record) bool {
	for _, f := range fs {
		if !f.Matches(record) {
			return false
		}
	}

	return true
}

// Matches evaluates a single filter against a record.
func (f Filter) Matches(record Record) bool {
	value, ok := record.Field(f.Field)
	if !ok || value == nil {
		return false
	}

	switch f.Operator {
	case OpEquals:
		return compareLoose(value, f.Value) == 0
	case OpNotEquals:
		return compareLoose(value, f.Value) != 0
	case OpGreater:
		return compareLoose(value, f.Value) > 0
	case OpGreaterEqual:
		return compareLoose(value, f.Value) >= 0
	case OpLess:
		return compareLoose(value, f.Value) < 0
	case OpLessEqual:
		return compareLoose(value, f.Value) <= 0
	case OpIn:
		return matchesIn(value, f.Value)
	case OpContains:
		return strings.Contains(
			strings.ToLower(toString(value)),
			strings.ToLower(toString(f.Value)),
		)
	default:
		return false
	}
}

// matchesIn tests set membership against a []string or []interface{} set.
func matchesIn(value, set interface{}) bool {
	switch s := set.(type) {
	case []string:
		for _, item := range s {
			if compareLoose(value, item) == 0 {
				return true
			}
		}
	case []interface{}:
		for _, item := range s {
			if compareLoose(value, item) == 0 {
				return true
			}
		}
	}

	return false
}

// compareLoose compares two values numerically when both coerce to
// numbers, and as strings otherwise. Filters deal with user-supplied
// values whose Go type rarely matches the record's exactly.
func compareLoose(a, b interface{}) int {
	af, aerr := toFloat(a)
	bf, berr := toFloat(b)
	if aerr == nil && berr == nil {
		return compareFloat(af, bf)
	}

	return strings.Compare(toString(a), toString(b))
}

// MatchesSearch reports whether any searchable column of the record
// contains the term (case-insensitive substring). An empty term matches
// everything.
func MatchesSearch(record Record, term string, searchable []string) bool {
	if term == "" {
		return true
	}

	needle := strings.ToLower(term)
	for _, key := range searchable {
		value, ok := record.Field(key)
		if !ok || value == nil {
			continue
		}
		if strings.Contains(strings.ToLower(toString(value)), needle) {
			return true
		}
	}

	return false
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}
