package grid

import (
	"math"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortDirection orders a sort key ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortKey is one (field, direction) entry of a sort spec.
type SortKey struct {
	Field     string
	Direction SortDirection
}

// SortSpec is an ordered sequence of sort keys. The first entry is the
// primary key; subsequent entries break ties. Records equal under every
// key keep their previous relative order (the sort is stable).
type SortSpec []SortKey

// Sorter compares records per the column type model: locale-aware
// case-insensitive comparison for text columns, ordinal comparison for
// numbers and dates. Null, absent and NaN values sort last regardless of
// direction.
type Sorter struct {
	collator *collate.Collator
	types    map[string]ColumnType
}

// NewSorter creates a sorter for the given column set.
func NewSorter(columns []ColumnDefinition) *Sorter {
	types := make(map[string]ColumnType, len(columns))
	for _, col := range columns {
		types[col.Key] = col.Type
	}

	return &Sorter{
		collator: collate.New(language.Und, collate.IgnoreCase),
		types:    types,
	}
}

// Sort stably sorts records in place according to spec.
func (s *Sorter) Sort(records []Record, spec SortSpec) {
	if len(spec) == 0 {
		return
	}

	sort.SliceStable(records, func(i, j int) bool {
		return s.Less(records[i], records[j], spec)
	})
}

// Less reports whether a orders before b under spec.
func (s *Sorter) Less(a, b Record, spec SortSpec) bool {
	for _, key := range spec {
		if cmp := s.compare(a, b, key); cmp != 0 {
			return cmp < 0
		}
	}

	return false
}

// compare returns -1, 0 or 1 for a single sort key, with direction applied.
func (s *Sorter) compare(a, b Record, key SortKey) int {
	av, aok := a.Field(key.Field)
	bv, bok := b.Field(key.Field)

	aNull := isNullish(av) || !aok
	bNull := isNullish(bv) || !bok

	// Nulls sort last regardless of direction.
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return 1
	case bNull:
		return -1
	}

	cmp := s.compareValues(av, bv, s.types[key.Field])
	if key.Direction == SortDesc {
		cmp = -cmp
	}

	return cmp
}

func (s *Sorter) compareValues(a, b interface{}, colType ColumnType) int {
	switch colType {
	case ColumnTypeNumber:
		af, aerr := toFloat(a)
		bf, berr := toFloat(b)
		if aerr == nil && berr == nil {
			return compareFloat(af, bf)
		}
	case ColumnTypeDate:
		at, aok := toTime(a)
		bt, bok := toTime(b)
		if aok && bok {
			return at.Compare(bt)
		}
	case ColumnTypeBoolean:
		ab, aok := a.(bool)
		bb, bok := b.(bool)
		if aok && bok {
			return compareBool(ab, bb)
		}
	}

	// Text columns and any value that resisted coercion fall back to
	// locale-aware case-insensitive comparison.
	return s.collator.CompareString(toString(a), toString(b))
}

// isNullish reports values that always sort last: nil and NaN.
func isNullish(v interface{}) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}

	return false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}

	return time.Time{}, false
}
