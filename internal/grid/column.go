package grid

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tablekit/tablekit/internal/errors"
)

// ColumnType determines comparison and formatting semantics for a column.
type ColumnType string

const (
	ColumnTypeText    ColumnType = "text"
	ColumnTypeNumber  ColumnType = "number"
	ColumnTypeDate    ColumnType = "date"
	ColumnTypeBoolean ColumnType = "boolean"
)

// FrozenSide pins a column to an edge of the grid.
type FrozenSide string

const (
	FrozenNone  FrozenSide = ""
	FrozenLeft  FrozenSide = "left"
	FrozenRight FrozenSide = "right"
)

// RenderFunc is an opaque formatting callback supplied by the screen layer.
// The core never interprets its return value.
type RenderFunc func(value interface{}, record Record) interface{}

// ColumnDefinition is the configuration surface for a single column.
type ColumnDefinition struct {
	Key        string
	Label      string
	Type       ColumnType
	Sortable   bool
	Filterable bool
	Searchable bool
	Width      float64
	MinWidth   float64
	MaxWidth   float64
	Frozen     FrozenSide
	Editable   *EditRules
	Render     RenderFunc
}

// ClampWidth returns the width clamped to [MinWidth, MaxWidth].
func (c ColumnDefinition) ClampWidth(width float64) float64 {
	if c.MinWidth > 0 && width < c.MinWidth {
		return c.MinWidth
	}
	if c.MaxWidth > 0 && width > c.MaxWidth {
		return c.MaxWidth
	}

	return width
}

// EditType selects the editor and validation family for an editable column.
type EditType string

const (
	EditTypeText   EditType = "text"
	EditTypeNumber EditType = "number"
	EditTypeSelect EditType = "select"
)

// EditRules holds the validation rules applied before any save attempt.
type EditRules struct {
	Type      EditType
	Required  bool
	Min       *float64
	Max       *float64
	Pattern   string
	MaxLength int
	Options   []string
}

// Validate checks a candidate value against the rules. A nil error means
// the value may proceed to the save step. Failures are local validation
// errors and never touch the network.
func (r *EditRules) Validate(field string, value interface{}) error {
	if r == nil {
		return nil
	}

	str := fmt.Sprintf("%v", value)
	empty := value == nil || str == ""

	if r.Required && empty {
		return errors.NewFieldValidationError(field, value, "is required").ToGridError()
	}
	if empty {
		return nil
	}

	switch r.Type {
	case EditTypeNumber:
		num, err := toFloat(value)
		if err != nil {
			return errors.NewFieldValidationError(field, value, "must be a number").ToGridError()
		}
		if r.Min != nil && num < *r.Min {
			return errors.NewFieldValidationError(field, value,
				fmt.Sprintf("must be at least %s", strconv.FormatFloat(*r.Min, 'f', -1, 64))).ToGridError()
		}
		if r.Max != nil && num > *r.Max {
			return errors.NewFieldValidationError(field, value,
				fmt.Sprintf("must be at most %s", strconv.FormatFloat(*r.Max, 'f', -1, 64))).ToGridError()
		}
	case EditTypeSelect:
		if len(r.Options) > 0 && !contains(r.Options, str) {
			return errors.NewFieldValidationError(field, value, "is not an allowed option").ToGridError()
		}
	default:
		if r.MaxLength > 0 && len(str) > r.MaxLength {
			return errors.NewFieldValidationError(field, value,
				fmt.Sprintf("must be at most %d characters", r.MaxLength)).ToGridError()
		}
		if r.Pattern != "" {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return errors.NewInternalError(errors.ErrCodeInternal, "invalid validation pattern", err)
			}
			if !re.MatchString(str) {
				return errors.NewFieldValidationError(field, value, "does not match the required format").ToGridError()
			}
		}
	}

	return nil
}

func contains(items []string, s string) bool {
	for _, item := range items {
		if item == s {
			return true
		}
	}

	return false
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("not numeric: %T", v)
	}
}
