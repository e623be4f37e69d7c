package grid

import (
	"sync"
)

// ColumnManager owns column display order, widths and the frozen sets.
// It is independent of row data. Display order is always normalized to
// [frozen-left columns][unfrozen columns][frozen-right columns]; moves
// that would break that contiguity are rejected as no-ops.
type ColumnManager struct {
	mu      sync.Mutex
	columns []ColumnDefinition // display order
}

// NewColumnManager creates a manager, normalizing the initial order so
// frozen groups occupy the extremities while keeping each group's
// relative order.
func NewColumnManager(columns []ColumnDefinition) *ColumnManager {
	normalized := make([]ColumnDefinition, 0, len(columns))
	for _, c := range columns {
		if c.Frozen == FrozenLeft {
			normalized = append(normalized, clampedCopy(c))
		}
	}
	for _, c := range columns {
		if c.Frozen == FrozenNone {
			normalized = append(normalized, clampedCopy(c))
		}
	}
	for _, c := range columns {
		if c.Frozen == FrozenRight {
			normalized = append(normalized, clampedCopy(c))
		}
	}

	return &ColumnManager{columns: normalized}
}

func clampedCopy(c ColumnDefinition) ColumnDefinition {
	c.Width = c.ClampWidth(c.Width)
	return c
}

// Columns returns the columns in display order.
func (cm *ColumnManager) Columns() []ColumnDefinition {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	out := make([]ColumnDefinition, len(cm.columns))
	copy(out, cm.columns)

	return out
}

// Column returns a column by key.
func (cm *ColumnManager) Column(key string) (ColumnDefinition, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for _, c := range cm.columns {
		if c.Key == key {
			return c, true
		}
	}

	return ColumnDefinition{}, false
}

// Resize sets a column's width, clamped to [MinWidth, MaxWidth].
// Neighbouring columns are never resized implicitly. Returns the applied
// width, or -1 when the column does not exist.
func (cm *ColumnManager) Resize(key string, width float64) float64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for i, c := range cm.columns {
		if c.Key == key {
			cm.columns[i].Width = c.ClampWidth(width)
			return cm.columns[i].Width
		}
	}

	return -1
}

// Move repositions the column with the given key to the target display
// index. The move is rejected (no-op, returns false) when it would break
// frozen-group contiguity: frozen-left columns stay in the leading
// positions, frozen-right in the trailing ones, and unfrozen columns stay
// between the groups.
func (cm *ColumnManager) Move(key string, toIndex int) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	from := -1
	for i, c := range cm.columns {
		if c.Key == key {
			from = i
			break
		}
	}
	if from == -1 || toIndex < 0 || toIndex >= len(cm.columns) || from == toIndex {
		return false
	}

	proposed := make([]ColumnDefinition, len(cm.columns))
	copy(proposed, cm.columns)

	moved := proposed[from]
	proposed = append(proposed[:from], proposed[from+1:]...)
	proposed = append(proposed[:toIndex], append([]ColumnDefinition{moved}, proposed[toIndex:]...)...)

	if !frozenContiguous(proposed) {
		return false
	}

	cm.columns = proposed

	return true
}

// frozenContiguous verifies [left*][none*][right*] ordering.
func frozenContiguous(columns []ColumnDefinition) bool {
	// 0 = in left group, 1 = in middle, 2 = in right group
	phase := 0
	for _, c := range columns {
		switch c.Frozen {
		case FrozenLeft:
			if phase > 0 {
				return false
			}
		case FrozenNone:
			if phase == 2 {
				return false
			}
			phase = 1
		case FrozenRight:
			phase = 2
		}
	}

	return true
}

// FrozenLeftOffset returns the rendering-time left offset of a
// frozen-left column: the cumulative width of frozen-left columns before
// it in display order. Returns -1 for columns that are not frozen left.
func (cm *ColumnManager) FrozenLeftOffset(key string) float64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	offset := 0.0
	for _, c := range cm.columns {
		if c.Frozen != FrozenLeft {
			continue
		}
		if c.Key == key {
			return offset
		}
		offset += c.Width
	}

	return -1
}

// FrozenRightOffset returns the offset of a frozen-right column measured
// from the right edge: the cumulative width of frozen-right columns after
// it in display order. Returns -1 for columns that are not frozen right.
func (cm *ColumnManager) FrozenRightOffset(key string) float64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	offset := 0.0
	for i := len(cm.columns) - 1; i >= 0; i-- {
		c := cm.columns[i]
		if c.Frozen != FrozenRight {
			continue
		}
		if c.Key == key {
			return offset
		}
		offset += c.Width
	}

	return -1
}

// TotalWidth returns the sum of all column widths.
func (cm *ColumnManager) TotalWidth() float64 {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	total := 0.0
	for _, c := range cm.columns {
		total += c.Width
	}

	return total
}
