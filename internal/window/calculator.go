// Package window implements the virtualized-rendering calculator: it maps
// a scroll offset, a row height model and a viewport size to the range of
// row indices that must be materialized, plus the absolute offsets that
// keep scrollbar proportions correct while only a window is rendered.
package window

import (
	"sort"
	"sync"
)

// Range is the currently materialized window of rows. It is derived state,
// recomputed on every scroll or resize event and never persisted. An empty
// range (EndIndex < StartIndex) occurs only for an empty dataset.
type Range struct {
	StartIndex  int
	EndIndex    int
	StartOffset float64 // absolute offset of the row at StartIndex
	TotalSize   float64 // sum of all row heights, for scrollbar proportions
}

// Empty reports whether the range materializes no rows.
func (r Range) Empty() bool {
	return r.EndIndex < r.StartIndex
}

// Estimator provides a provisional height for an unmeasured row.
type Estimator func(index int) float64

// Calculator computes visible row ranges. With a fixed row height lookups
// are O(1); with variable heights it maintains a running size-prefix table
// over estimates reconciled with recorded measurements.
type Calculator struct {
	mu sync.Mutex

	count       int
	fixedHeight float64   // > 0 when every row has the same height
	estimator   Estimator // variable-height model

	measured map[int]float64
	prefix   []float64 // prefix[i] = offset of row i; len count+1
	dirty    bool
}

// NewFixed creates a calculator over count rows of identical height.
func NewFixed(count int, rowHeight float64) *Calculator {
	if count < 0 {
		count = 0
	}
	if rowHeight <= 0 {
		rowHeight = 1
	}

	return &Calculator{count: count, fixedHeight: rowHeight}
}

// NewVariable creates a calculator whose row heights come from estimator
// until a measurement is recorded for the row.
func NewVariable(count int, estimator Estimator) *Calculator {
	if count < 0 {
		count = 0
	}

	return &Calculator{
		count:     count,
		estimator: estimator,
		measured:  make(map[int]float64),
		dirty:     true,
	}
}

// SetCount updates the row count, dropping measurements beyond the new
// bound.
func (c *Calculator) SetCount(count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if count < 0 {
		count = 0
	}
	c.count = count

	if c.measured != nil {
		for index := range c.measured {
			if index >= count {
				delete(c.measured, index)
			}
		}
	}
	c.dirty = true
}

// Count returns the current row count.
func (c *Calculator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.count
}

// TotalSize returns the sum of all row heights.
func (c *Calculator) TotalSize() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.totalLocked()
}

// Visible computes the range of rows intersecting the viewport, extended
// by overscan rows on each side. Out-of-range offsets clamp; no query
// fails.
func (c *Calculator) Visible(scrollOffset, viewportSize float64, overscan int) Range {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.totalLocked()

	if c.count == 0 {
		return Range{StartIndex: 0, EndIndex: -1, TotalSize: total}
	}

	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if scrollOffset > total {
		scrollOffset = total
	}
	if viewportSize < 0 {
		viewportSize = 0
	}

	start := c.indexAtLocked(scrollOffset)
	end := c.indexAtLocked(scrollOffset + viewportSize)

	start -= overscan
	end += overscan

	if start < 0 {
		start = 0
	}
	if end >= c.count {
		end = c.count - 1
	}

	return Range{
		StartIndex:  start,
		EndIndex:    end,
		StartOffset: c.offsetOfLocked(start),
		TotalSize:   total,
	}
}

// Measure records the actual height of a row, replacing its estimate, and
// reconciles the scroll position: the row nearest the top edge stays
// pinned across the re-measurement. The corrected scroll offset is
// returned; callers apply it before the next Visible query. Fixed-height
// calculators and out-of-range indices ignore the measurement.
func (c *Calculator) Measure(index int, height float64, scrollOffset float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.estimator == nil && c.measured == nil {
		return scrollOffset
	}
	if index < 0 || index >= c.count || height <= 0 {
		return scrollOffset
	}

	if existing, ok := c.measured[index]; ok && existing == height {
		return scrollOffset
	}

	// Anchor on the row at the top edge before the height change.
	anchor := c.indexAtLocked(scrollOffset)
	intoAnchor := scrollOffset - c.offsetOfLocked(anchor)

	c.measured[index] = height
	c.dirty = true

	// Re-anchoring: rows below the anchor cannot move it; a row above it
	// shifts the anchor's offset by the height delta, which the recomputed
	// prefix reflects. If the anchor row itself shrank, clamp the offset
	// into it.
	if into := c.heightOfLocked(anchor); intoAnchor > into {
		intoAnchor = into
	}

	return c.offsetOfLocked(anchor) + intoAnchor
}

// HeightOf returns the effective height of a row: its recorded
// measurement when present, otherwise the estimate. Out-of-range queries
// return zero.
func (c *Calculator) HeightOf(index int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= c.count {
		return 0
	}

	return c.heightOfLocked(index)
}

// OffsetOf returns the absolute offset of a row's top edge, clamped for
// out-of-range indices.
func (c *Calculator) OffsetOf(index int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.offsetOfLocked(index)
}

// internal, lock held

func (c *Calculator) heightOfLocked(index int) float64 {
	if c.fixedHeight > 0 {
		return c.fixedHeight
	}
	if h, ok := c.measured[index]; ok {
		return h
	}
	if c.estimator != nil {
		if h := c.estimator(index); h > 0 {
			return h
		}
	}

	return 1
}

func (c *Calculator) rebuildLocked() {
	if c.fixedHeight > 0 || !c.dirty {
		return
	}

	c.prefix = make([]float64, c.count+1)
	for i := 0; i < c.count; i++ {
		c.prefix[i+1] = c.prefix[i] + c.heightOfLocked(i)
	}
	c.dirty = false
}

func (c *Calculator) totalLocked() float64 {
	if c.fixedHeight > 0 {
		return float64(c.count) * c.fixedHeight
	}

	c.rebuildLocked()
	if len(c.prefix) == 0 {
		return 0
	}

	return c.prefix[len(c.prefix)-1]
}

// indexAtLocked returns the index of the row whose bounds contain the
// offset, clamped to [0, count-1].
func (c *Calculator) indexAtLocked(offset float64) int {
	if c.count == 0 {
		return 0
	}

	if c.fixedHeight > 0 {
		index := int(offset / c.fixedHeight)
		if index < 0 {
			index = 0
		}
		if index >= c.count {
			index = c.count - 1
		}
		return index
	}

	c.rebuildLocked()

	// First row whose end exceeds the offset.
	index := sort.Search(c.count, func(i int) bool {
		return c.prefix[i+1] > offset
	})
	if index >= c.count {
		index = c.count - 1
	}

	return index
}

func (c *Calculator) offsetOfLocked(index int) float64 {
	if index < 0 {
		return 0
	}
	if index > c.count {
		index = c.count
	}

	if c.fixedHeight > 0 {
		return float64(index) * c.fixedHeight
	}

	c.rebuildLocked()

	return c.prefix[index]
}
