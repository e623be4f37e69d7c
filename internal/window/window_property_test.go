//go:build property

package window

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestWindowRangeProperties validates the clamping and coverage contract of
// the windowing calculator across randomized inputs.
func TestWindowRangeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("range is clamped for any offset and viewport", prop.ForAll(
		func(count int, rowHeight int, offset int, viewport int, overscan int) bool {
			c := NewFixed(count, float64(rowHeight))
			r := c.Visible(float64(offset), float64(viewport), overscan)

			if count == 0 {
				return r.Empty()
			}

			return r.StartIndex >= 0 && r.StartIndex <= r.EndIndex && r.EndIndex < count
		},
		gen.IntRange(0, 5000),
		gen.IntRange(1, 80),
		gen.IntRange(-1000, 200000),
		gen.IntRange(0, 2000),
		gen.IntRange(0, 20),
	))

	properties.Property("total size equals count times fixed height", prop.ForAll(
		func(count int, rowHeight int) bool {
			c := NewFixed(count, float64(rowHeight))
			r := c.Visible(0, 100, 0)

			return r.TotalSize == float64(count)*float64(rowHeight)
		},
		gen.IntRange(0, 5000),
		gen.IntRange(1, 80),
	))

	properties.Property("viewport rows are always covered by the range", prop.ForAll(
		func(count int, offset int, viewport int) bool {
			if count == 0 {
				return true
			}

			rowHeight := 20.0
			c := NewFixed(count, rowHeight)
			r := c.Visible(float64(offset), float64(viewport), 0)

			total := float64(count) * rowHeight
			clamped := float64(offset)
			if clamped < 0 {
				clamped = 0
			}
			if clamped > total {
				clamped = total
			}

			// Every row whose bounds intersect the clamped viewport falls
			// inside the returned range.
			for i := 0; i < count; i++ {
				top := float64(i) * rowHeight
				bottom := top + rowHeight
				if bottom > clamped && top < clamped+float64(viewport) {
					if i < r.StartIndex || i > r.EndIndex {
						return false
					}
				}
			}

			return true
		},
		gen.IntRange(1, 300),
		gen.IntRange(-100, 10000),
		gen.IntRange(1, 500),
	))

	properties.Property("variable heights keep prefix consistent under measurement", prop.ForAll(
		func(count int, measurements []int) bool {
			if count < 1 {
				return true
			}

			c := NewVariable(count, func(i int) float64 { return float64(10 + i%5) })

			offset := 0.0
			for k, m := range measurements {
				index := k % count
				height := float64(1 + (m%90+90)%90)
				offset = c.Measure(index, height, offset)

				if offset < 0 || offset > c.TotalSize() {
					return false
				}
			}

			r := c.Visible(offset, 200, 3)

			return r.StartIndex >= 0 && r.StartIndex <= r.EndIndex && r.EndIndex < count
		},
		gen.IntRange(1, 200),
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}
