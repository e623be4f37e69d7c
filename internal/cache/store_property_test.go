//go:build property

package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestStoreProperties validates the round-trip, bounding, and key
// determinism contracts across randomized workloads.
func TestStoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4680)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("a live entry reads back its last written value", prop.ForAll(
		func(writes []int) bool {
			s := NewStore(len(writes) + 1)

			var lastKey string
			var lastValue int
			for i, v := range writes {
				lastKey = fmt.Sprintf("k%d", i%8)
				lastValue = v
				s.Set(lastKey, v, time.Minute)
			}

			if len(writes) == 0 {
				return true
			}

			got, ok := s.Get(lastKey)
			return ok && got.(int) == lastValue
		},
		gen.SliceOf(gen.IntRange(-1000, 1000)),
	))

	properties.Property("entry count never exceeds capacity", prop.ForAll(
		func(capacity int, writes []int) bool {
			s := NewStore(capacity)
			for i, v := range writes {
				s.Set(fmt.Sprintf("k%d", i), v, time.Minute)
			}

			return s.Len() <= capacity
		},
		gen.IntRange(1, 32),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.Property("key derivation ignores parameter map order", prop.ForAll(
		func(a int, b int, c int) bool {
			params := map[string]interface{}{"alpha": a, "beta": b, "gamma": c}
			same := map[string]interface{}{"gamma": c, "alpha": a, "beta": b}

			return Key("list", params) == Key("list", same)
		},
		gen.IntRange(0, 10000),
		gen.IntRange(0, 10000),
		gen.IntRange(0, 10000),
	))

	properties.Property("distinct parameters yield distinct keys", prop.ForAll(
		func(a int, b int) bool {
			if a == b {
				return true
			}

			ka := Key("get", map[string]interface{}{"id": a})
			kb := Key("get", map[string]interface{}{"id": b})

			return ka != kb
		},
		gen.IntRange(0, 100000),
		gen.IntRange(0, 100000),
	))

	properties.TestingRun(t)
}
