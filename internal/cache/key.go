package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key derives a deterministic cache key from an operation name and its
// normalized parameters. Parameter order never affects the key: map keys
// are emitted sorted, and nested slices keep their order (order is
// semantic for sort specs).
func Key(operation string, params map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(operation)

	if len(params) == 0 {
		return b.String()
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		writeValue(&b, params[k])
	}

	return b.String()
}

// EntityKey prefixes a key with its entity type so that per-entity
// invalidation can use Store.InvalidatePrefix.
func EntityKey(entity, operation string, params map[string]interface{}) string {
	return entity + ":" + Key(operation, params)
}

func writeValue(b *strings.Builder, v interface{}) {
	switch val := v.(type) {
	case nil:
		b.WriteString("<nil>")
	case string:
		b.WriteString(val)
	case []string:
		b.WriteByte('[')
		b.WriteString(strings.Join(val, ","))
		b.WriteByte(']')
	case []interface{}:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, item)
		}
		b.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteByte(':')
			writeValue(b, val[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%v", val)
	}
}
