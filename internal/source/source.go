// Package source defines the fetch boundary between data adapters and
// remote or local data providers, plus the built-in providers: an HTTP
// JSON source, a CSV file source with change watching, a SQLite source,
// and an in-memory source used by tests and demos.
package source

import (
	"context"

	"github.com/tablekit/tablekit/internal/grid"
)

// Op names a source operation.
type Op string

const (
	OpList   Op = "list"
	OpGet    Op = "get"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpSearch Op = "search"
)

// Query carries list/search parameters to a source.
type Query struct {
	Page    int
	Limit   int
	Sort    grid.SortSpec
	Filters grid.FilterSpec
	Search  string
}

// Params flattens the query into the normalized parameter map used for
// cache key derivation.
func (q Query) Params() map[string]interface{} {
	params := map[string]interface{}{
		"page":  q.Page,
		"limit": q.Limit,
	}

	if q.Search != "" {
		params["search"] = q.Search
	}

	if len(q.Sort) > 0 {
		sorts := make([]string, len(q.Sort))
		for i, s := range q.Sort {
			sorts[i] = s.Field + ":" + string(s.Direction)
		}
		params["sort"] = sorts
	}

	if len(q.Filters) > 0 {
		filters := make(map[string]interface{}, len(q.Filters))
		for _, f := range q.Filters {
			filters[f.Field+":"+string(f.Operator)] = f.Value
		}
		params["filters"] = filters
	}

	return params
}

// Request is one operation against a source.
type Request struct {
	Op     Op
	Entity string
	ID     string
	Query  Query
	Record map[string]interface{} // payload for create/update
}

// Response is the raw, pre-transform result of a source fetch. Rows are
// field maps; the adapter validates and normalizes them into Records.
type Response struct {
	Rows  []map[string]interface{}
	Total int
	Meta  map[string]interface{}
}

// Capabilities declares which write operations a source supports.
// Unsupported operations fail immediately and are never retried.
type Capabilities struct {
	Create bool
	Update bool
	Delete bool
	Search bool
}

// Source is implemented per data provider.
type Source interface {
	Name() string
	Capabilities() Capabilities
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Watchable is implemented by sources whose backing data can change
// underneath them (the file source). The adapter subscribes to invalidate
// its cache.
type Watchable interface {
	OnChange(fn func())
}

// applyQuery filters, searches and pages rows locally. Local sources
// (file, memory) use it so their list responses honor the same query
// surface a remote API would.
func applyQuery(rows []map[string]interface{}, q Query, searchable []string) ([]map[string]interface{}, int) {
	filtered := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		record := grid.Record{ID: "", Fields: row}
		if !q.Filters.Matches(record) {
			continue
		}
		if !grid.MatchesSearch(record, q.Search, searchable) {
			continue
		}
		filtered = append(filtered, row)
	}

	total := len(filtered)

	if q.Limit <= 0 {
		return filtered, total
	}

	page := q.Page
	if page < 1 {
		page = 1
	}

	start := (page - 1) * q.Limit
	if start >= total {
		return []map[string]interface{}{}, total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}

// fieldKeys lists every field name seen across rows; local sources treat
// all fields as searchable.
func fieldKeys(rows []map[string]interface{}) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	return keys
}
