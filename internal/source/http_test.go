package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/grid"
)

func TestHTTPSource_List(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":  []map[string]interface{}{{"id": "1", "name": "Alice"}},
			"total": 42,
		})
	}))
	defer server.Close()

	src := NewHTTPSource("api", server.URL)
	resp, err := src.Fetch(context.Background(), Request{
		Op:     OpList,
		Entity: "people",
		Query: Query{
			Page: 2, Limit: 25, Search: "ali",
			Sort: grid.SortSpec{{Field: "name", Direction: grid.SortAsc}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "/people", gotPath)
	assert.Contains(t, gotQuery, "page=2")
	assert.Contains(t, gotQuery, "sort=name%3Aasc")
	assert.Equal(t, 42, resp.Total, "envelope total wins over row count")
	assert.Len(t, resp.Rows, 1)
}

func TestHTTPSource_BareArrayBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "1"}, {"id": "2"},
		})
	}))
	defer server.Close()

	src := NewHTTPSource("api", server.URL)
	resp, err := src.Fetch(context.Background(), Request{Op: OpList, Entity: "people"})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
}

func TestHTTPSource_StatusClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"429 is rate limited", http.StatusTooManyRequests, errors.IsRateLimited},
		{"503 is transient", http.StatusServiceUnavailable, errors.IsTransient},
		{"408 is transient", http.StatusRequestTimeout, errors.IsTransient},
		{"409 is conflict", http.StatusConflict, errors.IsConflict},
		{"404 is not found", http.StatusNotFound, errors.IsNotFound},
		{"422 is validation", http.StatusUnprocessableEntity, errors.IsValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			src := NewHTTPSource("api", server.URL)
			_, err := src.Fetch(context.Background(), Request{Op: OpGet, Entity: "people", ID: "1"})

			require.Error(t, err)
			assert.True(t, tc.check(err), "status %d misclassified: %v", tc.status, err)
		})
	}
}

func TestHTTPSource_ConnectionRefusedIsTransient(t *testing.T) {
	// A server that is already closed refuses connections.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	src := NewHTTPSource("api", server.URL)
	_, err := src.Fetch(context.Background(), Request{Op: OpList, Entity: "people"})

	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.True(t, errors.IsRetryable(err))
}

func TestHTTPSource_WriteOps(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "9", "name": "Eve"})
	}))
	defer server.Close()

	src := NewHTTPSource("api", server.URL, WithHeader("X-Api-Key", "secret"))

	t.Run("create posts the record", func(t *testing.T) {
		resp, err := src.Fetch(context.Background(), Request{Op: OpCreate, Entity: "people",
			Record: map[string]interface{}{"name": "Eve"}})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/people", gotPath)
		assert.Equal(t, "Eve", gotBody["name"])
		assert.Equal(t, "9", resp.Rows[0]["id"], "single-object body decodes as one row")
	})

	t.Run("update puts by id", func(t *testing.T) {
		_, err := src.Fetch(context.Background(), Request{Op: OpUpdate, Entity: "people", ID: "9",
			Record: map[string]interface{}{"name": "Eve II"}})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, gotMethod)
		assert.Equal(t, "/people/9", gotPath)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := src.Fetch(context.Background(), Request{Op: OpDelete, Entity: "people", ID: "9"})
		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, gotMethod)
	})
}
