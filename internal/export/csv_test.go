package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/internal/grid"
)

func exportManager(t *testing.T) *grid.Manager {
	t.Helper()

	m := grid.NewManager([]grid.ColumnDefinition{
		{Key: "name", Label: "Name", Type: grid.ColumnTypeText, Searchable: true},
		{Key: "price", Label: "Price", Type: grid.ColumnTypeNumber},
		{Key: "active", Label: "Active", Type: grid.ColumnTypeBoolean},
	})
	m.SetRecords([]grid.Record{
		grid.NewRecord("1", map[string]interface{}{"name": "Widget", "price": 9.5, "active": true}),
		grid.NewRecord("2", map[string]interface{}{"name": "Gadget", "price": 24.0, "active": false}),
		grid.NewRecord("3", map[string]interface{}{"name": "Gizmo", "price": 5.0}),
	})
	return m
}

func TestCSV_HeaderAndRows(t *testing.T) {
	m := exportManager(t)
	m.SetSort(grid.SortSpec{{Field: "price", Direction: grid.SortAsc}})

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, m, Options{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Name,Price,Active", lines[0], "labels in the header")
	assert.Equal(t, "Gizmo,5,", lines[1], "sorted order; absent field is blank")
	assert.Equal(t, "Widget,9.5,true", lines[2])
	assert.Equal(t, "Gadget,24,false", lines[3])
}

func TestCSV_RespectsFilters(t *testing.T) {
	m := exportManager(t)
	m.SetSearch("g")
	m.SetFilters(grid.FilterSpec{{Field: "active", Operator: grid.OpEquals, Value: false}})

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, m, Options{}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, "header plus the one matching row")
	assert.Contains(t, lines[1], "Gadget")
}

func TestCSV_ColumnSubsetAndOrder(t *testing.T) {
	m := exportManager(t)

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, m, Options{Columns: []string{"price", "name"}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "Price,Name", lines[0], "caller's column order wins")
}

func TestCSV_SelectedOnly(t *testing.T) {
	m := exportManager(t)
	m.Select("2")

	var buf bytes.Buffer
	require.NoError(t, CSV(&buf, m, Options{SelectedOnly: true}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Gadget")
}

func TestCSV_UnknownColumnsError(t *testing.T) {
	m := exportManager(t)

	var buf bytes.Buffer
	err := CSV(&buf, m, Options{Columns: []string{"ghost"}})
	assert.Error(t, err, "no resolvable columns")
}
