package grid

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testColumns() []ColumnDefinition {
	return []ColumnDefinition{
		{Key: "name", Label: "Name", Type: ColumnTypeText, Sortable: true, Searchable: true},
		{Key: "price", Label: "Price", Type: ColumnTypeNumber, Sortable: true},
		{Key: "status", Label: "Status", Type: ColumnTypeText, Filterable: true},
		{Key: "listed", Label: "Listed", Type: ColumnTypeDate, Sortable: true},
	}
}

func rec(id string, fields map[string]interface{}) Record {
	return NewRecord(id, fields)
}

func TestSorter_NumericOrdinal(t *testing.T) {
	sorter := NewSorter(testColumns())
	records := []Record{
		rec("a", map[string]interface{}{"price": 5.0}),
		rec("b", map[string]interface{}{"price": 3.0}),
		rec("c", map[string]interface{}{"price": 1.0}),
		rec("d", map[string]interface{}{"price": 4.0}),
		rec("e", map[string]interface{}{"price": 2.0}),
	}

	sorter.Sort(records, SortSpec{{Field: "price", Direction: SortAsc}})

	got := make([]float64, len(records))
	for i, r := range records {
		v, _ := r.Field("price")
		got[i] = v.(float64)
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, got)
}

func TestSorter_TextLocaleAwareCaseInsensitive(t *testing.T) {
	sorter := NewSorter(testColumns())
	records := []Record{
		rec("1", map[string]interface{}{"name": "banana"}),
		rec("2", map[string]interface{}{"name": "Apple"}),
		rec("3", map[string]interface{}{"name": "cherry"}),
	}

	sorter.Sort(records, SortSpec{{Field: "name", Direction: SortAsc}})

	assert.Equal(t, "2", records[0].ID, "Apple sorts before banana despite case")
	assert.Equal(t, "1", records[1].ID)
	assert.Equal(t, "3", records[2].ID)
}

func TestSorter_NullsLastRegardlessOfDirection(t *testing.T) {
	for _, direction := range []SortDirection{SortAsc, SortDesc} {
		t.Run(string(direction), func(t *testing.T) {
			sorter := NewSorter(testColumns())
			records := []Record{
				rec("nil", map[string]interface{}{"price": nil}),
				rec("nan", map[string]interface{}{"price": math.NaN()}),
				rec("hi", map[string]interface{}{"price": 9.0}),
				rec("absent", map[string]interface{}{}),
				rec("lo", map[string]interface{}{"price": 1.0}),
			}

			sorter.Sort(records, SortSpec{{Field: "price", Direction: direction}})

			// The three null-ish records occupy the last three positions.
			tail := map[string]bool{}
			for _, r := range records[2:] {
				tail[r.ID] = true
			}
			assert.True(t, tail["nil"] && tail["nan"] && tail["absent"],
				"null/NaN/absent must sort last, got tail %v", tail)
		})
	}
}

func TestSorter_MultiKeyTieBreak(t *testing.T) {
	sorter := NewSorter(testColumns())
	records := []Record{
		rec("1", map[string]interface{}{"status": "Active", "price": 2.0}),
		rec("2", map[string]interface{}{"status": "Active", "price": 1.0}),
		rec("3", map[string]interface{}{"status": "Paused", "price": 0.5}),
	}

	sorter.Sort(records, SortSpec{
		{Field: "status", Direction: SortAsc},
		{Field: "price", Direction: SortAsc},
	})

	assert.Equal(t, []string{"2", "1", "3"},
		[]string{records[0].ID, records[1].ID, records[2].ID})
}

func TestSorter_Stability(t *testing.T) {
	sorter := NewSorter(testColumns())

	// Many records with an equal sort key keep their relative order.
	records := make([]Record, 0, 10)
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		records = append(records, rec(id, map[string]interface{}{"status": "Active"}))
	}

	sorter.Sort(records, SortSpec{{Field: "status", Direction: SortAsc}})

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, ids)
}

func TestSorter_Dates(t *testing.T) {
	sorter := NewSorter(testColumns())
	records := []Record{
		rec("new", map[string]interface{}{"listed": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}),
		rec("old", map[string]interface{}{"listed": "2024-07-04"}),
	}

	sorter.Sort(records, SortSpec{{Field: "listed", Direction: SortAsc}})
	require.Equal(t, "old", records[0].ID, "RFC3339/date strings compare as dates")

	sorter.Sort(records, SortSpec{{Field: "listed", Direction: SortDesc}})
	assert.Equal(t, "new", records[0].ID)
}

func TestSorter_EmptySpecLeavesOrder(t *testing.T) {
	sorter := NewSorter(testColumns())
	records := []Record{
		rec("z", map[string]interface{}{"name": "zed"}),
		rec("a", map[string]interface{}{"name": "ann"}),
	}

	sorter.Sort(records, nil)
	assert.Equal(t, "z", records[0].ID)
}
