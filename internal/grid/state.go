package grid

import (
	"sync"
)

// DefaultPageSize applies when a manager is created without an explicit
// page size.
const DefaultPageSize = 25

// View is the derived, render-ready slice of the working set.
type View struct {
	Records      []Record
	Page         int
	PageSize     int
	TotalRecords int // size of the filtered set
	TotalPages   int
}

// Manager holds the canonical working set of records and derives
// sorted/filtered/paged views. It owns selection and search state.
//
// Mutations notify subscribers synchronously, in registration order,
// after the state change is applied. The manager is safe for concurrent
// use; derivation happens under the lock so a view is always consistent
// with a single state snapshot.
type Manager struct {
	mu sync.Mutex

	columns    []ColumnDefinition
	searchable []string

	// ordered is the working set in its current sort order. A new sort is
	// applied stably on top of the previous order, so records comparing
	// equal under the new spec keep their prior relative order; the first
	// sort after a reset ties break by insertion order.
	ordered []Record
	index   map[string]int // id -> position in ordered

	sortSpec SortSpec
	filters  FilterSpec
	search   string
	page     int
	pageSize int

	selection map[string]struct{}

	sorter      *Sorter
	subscribers []func()
}

// NewManager creates a state manager for the given column configuration.
func NewManager(columns []ColumnDefinition) *Manager {
	var searchable []string
	for _, col := range columns {
		if col.Searchable {
			searchable = append(searchable, col.Key)
		}
	}

	return &Manager{
		columns:    columns,
		searchable: searchable,
		index:      make(map[string]int),
		page:       1,
		pageSize:   DefaultPageSize,
		selection:  make(map[string]struct{}),
		sorter:     NewSorter(columns),
	}
}

// Columns returns the column configuration the manager was built with.
func (m *Manager) Columns() []ColumnDefinition {
	return m.columns
}

// Subscribe registers a callback invoked synchronously after every
// mutation. The returned function unsubscribes.
func (m *Manager) Subscribe(fn func()) func() {
	m.mu.Lock()
	m.subscribers = append(m.subscribers, fn)
	idx := len(m.subscribers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if idx < len(m.subscribers) {
			m.subscribers[idx] = nil
		}
	}
}

// notify must be called without the lock held.
func (m *Manager) notify() {
	m.mu.Lock()
	subs := make([]func(), len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, fn := range subs {
		if fn != nil {
			fn()
		}
	}
}

// SetRecords replaces the working set. This is an explicit dataset reset:
// selection is cleared and the current sort is re-applied from insertion
// order.
func (m *Manager) SetRecords(records []Record) {
	m.mu.Lock()
	m.ordered = make([]Record, len(records))
	copy(m.ordered, records)
	m.selection = make(map[string]struct{})
	m.sorter.Sort(m.ordered, m.sortSpec)
	m.rebuildIndex()
	m.mu.Unlock()

	m.notify()
}

// Upsert inserts a record or replaces the record with the same id in
// place, preserving the current order position on replace.
func (m *Manager) Upsert(record Record) {
	m.mu.Lock()
	if pos, ok := m.index[record.ID]; ok {
		m.ordered[pos] = record
	} else {
		m.ordered = append(m.ordered, record)
		m.index[record.ID] = len(m.ordered) - 1
		m.sorter.Sort(m.ordered, m.sortSpec)
		m.rebuildIndex()
	}
	m.mu.Unlock()

	m.notify()
}

// Remove deletes a record from the working set and drops its selection.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	pos, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return false
	}

	m.ordered = append(m.ordered[:pos], m.ordered[pos+1:]...)
	delete(m.selection, id)
	m.rebuildIndex()
	m.mu.Unlock()

	m.notify()

	return true
}

// SetSort replaces the sort spec and re-sorts the working set stably over
// its previous order.
func (m *Manager) SetSort(spec SortSpec) {
	m.mu.Lock()
	m.sortSpec = spec
	m.sorter.Sort(m.ordered, spec)
	m.rebuildIndex()
	m.mu.Unlock()

	m.notify()
}

// SetFilters replaces the filter spec. Selection is untouched: ids that
// fall out of the filtered set stay selected.
func (m *Manager) SetFilters(spec FilterSpec) {
	m.mu.Lock()
	m.filters = spec
	m.page = 1
	m.mu.Unlock()

	m.notify()
}

// SetSearch replaces the global search term.
func (m *Manager) SetSearch(term string) {
	m.mu.Lock()
	m.search = term
	m.page = 1
	m.mu.Unlock()

	m.notify()
}

// SetPage moves to page n with the given page size. Out-of-range pages
// clamp at view time rather than failing.
func (m *Manager) SetPage(n, size int) {
	m.mu.Lock()
	if n < 1 {
		n = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	m.page = n
	m.pageSize = size
	m.mu.Unlock()

	m.notify()
}

// View returns the current page of the filtered and sorted working set.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := m.filteredLocked()

	total := len(filtered)
	totalPages := (total + m.pageSize - 1) / m.pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	page := m.page
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * m.pageSize
	end := start + m.pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	records := make([]Record, end-start)
	copy(records, filtered[start:end])

	return View{
		Records:      records,
		Page:         page,
		PageSize:     m.pageSize,
		TotalRecords: total,
		TotalPages:   totalPages,
	}
}

// FilteredAll returns the whole filtered and sorted set, ignoring paging.
// Export and the windowing layer consume this.
func (m *Manager) FilteredAll() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := m.filteredLocked()
	out := make([]Record, len(filtered))
	copy(out, filtered)

	return out
}

func (m *Manager) filteredLocked() []Record {
	filtered := make([]Record, 0, len(m.ordered))
	for _, record := range m.ordered {
		if !m.filters.Matches(record) {
			continue
		}
		if !MatchesSearch(record, m.search, m.searchable) {
			continue
		}
		filtered = append(filtered, record)
	}

	return filtered
}

// Record returns the record with the given id from the working set.
func (m *Manager) Record(id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.index[id]
	if !ok {
		return Record{}, false
	}

	return m.ordered[pos], true
}

// Has reports whether the record is in the working set.
func (m *Manager) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.index[id]

	return ok
}

// Value returns a single cell value.
func (m *Manager) Value(id, field string) (interface{}, bool) {
	record, ok := m.Record(id)
	if !ok {
		return nil, false
	}

	return record.Field(field)
}

// SetValue replaces one cell value, producing a fresh record (records are
// never mutated in place). Used for optimistic updates and their
// rollback. Returns false when the record left the working set.
func (m *Manager) SetValue(id, field string, value interface{}) bool {
	m.mu.Lock()
	pos, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return false
	}

	m.ordered[pos] = m.ordered[pos].WithField(field, value)
	m.mu.Unlock()

	m.notify()

	return true
}

// Len returns the working set size before filtering.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.ordered)
}

// rebuildIndex must be called with the lock held.
func (m *Manager) rebuildIndex() {
	m.index = make(map[string]int, len(m.ordered))
	for i, record := range m.ordered {
		m.index[record.ID] = i
	}
}
