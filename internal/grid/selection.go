package grid

// Selection operations. Selected ids persist across sort, filter and
// search changes; they are cleared only by an explicit dataset reset
// (SetRecords) or record removal. "Select all on page" only ever touches
// the ids on the currently visible page.

// Select adds a record id to the selection set.
func (m *Manager) Select(id string) {
	m.mu.Lock()
	m.selection[id] = struct{}{}
	m.mu.Unlock()

	m.notify()
}

// Deselect removes a record id from the selection set.
func (m *Manager) Deselect(id string) {
	m.mu.Lock()
	delete(m.selection, id)
	m.mu.Unlock()

	m.notify()
}

// ToggleSelect flips the selection state of a record id.
func (m *Manager) ToggleSelect(id string) {
	m.mu.Lock()
	if _, ok := m.selection[id]; ok {
		delete(m.selection, id)
	} else {
		m.selection[id] = struct{}{}
	}
	m.mu.Unlock()

	m.notify()
}

// IsSelected reports whether the id is currently selected.
func (m *Manager) IsSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.selection[id]

	return ok
}

// Selection returns the selected ids in working-set order, including ids
// whose records are currently filtered out of the view.
func (m *Manager) Selection() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.selection))
	for _, record := range m.ordered {
		if _, ok := m.selection[record.ID]; ok {
			ids = append(ids, record.ID)
		}
	}

	return ids
}

// SelectPage selects every record on the currently visible page.
func (m *Manager) SelectPage() {
	view := m.View()

	m.mu.Lock()
	for _, record := range view.Records {
		m.selection[record.ID] = struct{}{}
	}
	m.mu.Unlock()

	m.notify()
}

// DeselectPage removes every record on the currently visible page from
// the selection.
func (m *Manager) DeselectPage() {
	view := m.View()

	m.mu.Lock()
	for _, record := range view.Records {
		delete(m.selection, record.ID)
	}
	m.mu.Unlock()

	m.notify()
}

// ClearSelection empties the selection set.
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	m.selection = make(map[string]struct{})
	m.mu.Unlock()

	m.notify()
}
