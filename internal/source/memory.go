package source

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tablekit/tablekit/internal/errors"
)

// MemorySource serves rows from process memory. It backs demos and tests;
// failure injection lets adapter tests script transient and conflict
// outcomes.
type MemorySource struct {
	name string

	mu    sync.Mutex
	rows  []map[string]interface{}
	caps  Capabilities
	calls int

	// FailNext, when non-nil, is returned for the next Fetch and cleared.
	FailNext error
	// FailAlways, when non-nil, is returned for every Fetch.
	FailAlways error
	// Latency hook invoked before each fetch resolves, e.g. to block.
	BeforeFetch func(req Request)
}

// NewMemorySource creates a memory source seeded with rows. Rows must
// carry an "id" field.
func NewMemorySource(name string, rows []map[string]interface{}) *MemorySource {
	copied := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		copied[i] = copyRow(row)
	}

	return &MemorySource{
		name: name,
		rows: copied,
		caps: Capabilities{Create: true, Update: true, Delete: true, Search: true},
	}
}

// SetCapabilities overrides the default read-write capability set.
func (m *MemorySource) SetCapabilities(caps Capabilities) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps = caps
}

// Name identifies the source.
func (m *MemorySource) Name() string { return m.name }

// Capabilities reports the configured capability set.
func (m *MemorySource) Capabilities() Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps
}

// Calls returns how many fetches the source has served. Tests use it to
// assert deduplication.
func (m *MemorySource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Fetch serves the request from memory.
func (m *MemorySource) Fetch(ctx context.Context, req Request) (*Response, error) {
	if m.BeforeFetch != nil {
		m.BeforeFetch(req)
	}

	m.mu.Lock()
	m.calls++

	if m.FailAlways != nil {
		err := m.FailAlways
		m.mu.Unlock()
		return nil, err
	}
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		m.mu.Unlock()
		return nil, err
	}

	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.NewTransientError(errors.ErrCodeTimeout, "fetch aborted", err)
	}

	switch req.Op {
	case OpList, OpSearch:
		rows, total := applyQuery(m.rows, req.Query, fieldKeys(m.rows))
		out := make([]map[string]interface{}, len(rows))
		for i, row := range rows {
			out[i] = copyRow(row)
		}
		return &Response{Rows: out, Total: total}, nil

	case OpGet:
		for _, row := range m.rows {
			if toID(row) == req.ID {
				return &Response{Rows: []map[string]interface{}{copyRow(row)}, Total: 1}, nil
			}
		}
		return nil, errors.ErrRecordNotFound(req.Entity, req.ID)

	case OpCreate:
		row := copyRow(req.Record)
		if toID(row) == "" {
			row["id"] = uuid.NewString()
		}
		m.rows = append(m.rows, row)
		return &Response{Rows: []map[string]interface{}{copyRow(row)}, Total: 1}, nil

	case OpUpdate:
		for i, row := range m.rows {
			if toID(row) == req.ID {
				updated := copyRow(row)
				for k, v := range req.Record {
					updated[k] = v
				}
				m.rows[i] = updated
				return &Response{Rows: []map[string]interface{}{copyRow(updated)}, Total: 1}, nil
			}
		}
		return nil, errors.ErrRecordNotFound(req.Entity, req.ID)

	case OpDelete:
		for i, row := range m.rows {
			if toID(row) == req.ID {
				m.rows = append(m.rows[:i], m.rows[i+1:]...)
				return &Response{}, nil
			}
		}
		return nil, errors.ErrRecordNotFound(req.Entity, req.ID)

	default:
		return nil, errors.ErrUnsupportedOperation(req.Entity, string(req.Op))
	}
}

func copyRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func toID(row map[string]interface{}) string {
	if v, ok := row["id"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
