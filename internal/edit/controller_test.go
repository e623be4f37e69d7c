package edit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/grid"
	"github.com/tablekit/tablekit/internal/logging"
)

func editColumns() []grid.ColumnDefinition {
	min := 0.0
	return []grid.ColumnDefinition{
		{Key: "name", Type: grid.ColumnTypeText, Editable: &grid.EditRules{Type: grid.EditTypeText, Required: true}},
		{Key: "price", Type: grid.ColumnTypeNumber, Editable: &grid.EditRules{Type: grid.EditTypeNumber, Min: &min}},
		{Key: "id", Type: grid.ColumnTypeText}, // not editable
	}
}

func newTable(t *testing.T) *grid.Manager {
	t.Helper()
	m := grid.NewManager(editColumns())
	m.SetRecords([]grid.Record{
		grid.NewRecord("r1", map[string]interface{}{"name": "Widget", "price": 10.0}),
		grid.NewRecord("r2", map[string]interface{}{"name": "Gadget", "price": 20.0}),
	})
	return m
}

// persistStub scripts persist outcomes per call.
type persistStub struct {
	mu    sync.Mutex
	errs  []error // popped per call; empty means success
	calls []interface{}
}

func (p *persistStub) fn(ctx context.Context, record grid.Record, column grid.ColumnDefinition, newValue interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, newValue)
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func TestController_SuccessfulEdit(t *testing.T) {
	table := newTable(t)
	stub := &persistStub{}
	c := NewController(table, stub.fn, logging.NewNopLogger())

	require.NoError(t, c.Begin("r1", "price"))
	assert.Equal(t, StateEditing, c.State("r1", "price"))

	require.NoError(t, c.Submit(context.Background(), "r1", "price", 15.0))

	assert.Equal(t, StateIdle, c.State("r1", "price"))
	v, _ := table.Value("r1", "price")
	assert.Equal(t, 15.0, v, "optimistic value confirmed")
	assert.Equal(t, []interface{}{15.0}, stub.calls)
}

func TestController_ValidationFailureStaysLocal(t *testing.T) {
	table := newTable(t)
	stub := &persistStub{}
	c := NewController(table, stub.fn, logging.NewNopLogger())

	require.NoError(t, c.Begin("r1", "price"))
	err := c.Submit(context.Background(), "r1", "price", -5.0)

	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
	assert.Equal(t, StateEditing, c.State("r1", "price"), "validation failure returns to Editing")
	assert.Empty(t, stub.calls, "no network call on validation failure")

	v, _ := table.Value("r1", "price")
	assert.Equal(t, 10.0, v, "table untouched")
}

func TestController_RollbackOnSaveFailure(t *testing.T) {
	table := newTable(t)
	stub := &persistStub{errs: []error{errors.NewConflictError(errors.ErrCodeConflict, "remote changed")}}
	c := NewController(table, stub.fn, logging.NewNopLogger())

	require.NoError(t, c.Begin("r1", "price"))
	err := c.Submit(context.Background(), "r1", "price", 99.0)

	require.Error(t, err)
	assert.Equal(t, StateError, c.State("r1", "price"))
	assert.True(t, errors.IsConflict(c.LastError("r1", "price")))

	v, _ := table.Value("r1", "price")
	assert.Equal(t, 10.0, v, "rolled back to pre-edit value")

	attempted, ok := c.AttemptedValue("r1", "price")
	require.True(t, ok)
	assert.Equal(t, 99.0, attempted, "attempted value retained for correction")
}

func TestController_ResumeRetainsTypedValue(t *testing.T) {
	table := newTable(t)
	stub := &persistStub{errs: []error{errors.NewTransientError(errors.ErrCodeNetwork, "down", nil)}}
	c := NewController(table, stub.fn, logging.NewNopLogger())

	require.NoError(t, c.Begin("r1", "price"))
	require.Error(t, c.Submit(context.Background(), "r1", "price", 42.0))
	require.Equal(t, StateError, c.State("r1", "price"))

	require.NoError(t, c.Resume("r1", "price"))
	assert.Equal(t, StateEditing, c.State("r1", "price"))

	attempted, _ := c.AttemptedValue("r1", "price")
	assert.Equal(t, 42.0, attempted, "re-edit starts from the last-typed value, not the rollback")

	// Second attempt succeeds.
	require.NoError(t, c.Submit(context.Background(), "r1", "price", 42.0))
	v, _ := table.Value("r1", "price")
	assert.Equal(t, 42.0, v)
}

func TestController_CancelDiscards(t *testing.T) {
	table := newTable(t)
	c := NewController(table, (&persistStub{}).fn, logging.NewNopLogger())

	require.NoError(t, c.Begin("r1", "name"))
	c.Cancel("r1", "name")

	assert.Equal(t, StateIdle, c.State("r1", "name"))
	v, _ := table.Value("r1", "name")
	assert.Equal(t, "Widget", v)
}

func TestController_NonEditableColumn(t *testing.T) {
	table := newTable(t)
	c := NewController(table, (&persistStub{}).fn, logging.NewNopLogger())

	err := c.Begin("r1", "id")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeUnsupported, err.(*errors.GridError).Type)

	assert.Error(t, c.Begin("r1", "ghost"))
	assert.Error(t, c.Begin("missing", "name"))
}

func TestController_SubmitWithoutBegin(t *testing.T) {
	table := newTable(t)
	c := NewController(table, (&persistStub{}).fn, logging.NewNopLogger())

	assert.Error(t, c.Submit(context.Background(), "r1", "price", 1.0))
}

func TestController_QueuedSecondEdit(t *testing.T) {
	table := newTable(t)

	release := make(chan struct{})
	started := make(chan struct{})
	var calls []interface{}
	var mu sync.Mutex

	persist := func(ctx context.Context, record grid.Record, column grid.ColumnDefinition, v interface{}) error {
		mu.Lock()
		calls = append(calls, v)
		first := len(calls) == 1
		mu.Unlock()
		if first {
			close(started)
			<-release
		}
		return nil
	}

	c := NewController(table, persist, logging.NewNopLogger())
	require.NoError(t, c.Begin("r1", "price"))

	done := make(chan error, 1)
	go func() {
		done <- c.Submit(context.Background(), "r1", "price", 11.0)
	}()

	<-started
	require.Equal(t, StateSaving, c.State("r1", "price"))

	// Second edit while the first save is in flight: queued, not dropped.
	require.NoError(t, c.Submit(context.Background(), "r1", "price", 12.0))

	close(release)
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []interface{}{11.0, 12.0}, calls, "queued edit applied after the first resolves")

	v, _ := table.Value("r1", "price")
	assert.Equal(t, 12.0, v)
	assert.Equal(t, StateIdle, c.State("r1", "price"))
}

func TestController_RollbackSkippedWhenRecordDeleted(t *testing.T) {
	table := newTable(t)

	persist := func(ctx context.Context, record grid.Record, column grid.ColumnDefinition, v interface{}) error {
		// The record disappears from the working set while the save is
		// in flight.
		table.Remove("r1")
		return errors.NewTransientError(errors.ErrCodeNetwork, "gone", nil)
	}

	c := NewController(table, persist, logging.NewNopLogger())
	require.NoError(t, c.Begin("r1", "price"))
	require.Error(t, c.Submit(context.Background(), "r1", "price", 50.0))

	assert.False(t, table.Has("r1"), "record stays deleted")
	assert.Equal(t, StateError, c.State("r1", "price"))
}
