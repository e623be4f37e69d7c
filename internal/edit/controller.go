// Package edit implements the per-cell inline edit lifecycle: an explicit
// state machine with validation, optimistic update against the table state
// manager, and rollback on persistence failure.
package edit

import (
	"context"
	"sync"

	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/grid"
	"github.com/tablekit/tablekit/internal/logging"
)

// State is the lifecycle position of a cell edit.
//
//	Idle -> Editing -> Validating -> Saving -> Idle        (success)
//	                   Validating -> Editing               (validation failure)
//	                   Saving -> Error -> Editing | Idle   (save failure)
//	                   Editing -> Idle                     (cancel)
type State int

const (
	StateIdle State = iota
	StateEditing
	StateValidating
	StateSaving
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateValidating:
		return "validating"
	case StateSaving:
		return "saving"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// PersistFunc saves an edited cell to the backing source. Rejection is
// interpreted as a save failure and triggers rollback; the remote protocol
// is the collaborator's concern.
type PersistFunc func(ctx context.Context, record grid.Record, column grid.ColumnDefinition, newValue interface{}) error

type cellKey struct {
	recordID  string
	columnKey string
}

// session tracks one cell's edit lifecycle.
type session struct {
	state     State
	preEdit   interface{} // rollback target captured on entering Editing
	attempted interface{} // the user's last-typed value, kept for correction
	queued    *queuedEdit // second edit submitted while Saving
	err       error
}

type queuedEdit struct {
	value interface{}
}

// Controller serializes cell edits against a table state manager and a
// persistence callback.
type Controller struct {
	mu      sync.Mutex
	table   *grid.Manager
	persist PersistFunc
	logger  logging.Logger
	cells   map[cellKey]*session
}

// NewController creates an edit controller.
func NewController(table *grid.Manager, persist PersistFunc, logger logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Controller{
		table:   table,
		persist: persist,
		logger:  logger.WithComponent("edit"),
		cells:   make(map[cellKey]*session),
	}
}

// State returns the current state for a cell. Cells with no active
// session are Idle.
func (c *Controller) State(recordID, columnKey string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.cells[cellKey{recordID, columnKey}]; ok {
		return s.state
	}

	return StateIdle
}

// LastError returns the failure reason for a cell in the Error state.
func (c *Controller) LastError(recordID, columnKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.cells[cellKey{recordID, columnKey}]; ok {
		return s.err
	}

	return nil
}

// AttemptedValue returns the user's last-typed value for a cell in the
// Editing or Error state.
func (c *Controller) AttemptedValue(recordID, columnKey string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.cells[cellKey{recordID, columnKey}]; ok {
		return s.attempted, s.state == StateEditing || s.state == StateError
	}

	return nil, false
}

// Begin enters the Editing state for a cell, capturing the pre-edit value
// as the rollback target. The record must be in the working set and the
// column must be editable.
func (c *Controller) Begin(recordID, columnKey string) error {
	column, ok := c.column(columnKey)
	if !ok {
		return errors.NewValidationError(errors.ErrCodeValidation, "unknown column: "+columnKey)
	}
	if column.Editable == nil {
		return errors.NewUnsupportedError(errors.ErrCodeUnsupported, "column is not editable: "+columnKey)
	}

	value, ok := c.table.Value(recordID, columnKey)
	if !ok {
		if !c.table.Has(recordID) {
			return errors.ErrRecordNotFound("", recordID)
		}
		value = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := cellKey{recordID, columnKey}
	s, exists := c.cells[key]

	switch {
	case !exists || s.state == StateIdle:
		c.cells[key] = &session{state: StateEditing, preEdit: value, attempted: value}
	case s.state == StateError:
		// Re-edit path: back to Editing retaining the last-typed value,
		// not the rolled-back one.
		s.state = StateEditing
		s.err = nil
	case s.state == StateEditing:
		// Already editing; nothing to do.
	default:
		return errors.NewValidationError(errors.ErrCodeValidation,
			"cell is busy: "+s.state.String())
	}

	return nil
}

// Cancel discards the edit and returns the cell to Idle. The working set
// is untouched.
func (c *Controller) Cancel(recordID, columnKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cells, cellKey{recordID, columnKey})
}

// Submit validates and saves a new value for a cell in the Editing state.
//
// Validation failures keep the cell in Editing and return the field-level
// error without any network activity. A passing value is applied
// optimistically to the table state manager, then persisted; persistence
// failure rolls the table back to the pre-edit value and parks the cell
// in Error with the attempted value retained.
//
// A Submit against a cell whose save is still in flight is queued and
// applied after the first resolves, never dropped or interleaved.
func (c *Controller) Submit(ctx context.Context, recordID, columnKey string, value interface{}) error {
	column, ok := c.column(columnKey)
	if !ok {
		return errors.NewValidationError(errors.ErrCodeValidation, "unknown column: "+columnKey)
	}

	key := cellKey{recordID, columnKey}

	c.mu.Lock()
	s, exists := c.cells[key]
	if !exists {
		c.mu.Unlock()
		return errors.NewValidationError(errors.ErrCodeValidation,
			"no edit in progress for "+recordID+"/"+columnKey)
	}

	if s.state == StateSaving {
		// Serialize: the in-flight save picks this up when it resolves.
		s.queued = &queuedEdit{value: value}
		c.mu.Unlock()

		return nil
	}

	if s.state != StateEditing {
		state := s.state
		c.mu.Unlock()

		return errors.NewValidationError(errors.ErrCodeValidation,
			"cell is not editing: "+state.String())
	}

	s.state = StateValidating
	s.attempted = value
	c.mu.Unlock()

	return c.validateAndSave(ctx, key, column, value)
}

func (c *Controller) validateAndSave(ctx context.Context, key cellKey, column grid.ColumnDefinition, value interface{}) error {
	if err := column.Editable.Validate(column.Key, value); err != nil {
		// Validation failure: back to Editing, surface the field error,
		// no network call.
		c.mu.Lock()
		if s, ok := c.cells[key]; ok {
			s.state = StateEditing
		}
		c.mu.Unlock()

		return err
	}

	record, ok := c.table.Record(key.recordID)
	if !ok {
		c.mu.Lock()
		delete(c.cells, key)
		c.mu.Unlock()

		return errors.ErrRecordNotFound("", key.recordID)
	}

	c.mu.Lock()
	s, ok := c.cells[key]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	s.state = StateSaving
	preEdit := s.preEdit
	c.mu.Unlock()

	// Optimistic update: the view reflects the new value before the
	// persist resolves.
	c.table.SetValue(key.recordID, key.columnKey, value)

	err := c.persist(ctx, record, column, value)

	if err != nil {
		c.handleSaveFailure(ctx, key, preEdit, err)

		return err
	}

	// Confirmed: the optimistic value stands.
	c.mu.Lock()
	queued := s.queued
	s.queued = nil
	if queued == nil {
		delete(c.cells, key)
	} else {
		s.state = StateEditing
		s.preEdit = value
	}
	c.mu.Unlock()

	c.logger.Debug(ctx, "cell saved",
		"record", key.recordID, "column", key.columnKey)

	if queued != nil {
		c.mu.Lock()
		if s, ok := c.cells[key]; ok {
			s.state = StateValidating
			s.attempted = queued.value
		}
		c.mu.Unlock()

		return c.validateAndSave(ctx, key, column, queued.value)
	}

	return nil
}

func (c *Controller) handleSaveFailure(ctx context.Context, key cellKey, preEdit interface{}, cause error) {
	// Roll back unless the record has since been deleted from the
	// working set, in which case the rollback target is discarded.
	if c.table.Has(key.recordID) {
		c.table.SetValue(key.recordID, key.columnKey, preEdit)
	}

	c.mu.Lock()
	if s, ok := c.cells[key]; ok {
		s.state = StateError
		s.err = cause
		if s.queued != nil {
			// The queued value is the user's latest input; keep it as the
			// attempted value for the re-edit path.
			s.attempted = s.queued.value
			s.queued = nil
		}
	}
	c.mu.Unlock()

	c.logger.Warn(ctx, cause, "cell save failed, rolled back",
		"record", key.recordID, "column", key.columnKey)
}

// Resume moves a cell from Error back to Editing, retaining the user's
// last-typed value for correction.
func (c *Controller) Resume(recordID, columnKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.cells[cellKey{recordID, columnKey}]
	if !ok || s.state != StateError {
		return errors.NewValidationError(errors.ErrCodeValidation, "cell is not in error state")
	}

	s.state = StateEditing
	s.err = nil

	return nil
}

func (c *Controller) column(key string) (grid.ColumnDefinition, bool) {
	for _, col := range c.table.Columns() {
		if col.Key == key {
			return col, true
		}
	}

	return grid.ColumnDefinition{}, false
}
