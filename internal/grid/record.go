// Package grid implements the table state core: normalized records, column
// definitions, the stable multi-key sorter, filter evaluation, and the
// state manager deriving sorted/filtered/paged views with selection and
// search state.
package grid

// Record is an identified mapping from field name to value. Records are
// immutable once produced by an adapter transform: updates replace the
// record wholesale via WithField or the state manager, never mutate the
// field map in place.
type Record struct {
	ID     string
	Fields map[string]interface{}
}

// NewRecord creates a record with a defensive copy of the field map.
func NewRecord(id string, fields map[string]interface{}) Record {
	copied := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	return Record{ID: id, Fields: copied}
}

// Field returns the value for a field and whether it is present.
func (r Record) Field(key string) (interface{}, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// WithField returns a new record with the field replaced. The receiver is
// left untouched.
func (r Record) WithField(key string, value interface{}) Record {
	fields := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[key] = value

	return Record{ID: r.ID, Fields: fields}
}

// Clone returns a deep-enough copy for callers that need to hold a record
// across working-set replacement.
func (r Record) Clone() Record {
	return NewRecord(r.ID, r.Fields)
}
