package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tablekit/tablekit/internal/errors"
)

// SQLiteSource persists records in a SQLite database, one table per
// entity holding an id column plus the record fields as a JSON document.
// List queries are resolved in process after loading the entity's rows,
// which keeps filter and search semantics identical across sources.
type SQLiteSource struct {
	name string
	db   *sql.DB
}

// OpenSQLiteSource opens (or creates) the database at path.
func OpenSQLiteSource(name, path string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternal, "opening database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.NewTransientError(errors.ErrCodeNetwork, "connecting to database", err)
	}

	return &SQLiteSource{name: name, db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error { return s.db.Close() }

// Name identifies the source.
func (s *SQLiteSource) Name() string { return s.name }

// Capabilities reports the full read-write capability set.
func (s *SQLiteSource) Capabilities() Capabilities {
	return Capabilities{Create: true, Update: true, Delete: true, Search: true}
}

// Fetch executes the request against the entity's table.
func (s *SQLiteSource) Fetch(ctx context.Context, req Request) (*Response, error) {
	if err := s.ensureTable(ctx, req.Entity); err != nil {
		return nil, err
	}

	table := tableName(req.Entity)

	switch req.Op {
	case OpList, OpSearch:
		rows, err := s.loadAll(ctx, table)
		if err != nil {
			return nil, err
		}
		paged, total := applyQuery(rows, req.Query, fieldKeys(rows))
		return &Response{Rows: paged, Total: total}, nil

	case OpGet:
		row, err := s.loadOne(ctx, table, req.Entity, req.ID)
		if err != nil {
			return nil, err
		}
		return &Response{Rows: []map[string]interface{}{row}, Total: 1}, nil

	case OpCreate:
		row := copyRow(req.Record)
		id := toID(row)
		if id == "" {
			id = uuid.NewString()
			row["id"] = id
		}
		doc, err := json.Marshal(row)
		if err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "encoding record", err)
		}
		_, err = s.db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (id, data) VALUES (?, ?)", table), id, string(doc))
		if err != nil {
			return nil, classifySQLError(req, err)
		}
		return &Response{Rows: []map[string]interface{}{row}, Total: 1}, nil

	case OpUpdate:
		existing, err := s.loadOne(ctx, table, req.Entity, req.ID)
		if err != nil {
			return nil, err
		}
		for k, v := range req.Record {
			existing[k] = v
		}
		existing["id"] = req.ID
		doc, err := json.Marshal(existing)
		if err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "encoding record", err)
		}
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("UPDATE %s SET data = ? WHERE id = ?", table), string(doc), req.ID)
		if err != nil {
			return nil, classifySQLError(req, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, errors.ErrRecordNotFound(req.Entity, req.ID)
		}
		return &Response{Rows: []map[string]interface{}{existing}, Total: 1}, nil

	case OpDelete:
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), req.ID)
		if err != nil {
			return nil, classifySQLError(req, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, errors.ErrRecordNotFound(req.Entity, req.ID)
		}
		return &Response{}, nil

	default:
		return nil, errors.ErrUnsupportedOperation(req.Entity, string(req.Op))
	}
}

func (s *SQLiteSource) ensureTable(ctx context.Context, entity string) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data TEXT NOT NULL)", tableName(entity)))
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "creating table for "+entity, err)
	}

	return nil
}

func (s *SQLiteSource) loadAll(ctx context.Context, table string) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT data FROM %s ORDER BY rowid", table))
	if err != nil {
		return nil, errors.NewTransientError(errors.ErrCodeNetwork, "querying "+table, err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "scanning row", err)
		}
		var row map[string]interface{}
		if err := json.Unmarshal([]byte(doc), &row); err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "decoding row", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewTransientError(errors.ErrCodeNetwork, "iterating rows", err)
	}

	return out, nil
}

func (s *SQLiteSource) loadOne(ctx context.Context, table, entity, id string) (map[string]interface{}, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT data FROM %s WHERE id = ?", table), id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, errors.ErrRecordNotFound(entity, id)
	}
	if err != nil {
		return nil, errors.NewTransientError(errors.ErrCodeNetwork, "querying "+table, err)
	}

	var row map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &row); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "decoding row", err)
	}

	return row, nil
}

// tableName sanitizes an entity name for interpolation into DDL/DML;
// entity names come from config, not user input, but better safe.
func tableName(entity string) string {
	out := make([]rune, 0, len(entity))
	for _, r := range entity {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "records"
	}

	return "tk_" + string(out)
}

// classifySQLError maps driver failures; unique constraint violations are
// conflicts, everything else is transient.
func classifySQLError(req Request, err error) error {
	msg := err.Error()
	if containsAny(msg, "UNIQUE constraint", "constraint failed") {
		return errors.NewConflictError(errors.ErrCodeConflict, "record already exists").
			WithEntity(req.Entity).WithOperation(string(req.Op))
	}

	return errors.NewTransientError(errors.ErrCodeNetwork, "database operation failed", err).
		WithEntity(req.Entity).WithOperation(string(req.Op))
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}
