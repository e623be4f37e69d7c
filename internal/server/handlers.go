package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/export"
	"github.com/tablekit/tablekit/internal/grid"
)

// handleHealth reports liveness.
func (s *GridServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// handleView applies query parameters to the table state manager and
// returns the resulting page.
//
//	GET /api/view?page=2&sort=name:asc,price:desc&search=ac&filter=status:eq:Active
func (s *GridServer) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "GET only"))
		return
	}

	q := r.URL.Query()

	if raw := q.Get("sort"); raw != "" {
		spec, err := parseSortParam(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		s.table.SetSort(spec)
	}

	if q.Has("search") {
		s.table.SetSearch(q.Get("search"))
	}

	if raw, ok := q["filter"]; ok {
		spec, err := parseFilterParams(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		s.table.SetFilters(spec)
	}

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "page must be an integer"))
			return
		}
		size, _ := strconv.Atoi(q.Get("limit"))
		s.table.SetPage(page, size)
	}

	view := s.table.View()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records":       viewRecords(view.Records),
		"page":          view.Page,
		"page_size":     view.PageSize,
		"total_records": view.TotalRecords,
		"total_pages":   view.TotalPages,
		"selected":      s.table.Selection(),
	})
}

// handleColumns returns column definitions and layout, and accepts
// resize/move commands.
func (s *GridServer) handleColumns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, columnLayout(s.columns))

	case http.MethodPost:
		var cmd struct {
			Action string  `json:"action"` // "resize" or "move"
			Key    string  `json:"key"`
			Width  float64 `json:"width"`
			To     int     `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "malformed command body"))
			return
		}

		switch cmd.Action {
		case "resize":
			applied := s.columns.Resize(cmd.Key, cmd.Width)
			if applied < 0 {
				writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "unknown column: "+cmd.Key))
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"applied_width": applied})

		case "move":
			if !s.columns.Move(cmd.Key, cmd.To) {
				// Rejected moves are no-ops, not errors; the client re-renders
				// from the unchanged layout.
				writeJSON(w, http.StatusOK, map[string]interface{}{"moved": false})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"moved": true})

		default:
			writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "unknown action: "+cmd.Action))
		}

	default:
		writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "GET or POST only"))
	}
}

// handleRecord serves one record by id, via the adapter when configured
// so cache and retry semantics apply.
//
//	GET /api/records/{id}
func (s *GridServer) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "GET only"))
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/records/")
	if id == "" {
		writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "record id required"))
		return
	}

	if s.adapter != nil {
		res, err := s.adapter.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"record": recordPayload(res.Record),
			"stale":  res.Stale,
		})
		return
	}

	record, ok := s.table.Record(id)
	if !ok {
		writeError(w, errors.ErrRecordNotFound("", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"record": recordPayload(record)})
}

// handleEdit runs the inline edit lifecycle for one cell in a single
// request: begin, submit, and report the resulting state.
func (s *GridServer) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "POST only"))
		return
	}

	var body struct {
		RecordID string      `json:"record_id"`
		Column   string      `json:"column"`
		Value    interface{} `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "malformed edit body"))
		return
	}

	if err := s.editor.Begin(body.RecordID, body.Column); err != nil {
		writeError(w, err)
		return
	}

	if err := s.editor.Submit(r.Context(), body.RecordID, body.Column, body.Value); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": s.editor.State(body.RecordID, body.Column).String(),
	})
}

// handleExport streams the current filtered, sorted view as CSV.
//
//	GET /api/export.csv?columns=name,price&selected=true
func (s *GridServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.NewValidationError(errors.ErrCodeValidation, "GET only"))
		return
	}

	opts := export.Options{SelectedOnly: r.URL.Query().Get("selected") == "true"}
	if raw := r.URL.Query().Get("columns"); raw != "" {
		opts.Columns = strings.Split(raw, ",")
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="export.csv"`)

	if err := export.CSV(w, s.table, opts); err != nil {
		s.logger.Error(r.Context(), err, "export failed")
	}
}

// persistEdit saves an edited cell through the adapter. Without an
// adapter the edit is local-only and persists trivially.
func (s *GridServer) persistEdit(ctx context.Context, record grid.Record, column grid.ColumnDefinition, newValue interface{}) error {
	if s.adapter == nil {
		return nil
	}

	_, err := s.adapter.Update(ctx, record.ID, map[string]interface{}{column.Key: newValue})
	return err
}

// parseSortParam parses "name:asc,price:desc".
func parseSortParam(raw string) (grid.SortSpec, error) {
	var spec grid.SortSpec
	for _, part := range strings.Split(raw, ",") {
		field, dir, found := strings.Cut(part, ":")
		if !found || field == "" {
			return nil, errors.NewValidationError(errors.ErrCodeValidation, "malformed sort: "+part)
		}
		switch dir {
		case "asc":
			spec = append(spec, grid.SortKey{Field: field, Direction: grid.SortAsc})
		case "desc":
			spec = append(spec, grid.SortKey{Field: field, Direction: grid.SortDesc})
		default:
			return nil, errors.NewValidationError(errors.ErrCodeValidation, "sort direction must be asc or desc")
		}
	}

	return spec, nil
}

// parseFilterParams parses repeated "field:op:value" entries.
func parseFilterParams(raw []string) (grid.FilterSpec, error) {
	var spec grid.FilterSpec
	for _, entry := range raw {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, errors.NewValidationError(errors.ErrCodeValidation, "malformed filter: "+entry)
		}
		spec = append(spec, grid.Filter{
			Field:    parts[0],
			Operator: grid.FilterOperator(parts[1]),
			Value:    parts[2],
		})
	}

	return spec, nil
}

func viewRecords(records []grid.Record) []map[string]interface{} {
	out := make([]map[string]interface{}, len(records))
	for i, r := range records {
		out[i] = recordPayload(r)
	}
	return out
}

func recordPayload(r grid.Record) map[string]interface{} {
	payload := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		payload[k] = v
	}
	payload["id"] = r.ID
	return payload
}

func columnLayout(cm *grid.ColumnManager) map[string]interface{} {
	columns := cm.Columns()
	out := make([]map[string]interface{}, len(columns))
	for i, col := range columns {
		entry := map[string]interface{}{
			"key":   col.Key,
			"label": col.Label,
			"type":  string(col.Type),
			"width": col.Width,
		}
		if col.Frozen != "" {
			entry["frozen"] = string(col.Frozen)
			if col.Frozen == grid.FrozenLeft {
				entry["offset"] = cm.FrozenLeftOffset(col.Key)
			} else {
				entry["offset"] = cm.FrozenRightOffset(col.Key)
			}
		}
		out[i] = entry
	}

	return map[string]interface{}{
		"columns":     out,
		"total_width": cm.TotalWidth(),
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	payload := map[string]interface{}{"error": err.Error()}

	if ge, ok := err.(*errors.GridError); ok {
		payload["type"] = string(ge.Type)
		payload["code"] = ge.Code
		payload["recoverable"] = ge.Recoverable

		switch ge.Type {
		case errors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case errors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case errors.ErrorTypeConflict:
			status = http.StatusConflict
		case errors.ErrorTypeRateLimited:
			status = http.StatusTooManyRequests
		case errors.ErrorTypeUnsupported:
			status = http.StatusMethodNotAllowed
		case errors.ErrorTypeTransient:
			status = http.StatusBadGateway
		}
	}

	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
