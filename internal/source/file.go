package source

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/logging"
)

// FileSource serves rows from a CSV file. The first row is the header;
// cells that parse as numbers or booleans are typed, everything else stays
// a string. The file is read lazily and re-read after a change event, and
// OnChange subscribers are notified so adapters can drop cached pages.
//
// The source is read-only: create, update and delete are unsupported.
type FileSource struct {
	name   string
	path   string
	logger logging.Logger

	mu        sync.Mutex
	rows      []map[string]interface{}
	loaded    bool
	listeners []func()

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileSource creates a CSV source for path. The file does not need to
// exist yet; a fetch against a missing file fails transient.
func NewFileSource(name, path string, logger logging.Logger) *FileSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &FileSource{
		name:   name,
		path:   path,
		logger: logger.WithComponent("source.file"),
		done:   make(chan struct{}),
	}
}

// Name identifies the source.
func (f *FileSource) Name() string { return f.name }

// Capabilities reports the read-only capability set.
func (f *FileSource) Capabilities() Capabilities {
	return Capabilities{Search: true}
}

// OnChange registers a callback invoked after the backing file changes.
func (f *FileSource) OnChange(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Watch starts the filesystem watcher. The watch covers the containing
// directory so editor rename-over-save patterns are caught. Close stops it.
func (f *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternal, "creating file watcher", err)
	}

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return errors.NewInternalError(errors.ErrCodeInternal, "watching "+filepath.Dir(f.path), err)
	}

	f.mu.Lock()
	f.watcher = watcher
	f.mu.Unlock()

	go f.watchLoop(ctx, watcher)

	return nil
}

// Close stops the watcher if one is running.
func (f *FileSource) Close() error {
	close(f.done)

	f.mu.Lock()
	watcher := f.watcher
	f.watcher = nil
	f.mu.Unlock()

	if watcher != nil {
		return watcher.Close()
	}

	return nil
}

func (f *FileSource) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			f.logger.Debug(ctx, "file changed, invalidating", "path", f.path, "op", event.Op.String())
			f.invalidate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn(ctx, err, "file watcher error", "path", f.path)

		case <-ctx.Done():
			return

		case <-f.done:
			return
		}
	}
}

// invalidate drops the cached rows and notifies subscribers.
func (f *FileSource) invalidate() {
	f.mu.Lock()
	f.loaded = false
	f.rows = nil
	listeners := make([]func(), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Fetch serves list, get and search from the parsed file.
func (f *FileSource) Fetch(ctx context.Context, req Request) (*Response, error) {
	switch req.Op {
	case OpList, OpSearch, OpGet:
	default:
		return nil, errors.ErrUnsupportedOperation(req.Entity, string(req.Op))
	}

	rows, err := f.load()
	if err != nil {
		return nil, err
	}

	if req.Op == OpGet {
		for _, row := range rows {
			if toID(row) == req.ID {
				return &Response{Rows: []map[string]interface{}{copyRow(row)}, Total: 1}, nil
			}
		}
		return nil, errors.ErrRecordNotFound(req.Entity, req.ID)
	}

	paged, total := applyQuery(rows, req.Query, fieldKeys(rows))
	out := make([]map[string]interface{}, len(paged))
	for i, row := range paged {
		out[i] = copyRow(row)
	}

	return &Response{Rows: out, Total: total}, nil
}

// load returns the parsed rows, reading the file on first use and after
// invalidation.
func (f *FileSource) load() ([]map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loaded {
		return f.rows, nil
	}

	rows, err := parseCSVFile(f.path)
	if err != nil {
		return nil, err
	}

	f.rows = rows
	f.loaded = true

	return rows, nil
}

func parseCSVFile(path string) ([]map[string]interface{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewTransientError(errors.ErrCodeNetwork, "opening "+path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "parsing "+path, err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]interface{}, 0, len(records)-1)
	for _, cells := range records[1:] {
		row := make(map[string]interface{}, len(header))
		for i, key := range header {
			if i >= len(cells) {
				break
			}
			if key == "id" {
				row[key] = cells[i]
				continue
			}
			row[key] = typeCell(cells[i])
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// typeCell coerces a CSV cell into a number or boolean where it parses as
// one. The id column is exempt so lookups compare cleanly.
func typeCell(raw string) interface{} {
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && raw != "" {
		return n
	}

	return raw
}
