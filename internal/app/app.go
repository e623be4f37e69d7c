// Package app assembles configured components into a runnable grid
// application: sources, adapters, table state, and the HTTP server.
package app

import (
	"context"
	"fmt"

	"github.com/tablekit/tablekit/internal/adapter"
	"github.com/tablekit/tablekit/internal/cache"
	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/grid"
	"github.com/tablekit/tablekit/internal/logging"
	"github.com/tablekit/tablekit/internal/ratelimit"
	"github.com/tablekit/tablekit/internal/source"
)

// Entity is one assembled entity: its source, adapter, and table state.
type Entity struct {
	Name    string
	Source  source.Source
	Adapter *adapter.Adapter
	Table   *grid.Manager
	Columns *grid.ColumnManager
}

// App owns the assembled components and their shared infrastructure.
type App struct {
	Config   *config.Config
	Logger   logging.Logger
	Store    *cache.Store
	Limiter  *ratelimit.Limiter
	Entities map[string]*Entity

	closers []func() error
}

// New assembles an application from validated configuration.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    cache.NewStore(cfg.Cache.Capacity),
		Limiter:  ratelimit.NewLimiter(cfg.RateLimit.MaxCalls, cfg.RateLimit.Window, cfg.RateLimit.MaxWait),
		Entities: make(map[string]*Entity, len(cfg.Entities)),
	}

	for _, ec := range cfg.Entities {
		entity, err := a.buildEntity(ec)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Entities[ec.Name] = entity
	}

	return a, nil
}

// Entity returns an assembled entity by name.
func (a *App) Entity(name string) (*Entity, error) {
	e, ok := a.Entities[name]
	if !ok {
		return nil, errors.NewInternalError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("entity %q is not configured", name), nil)
	}

	return e, nil
}

// Close releases sources holding external resources.
func (a *App) Close() error {
	var first error
	for _, fn := range a.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

func (a *App) buildEntity(ec config.EntityConfig) (*Entity, error) {
	src, err := a.buildSource(ec)
	if err != nil {
		return nil, err
	}

	ttl := ec.TTL
	if ttl <= 0 {
		ttl = a.Config.Cache.TTL
	}

	ad := adapter.New(ec.Name, src, a.Store, a.Limiter, adapter.Options{
		Strategy: adapter.Strategy(ec.Strategy),
		Retry: adapter.RetryPolicy{
			MaxAttempts: a.Config.Retry.MaxAttempts,
			BaseBackoff: a.Config.Retry.BaseBackoff,
			MaxBackoff:  a.Config.Retry.MaxBackoff,
		},
		TTL:     ttl,
		IDField: ec.IDField,
		Logger:  a.Logger,
	})

	// Watchable sources invalidate the adapter's cache when the backing
	// data changes underneath it.
	if w, ok := src.(source.Watchable); ok {
		w.OnChange(ad.Invalidate)
	}

	columns := buildColumns(ec.Columns)
	table := grid.NewManager(columns)

	return &Entity{
		Name:    ec.Name,
		Source:  src,
		Adapter: ad,
		Table:   table,
		Columns: grid.NewColumnManager(columns),
	}, nil
}

func (a *App) buildSource(ec config.EntityConfig) (source.Source, error) {
	sc := ec.Source

	switch sc.Type {
	case "http":
		opts := make([]source.HTTPOption, 0, len(sc.Headers))
		for k, v := range sc.Headers {
			opts = append(opts, source.WithHeader(k, v))
		}
		return source.NewHTTPSource(ec.Name, sc.URL, opts...), nil

	case "file":
		fs := source.NewFileSource(ec.Name, sc.Path, a.Logger)
		if sc.Watch {
			if err := fs.Watch(context.Background()); err != nil {
				return nil, err
			}
		}
		a.closers = append(a.closers, fs.Close)
		return fs, nil

	case "sqlite":
		db, err := source.OpenSQLiteSource(ec.Name, sc.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil

	case "memory":
		return source.NewMemorySource(ec.Name, nil), nil

	default:
		return nil, errors.NewInternalError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("entity %q: unknown source type %q", ec.Name, sc.Type), nil)
	}
}

// LoadInitial fills an entity's table from its source via the adapter.
func (a *App) LoadInitial(ctx context.Context, e *Entity) error {
	res, err := e.Adapter.List(ctx, source.Query{})
	if err != nil {
		return err
	}

	e.Table.SetRecords(res.Data)
	if res.Stale {
		a.Logger.Warn(ctx, nil, "initial load served stale data", "entity", e.Name)
	}

	return nil
}

func buildColumns(configs []config.ColumnConfig) []grid.ColumnDefinition {
	out := make([]grid.ColumnDefinition, len(configs))
	for i, cc := range configs {
		col := grid.ColumnDefinition{
			Key:        cc.Key,
			Label:      cc.Label,
			Type:       columnType(cc.Type),
			Sortable:   cc.Sortable,
			Filterable: cc.Filterable,
			Searchable: cc.Searchable,
			Width:      cc.Width,
			MinWidth:   cc.MinWidth,
			MaxWidth:   cc.MaxWidth,
			Frozen:     grid.FrozenSide(cc.Frozen),
		}
		if cc.Editable {
			col.Editable = &grid.EditRules{Type: editType(cc.Type)}
		}
		out[i] = col
	}

	return out
}

func columnType(raw string) grid.ColumnType {
	switch raw {
	case "number":
		return grid.ColumnTypeNumber
	case "date":
		return grid.ColumnTypeDate
	case "boolean":
		return grid.ColumnTypeBoolean
	default:
		return grid.ColumnTypeText
	}
}

func editType(raw string) grid.EditType {
	if raw == "number" {
		return grid.EditTypeNumber
	}

	return grid.EditTypeText
}
