// Package adapter sits between the grid engine and a data source, adding
// caching, rate limiting, retry with exponential backoff, request
// deduplication, and row validation. Each adapter serves one entity.
package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tablekit/tablekit/internal/cache"
	"github.com/tablekit/tablekit/internal/errors"
	"github.com/tablekit/tablekit/internal/grid"
	"github.com/tablekit/tablekit/internal/logging"
	"github.com/tablekit/tablekit/internal/ratelimit"
	"github.com/tablekit/tablekit/internal/source"
)

// Strategy selects how reads combine cache and network.
type Strategy string

const (
	// StrategyCacheFirst serves a live cache hit without touching the
	// network; a miss fetches and populates.
	StrategyCacheFirst Strategy = "cache_first"
	// StrategyNetworkFirst always fetches; on failure a stale cache entry
	// is served, flagged stale.
	StrategyNetworkFirst Strategy = "network_first"
	// StrategyStaleWhileRevalidate serves any cached value immediately,
	// flagged stale when expired, and refreshes in the background.
	StrategyStaleWhileRevalidate Strategy = "stale_while_revalidate"
)

// RetryPolicy bounds the retry loop for recoverable failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy retries three times starting at 100ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 100 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// PagedResult is a validated page of records.
type PagedResult struct {
	Data       []grid.Record
	Page       int
	Limit      int
	Total      int
	TotalPages int
	// Stale marks data served from an expired cache entry.
	Stale bool
	Meta  map[string]interface{}
}

// Result is a single validated record.
type Result struct {
	Record grid.Record
	Stale  bool
}

// Options configures an Adapter.
type Options struct {
	Strategy Strategy
	Retry    RetryPolicy
	TTL      time.Duration
	// IDField names the unique identifier field; defaults to "id".
	IDField string
	Logger  logging.Logger
}

// Adapter wraps one entity's source with the caching and resilience
// layers.
type Adapter struct {
	entity  string
	src     source.Source
	store   *cache.Store
	limiter *ratelimit.Limiter

	strategy Strategy
	retry    RetryPolicy
	ttl      time.Duration
	idField  string
	logger   logging.Logger

	mu       sync.Mutex
	inflight map[string]*inflight

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// inflight tracks one deduplicated fetch; followers wait on done and read
// the shared result.
type inflight struct {
	done chan struct{}
	resp *source.Response
	err  error
}

// New creates an adapter for entity over src. store and limiter may be
// shared across adapters.
func New(entity string, src source.Source, store *cache.Store, limiter *ratelimit.Limiter, opts Options) *Adapter {
	if opts.Strategy == "" {
		opts.Strategy = StrategyNetworkFirst
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.TTL <= 0 {
		opts.TTL = 60 * time.Second
	}
	if opts.IDField == "" {
		opts.IDField = "id"
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	return &Adapter{
		entity:   entity,
		src:      src,
		store:    store,
		limiter:  limiter,
		strategy: opts.Strategy,
		retry:    opts.Retry,
		ttl:      opts.TTL,
		idField:  opts.IDField,
		logger:   opts.Logger.WithComponent("adapter." + entity),
		inflight: make(map[string]*inflight),
		sleep:    sleepCtx,
	}
}

// Entity returns the entity this adapter serves.
func (a *Adapter) Entity() string { return a.entity }

// List fetches one page of records.
func (a *Adapter) List(ctx context.Context, q source.Query) (*PagedResult, error) {
	return a.paged(ctx, source.Request{Op: source.OpList, Entity: a.entity, Query: q})
}

// Search fetches one page of records matching the query's search term.
func (a *Adapter) Search(ctx context.Context, q source.Query) (*PagedResult, error) {
	if !a.src.Capabilities().Search {
		return nil, errors.ErrUnsupportedOperation(a.entity, string(source.OpSearch))
	}

	return a.paged(ctx, source.Request{Op: source.OpSearch, Entity: a.entity, Query: q})
}

// Get fetches a single record by id.
func (a *Adapter) Get(ctx context.Context, id string) (*Result, error) {
	req := source.Request{Op: source.OpGet, Entity: a.entity, ID: id}
	key := a.cacheKey(req)

	resp, stale, err := a.read(ctx, key, req)
	if err != nil {
		return nil, err
	}

	records, err := a.transform(resp.Rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.ErrRecordNotFound(a.entity, id)
	}

	return &Result{Record: records[0], Stale: stale}, nil
}

// Create persists a new record. Writes bypass the cache and invalidate the
// entity's cached pages on success.
func (a *Adapter) Create(ctx context.Context, record map[string]interface{}) (*Result, error) {
	if !a.src.Capabilities().Create {
		return nil, errors.ErrUnsupportedOperation(a.entity, string(source.OpCreate))
	}

	resp, err := a.fetchWithRetry(ctx, source.Request{Op: source.OpCreate, Entity: a.entity, Record: record})
	if err != nil {
		return nil, err
	}

	records, err := a.transform(resp.Rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord, "create returned no record", nil)
	}

	a.invalidateEntity()

	return &Result{Record: records[0]}, nil
}

// Update persists changed fields for a record.
func (a *Adapter) Update(ctx context.Context, id string, changes map[string]interface{}) (*Result, error) {
	if !a.src.Capabilities().Update {
		return nil, errors.ErrUnsupportedOperation(a.entity, string(source.OpUpdate))
	}

	resp, err := a.fetchWithRetry(ctx, source.Request{Op: source.OpUpdate, Entity: a.entity, ID: id, Record: changes})
	if err != nil {
		return nil, err
	}

	records, err := a.transform(resp.Rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.ErrRecordNotFound(a.entity, id)
	}

	a.invalidateEntity()

	return &Result{Record: records[0]}, nil
}

// Delete removes a record.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	if !a.src.Capabilities().Delete {
		return errors.ErrUnsupportedOperation(a.entity, string(source.OpDelete))
	}

	if _, err := a.fetchWithRetry(ctx, source.Request{Op: source.OpDelete, Entity: a.entity, ID: id}); err != nil {
		return err
	}

	a.invalidateEntity()

	return nil
}

// Invalidate drops every cached read for this entity. Watchable sources
// call it when the backing data changes underneath the adapter.
func (a *Adapter) Invalidate() {
	a.invalidateEntity()
}

func (a *Adapter) paged(ctx context.Context, req source.Request) (*PagedResult, error) {
	key := a.cacheKey(req)

	resp, stale, err := a.read(ctx, key, req)
	if err != nil {
		return nil, err
	}

	records, err := a.transform(resp.Rows)
	if err != nil {
		return nil, err
	}

	limit := req.Query.Limit
	page := req.Query.Page
	if page < 1 {
		page = 1
	}

	totalPages := 1
	if limit > 0 {
		totalPages = (resp.Total + limit - 1) / limit
		if totalPages < 1 {
			totalPages = 1
		}
	}

	return &PagedResult{
		Data:       records,
		Page:       page,
		Limit:      limit,
		Total:      resp.Total,
		TotalPages: totalPages,
		Stale:      stale,
		Meta:       resp.Meta,
	}, nil
}

// read dispatches one cached read per the configured strategy. The stale
// return is true when the data came from an expired cache entry.
func (a *Adapter) read(ctx context.Context, key string, req source.Request) (*source.Response, bool, error) {
	switch a.strategy {
	case StrategyCacheFirst:
		if v, ok := a.store.Get(key); ok {
			return v.(*source.Response), false, nil
		}
		resp, err := a.sharedFetch(ctx, key, req)
		if err != nil {
			return nil, false, err
		}
		return resp, false, nil

	case StrategyStaleWhileRevalidate:
		if v, ok, stale := a.store.GetStale(key); ok {
			if stale {
				a.revalidate(ctx, key, req)
			}
			return v.(*source.Response), stale, nil
		}
		resp, err := a.sharedFetch(ctx, key, req)
		if err != nil {
			return nil, false, err
		}
		return resp, false, nil

	default: // network first
		resp, err := a.sharedFetch(ctx, key, req)
		if err == nil {
			return resp, false, nil
		}
		if v, ok, _ := a.store.GetStale(key); ok {
			// Fallback swallows the network error; the stale flag tells the
			// caller what happened.
			a.logger.Warn(ctx, err, "network failed, serving stale cache", "key", key)
			return v.(*source.Response), true, nil
		}
		return nil, false, err
	}
}

// revalidate refreshes one cache entry in the background. The refresh is
// detached from the caller's cancellation but deadline-bounded.
func (a *Adapter) revalidate(ctx context.Context, key string, req source.Request) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)

	go func() {
		defer cancel()

		if _, err := a.sharedFetch(bg, key, req); err != nil {
			// Stale data already went out; the next read retries.
			a.logger.Debug(bg, "background revalidation failed", "key", key, "error", err.Error())
		}
	}()
}

// sharedFetch deduplicates identical concurrent fetches: the first caller
// performs the network round trip, followers wait and share the result.
// Success populates the cache.
func (a *Adapter) sharedFetch(ctx context.Context, key string, req source.Request) (*source.Response, error) {
	a.mu.Lock()
	if flight, ok := a.inflight[key]; ok {
		a.mu.Unlock()

		select {
		case <-flight.done:
			return flight.resp, flight.err
		case <-ctx.Done():
			return nil, errors.NewTransientError(errors.ErrCodeTimeout, "fetch canceled", ctx.Err())
		}
	}

	flight := &inflight{done: make(chan struct{})}
	a.inflight[key] = flight
	a.mu.Unlock()

	resp, err := a.fetchWithRetry(ctx, req)

	flight.resp = resp
	flight.err = err
	close(flight.done)

	a.mu.Lock()
	delete(a.inflight, key)
	a.mu.Unlock()

	if err == nil {
		a.store.Set(key, resp, a.ttl)
	}

	return resp, err
}

// fetchWithRetry acquires a rate-limit slot and runs the retry loop.
// Only recoverable failures retry; validation, conflict and unsupported
// errors surface immediately.
func (a *Adapter) fetchWithRetry(ctx context.Context, req source.Request) (*source.Response, error) {
	var lastErr error

	for attempt := 1; attempt <= a.retry.MaxAttempts; attempt++ {
		if a.limiter != nil {
			if err := a.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := a.src.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if !errors.IsRetryable(err) {
			return nil, err
		}

		if attempt == a.retry.MaxAttempts {
			break
		}

		backoff := a.backoff(attempt)
		a.logger.Debug(ctx, "retrying after failure",
			"operation", string(req.Op), "attempt", attempt, "backoff", backoff.String(), "error", err.Error())

		if err := a.sleep(ctx, backoff); err != nil {
			return nil, errors.NewTransientError(errors.ErrCodeTimeout, "retry aborted", err)
		}
	}

	return nil, errors.NewTransientError(errors.ErrCodeRetryExhausted,
		fmt.Sprintf("%s %s failed after %d attempts", req.Op, a.entity, a.retry.MaxAttempts), lastErr).
		WithEntity(a.entity).WithOperation(string(req.Op))
}

// backoff doubles per attempt from the base, capped at MaxBackoff.
func (a *Adapter) backoff(attempt int) time.Duration {
	d := a.retry.BaseBackoff << uint(attempt-1)
	if a.retry.MaxBackoff > 0 && d > a.retry.MaxBackoff {
		d = a.retry.MaxBackoff
	}

	return d
}

// transform validates raw rows into Records. A row without the id field
// fails the whole response rather than being silently dropped.
func (a *Adapter) transform(rows []map[string]interface{}) ([]grid.Record, error) {
	records := make([]grid.Record, 0, len(rows))
	for i, row := range rows {
		id, ok := row[a.idField].(string)
		if !ok || id == "" {
			return nil, errors.NewInternalError(errors.ErrCodeMalformedRecord,
				fmt.Sprintf("row %d missing %q field", i, a.idField), nil).
				WithEntity(a.entity)
		}
		records = append(records, grid.NewRecord(id, row))
	}

	return records, nil
}

func (a *Adapter) cacheKey(req source.Request) string {
	params := req.Query.Params()
	if req.ID != "" {
		params = map[string]interface{}{a.idField: req.ID}
	}

	return cache.EntityKey(a.entity, string(req.Op), params)
}

func (a *Adapter) invalidateEntity() {
	n := a.store.InvalidatePrefix(a.entity + ":")
	if n > 0 {
		a.logger.Debug(context.Background(), "cache invalidated", "entries", n)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
