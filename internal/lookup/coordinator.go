// Package lookup decides, per resource, whether to serve persisted rows or
// fetch them from a provider and persist them first.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/neexbeast/city-explorer/internal/provider"
	"github.com/neexbeast/city-explorer/internal/telemetry"
)

// Store is the persisted side of a resource, addressed by its natural key.
// Find returns an empty slice on a miss.
type Store[K comparable, R any] interface {
	Find(ctx context.Context, key K) ([]R, error)
	Save(ctx context.Context, recs []R) ([]R, error)
}

// FetchFunc asks a provider for the records belonging to p.
type FetchFunc[P, R any] func(ctx context.Context, p P) ([]R, error)

// RowCache holds copies of persisted rows. Satisfied by *cache.Cache.
type RowCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	cache  RowCache
	logger *slog.Logger
}

// WithCache puts a row cache in front of the store.
func WithCache(c RowCache) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger sets the logger used for cache warnings and miss tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Coordinator serves one resource type. P is what the caller asks with, K the
// natural key derived from it and R the record type.
type Coordinator[P any, K comparable, R any] struct {
	resource string
	key      func(P) K
	store    Store[K, R]
	fetch    FetchFunc[P, R]
	cache    RowCache
	logger   *slog.Logger
	group    singleflight.Group
}

// New constructs a Coordinator for resource.
func New[P any, K comparable, R any](resource string, key func(P) K, store Store[K, R], fetch FetchFunc[P, R], opts ...Option) *Coordinator[P, K, R] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator[P, K, R]{
		resource: resource,
		key:      key,
		store:    store,
		fetch:    fetch,
		cache:    o.cache,
		logger:   o.logger,
	}
}

// Lookup returns the stored rows for p, fetching and persisting them on a miss.
// Concurrent lookups for the same key share one store read and at most one fetch.
// The shared work is detached from any one caller's cancellation; a caller that
// gives up gets its own ctx error while the others keep waiting.
func (c *Coordinator[P, K, R]) Lookup(ctx context.Context, p P) ([]R, error) {
	key := c.key(p)
	cacheKey := fmt.Sprintf("%s:%v", c.resource, key)

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(cacheKey, func() (any, error) {
		return c.resolve(shared, p, key, cacheKey)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]R)), nil
	}
}

func (c *Coordinator[P, K, R]) resolve(ctx context.Context, p P, key K, cacheKey string) ([]R, error) {
	if recs, ok := c.cached(ctx, cacheKey); ok {
		telemetry.ObserveLookup(c.resource, telemetry.OutcomeCached)
		return recs, nil
	}

	recs, err := c.store.Find(ctx, key)
	if err != nil {
		telemetry.ObserveLookup(c.resource, telemetry.OutcomeFailed)
		return nil, fmt.Errorf("looking up %s: %w", c.resource, err)
	}
	if len(recs) > 0 {
		telemetry.ObserveLookup(c.resource, telemetry.OutcomeHit)
		c.remember(ctx, cacheKey, recs)
		return recs, nil
	}

	c.logger.Debug("lookup miss, fetching", "resource", c.resource, "key", key)

	fetched, err := c.fetch(ctx, p)
	if err != nil {
		telemetry.ObserveLookup(c.resource, telemetry.OutcomeFailed)
		return nil, fmt.Errorf("fetching %s: %w", c.resource, err)
	}
	if len(fetched) == 0 {
		telemetry.ObserveLookup(c.resource, telemetry.OutcomeFailed)
		return nil, &provider.NoDataError{Provider: c.resource}
	}

	saved, err := c.store.Save(ctx, fetched)
	if err != nil {
		telemetry.ObserveLookup(c.resource, telemetry.OutcomeFailed)
		return nil, fmt.Errorf("persisting %s: %w", c.resource, err)
	}

	telemetry.ObserveLookup(c.resource, telemetry.OutcomePersisted)
	c.remember(ctx, cacheKey, saved)
	return saved, nil
}

// cached never fails a lookup: a broken cache falls through to the store.
func (c *Coordinator[P, K, R]) cached(ctx context.Context, cacheKey string) ([]R, bool) {
	if c.cache == nil {
		return nil, false
	}
	var recs []R
	ok, err := c.cache.Get(ctx, cacheKey, &recs)
	if err != nil {
		c.logger.Warn("cache get failed", "key", cacheKey, "err", err)
		return nil, false
	}
	if !ok || len(recs) == 0 {
		return nil, false
	}
	return recs, true
}

func (c *Coordinator[P, K, R]) remember(ctx context.Context, cacheKey string, recs []R) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, cacheKey, recs); err != nil {
		c.logger.Warn("cache set failed", "key", cacheKey, "err", err)
	}
}
