package lookup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/city-explorer/internal/cache"
	"github.com/neexbeast/city-explorer/internal/lookup"
	"github.com/neexbeast/city-explorer/internal/place"
	"github.com/neexbeast/city-explorer/internal/provider"
	"github.com/neexbeast/city-explorer/internal/storage"
)

// ---- fakes ----

type locationStore struct {
	mu      sync.Mutex
	rows    map[string]place.Location
	nextID  int64
	finds   int
	saves   int
	findErr error
	saveErr error
}

func newLocationStore() *locationStore {
	return &locationStore{rows: map[string]place.Location{}}
}

func (s *locationStore) Find(_ context.Context, key string) ([]place.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if l, ok := s.rows[key]; ok {
		return []place.Location{l}, nil
	}
	return []place.Location{}, nil
}

func (s *locationStore) Save(_ context.Context, locs []place.Location) ([]place.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	out := make([]place.Location, 0, len(locs))
	for _, l := range locs {
		key := place.NormalizeQuery(l.SearchQuery)
		if existing, ok := s.rows[key]; ok {
			out = append(out, existing)
			continue
		}
		s.nextID++
		l.ID = s.nextID
		s.rows[key] = l
		out = append(out, l)
	}
	return out, nil
}

type weatherStore struct {
	mu    sync.Mutex
	rows  map[int64][]place.Weather
	saves int
}

func (s *weatherStore) Find(_ context.Context, id int64) ([]place.Weather, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]place.Weather{}, s.rows[id]...), nil
}

func (s *weatherStore) Save(_ context.Context, recs []place.Weather) ([]place.Weather, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.rows == nil {
		s.rows = map[int64][]place.Weather{}
	}
	for _, r := range recs {
		s.rows[r.LocationID] = append(s.rows[r.LocationID], r)
	}
	return recs, nil
}

type geocodeStub struct {
	calls atomic.Int32
	err   error
	empty bool
	delay time.Duration
}

func (g *geocodeStub) Fetch(_ context.Context, query string) ([]place.Location, error) {
	g.calls.Add(1)
	if g.delay > 0 {
		time.Sleep(g.delay)
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.empty {
		return nil, nil
	}
	return []place.Location{{SearchQuery: query, FormattedQuery: "Seattle, WA, USA", Latitude: 47.6, Longitude: -122.3}}, nil
}

func forecast(days int) lookup.FetchFunc[place.Location, place.Weather] {
	return func(_ context.Context, loc place.Location) ([]place.Weather, error) {
		out := make([]place.Weather, 0, days)
		for i := 0; i < days; i++ {
			out = append(out, place.Weather{LocationID: loc.ID, Forecast: fmt.Sprintf("day %d", i), Time: "Sat Oct 20 2018"})
		}
		return out, nil
	}
}

// ---- locations ----

func TestLocations_MissFetchesAndPersistsOnce(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{}
	locs := lookup.NewLocations(store, geo.Fetch)

	loc, err := locs.Lookup(context.Background(), "seattle")
	require.NoError(t, err)

	assert.Equal(t, place.Location{ID: 1, SearchQuery: "seattle", FormattedQuery: "Seattle, WA, USA", Latitude: 47.6, Longitude: -122.3}, loc)
	assert.EqualValues(t, 1, geo.calls.Load())
	assert.Equal(t, 1, store.saves)
}

func TestLocations_HitSkipsProvider(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{}
	locs := lookup.NewLocations(store, geo.Fetch)
	ctx := context.Background()

	first, err := locs.Lookup(ctx, "seattle")
	require.NoError(t, err)
	second, err := locs.Lookup(ctx, "  Seattle ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, geo.calls.Load(), "second lookup must not call the provider")
	assert.Equal(t, 1, store.saves)
}

func TestLocations_EmptyQuery(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{}
	locs := lookup.NewLocations(store, geo.Fetch)

	_, err := locs.Lookup(context.Background(), "   ")
	require.ErrorIs(t, err, lookup.ErrEmptyQuery)
	assert.Zero(t, geo.calls.Load())
	assert.Zero(t, store.finds)
}

func TestLocations_NoDataWritesNothing(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{err: &provider.NoDataError{Provider: "geocode"}}
	locs := lookup.NewLocations(store, geo.Fetch)

	_, err := locs.Lookup(context.Background(), "atlantis")
	require.Error(t, err)

	var nd *provider.NoDataError
	assert.True(t, errors.As(err, &nd))
	assert.Zero(t, store.saves)
}

func TestLocations_EmptyFetchIsNoData(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{empty: true}
	locs := lookup.NewLocations(store, geo.Fetch)

	_, err := locs.Lookup(context.Background(), "atlantis")
	require.ErrorIs(t, err, provider.ErrNoData)

	var pe *provider.ProviderError
	assert.True(t, errors.As(err, &pe))
	assert.Zero(t, store.saves)
}

func TestLocations_ProviderFailureWritesNothing(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{err: &provider.ProviderError{Provider: "geocode", StatusCode: 503, Err: errors.New("unavailable")}}
	locs := lookup.NewLocations(store, geo.Fetch)

	_, err := locs.Lookup(context.Background(), "seattle")
	require.Error(t, err)

	var pe *provider.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 503, pe.StatusCode)
	assert.Zero(t, store.saves)
	assert.Empty(t, store.rows)
}

func TestLocations_FindErrorPropagatesAsStoreError(t *testing.T) {
	store := newLocationStore()
	store.findErr = &storage.StoreError{Op: "select", Table: "locations", Err: errors.New("connection refused")}
	geo := &geocodeStub{}
	locs := lookup.NewLocations(store, geo.Fetch)

	_, err := locs.Lookup(context.Background(), "seattle")

	var se *storage.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "select", se.Op)
	assert.Zero(t, geo.calls.Load())
}

func TestLocations_SaveErrorPropagatesAsStoreError(t *testing.T) {
	store := newLocationStore()
	store.saveErr = &storage.StoreError{Op: "insert", Table: "locations", Err: errors.New("connection reset")}
	geo := &geocodeStub{}
	locs := lookup.NewLocations(store, geo.Fetch)

	_, err := locs.Lookup(context.Background(), "seattle")

	var se *storage.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)

	var pe *provider.ProviderError
	assert.False(t, errors.As(err, &pe), "a store outage must not look like a provider failure")
}

func TestLocations_ConcurrentMissesFetchOnce(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{delay: 20 * time.Millisecond}
	locs := lookup.NewLocations(store, geo.Fetch)

	const n = 10
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			loc, err := locs.Lookup(context.Background(), "seattle")
			assert.NoError(t, err)
			ids[i] = loc.ID
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, geo.calls.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestLocations_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := newLocationStore()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context, query string) ([]place.Location, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []place.Location{{SearchQuery: query, FormattedQuery: "Seattle, WA, USA", Latitude: 47.6, Longitude: -122.3}}, nil
	}
	locs := lookup.NewLocations(store, fetch)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := locs.Lookup(ctxA, "seattle")
		errA <- err
	}()
	<-started

	type result struct {
		loc place.Location
		err error
	}
	resB := make(chan result, 1)
	go func() {
		loc, err := locs.Lookup(context.Background(), "seattle")
		resB <- result{loc, err}
	}()

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)
	close(release)

	b := <-resB
	require.NoError(t, b.err, "a live caller must not inherit another caller's cancellation")
	assert.EqualValues(t, 1, b.loc.ID)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, store.saves)
}

// ---- features ----

func TestFeature_MissStoresEveryDay(t *testing.T) {
	store := &weatherStore{}
	weather := lookup.NewFeature[place.Weather]("weather", store, forecast(8))

	days, err := weather.Lookup(context.Background(), place.Location{ID: 7})
	require.NoError(t, err)

	require.Len(t, days, 8)
	for _, d := range days {
		assert.EqualValues(t, 7, d.LocationID)
	}
	assert.Equal(t, 1, store.saves)
}

func TestFeature_HitSkipsProvider(t *testing.T) {
	store := &weatherStore{}
	var calls int
	fetch := func(ctx context.Context, loc place.Location) ([]place.Weather, error) {
		calls++
		return forecast(3)(ctx, loc)
	}
	weather := lookup.NewFeature[place.Weather]("weather", store, fetch)
	ctx := context.Background()

	_, err := weather.Lookup(ctx, place.Location{ID: 7})
	require.NoError(t, err)
	days, err := weather.Lookup(ctx, place.Location{ID: 7})
	require.NoError(t, err)

	assert.Len(t, days, 3)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, store.saves)
}

func TestFeature_UnsavedParent(t *testing.T) {
	store := &weatherStore{}
	var calls int
	fetch := func(context.Context, place.Location) ([]place.Weather, error) {
		calls++
		return nil, nil
	}
	weather := lookup.NewFeature[place.Weather]("weather", store, fetch)

	_, err := weather.Lookup(context.Background(), place.Location{SearchQuery: "seattle"})
	require.ErrorIs(t, err, lookup.ErrUnsavedParent)
	assert.Zero(t, calls)
}

func TestFeature_EmptyResultWritesNothing(t *testing.T) {
	store := &weatherStore{}
	weather := lookup.NewFeature[place.Weather]("weather", store, forecast(0))

	_, err := weather.Lookup(context.Background(), place.Location{ID: 7})
	require.ErrorIs(t, err, provider.ErrNoData)
	assert.Zero(t, store.saves)
}

func TestFeature_ResultIsCallerOwned(t *testing.T) {
	store := &weatherStore{}
	weather := lookup.NewFeature[place.Weather]("weather", store, forecast(2))
	ctx := context.Background()

	days, err := weather.Lookup(ctx, place.Location{ID: 7})
	require.NoError(t, err)
	days[0].Forecast = "changed"

	again, err := weather.Lookup(ctx, place.Location{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, "day 0", again[0].Forecast)
}

// ---- row cache ----

func newRowCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewCache(client, time.Hour)
}

func TestLocations_CacheHitSkipsStore(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{}
	locs := lookup.NewLocations(store, geo.Fetch, lookup.WithCache(newRowCache(t)))
	ctx := context.Background()

	first, err := locs.Lookup(ctx, "seattle")
	require.NoError(t, err)
	findsAfterMiss := store.finds

	second, err := locs.Lookup(ctx, "SEATTLE")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, findsAfterMiss, store.finds, "cached lookup must not touch the store")
	assert.EqualValues(t, 1, geo.calls.Load())
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenCache) Set(context.Context, string, any) error { return errors.New("redis down") }

func TestLocations_BrokenCacheFallsThrough(t *testing.T) {
	store := newLocationStore()
	geo := &geocodeStub{}
	locs := lookup.NewLocations(store, geo.Fetch, lookup.WithCache(brokenCache{}))

	loc, err := locs.Lookup(context.Background(), "seattle")
	require.NoError(t, err)
	assert.EqualValues(t, 1, loc.ID)
}
