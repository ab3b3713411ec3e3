package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/city-explorer/internal/place"
	"github.com/neexbeast/city-explorer/internal/telemetry"
)

// Querier abstracts the subset of pgxpool.Pool used by the stores.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// StoreError is any failure reported by the database driver.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrOrphan rejects a feature record without a persisted parent location.
var ErrOrphan = errors.New("record has no parent location id")

// Repository groups the per-table stores behind one connection pool.
type Repository struct {
	Locations   *LocationStore
	Weather     *FeatureStore[place.Weather]
	Restaurants *FeatureStore[place.Restaurant]
	Movies      *FeatureStore[place.Movie]
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return NewRepositoryWithQuerier(pool)
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{
		Locations:   &LocationStore{q: q},
		Weather:     NewFeatureStore(q, WeatherTable),
		Restaurants: NewFeatureStore(q, RestaurantTable),
		Movies:      NewFeatureStore(q, MovieTable),
	}
}

// ---- locations ----

// LocationStore reads and writes geocoded locations keyed by their
// normalized search text.
type LocationStore struct {
	q Querier
}

const locationColumns = `id, search_query, formatted_query, latitude, longitude`

func scanLocation(row pgx.Row) (place.Location, error) {
	var l place.Location
	err := row.Scan(&l.ID, &l.SearchQuery, &l.FormattedQuery, &l.Latitude, &l.Longitude)
	return l, err
}

// Find returns the location stored under key, or an empty slice.
func (s *LocationStore) Find(ctx context.Context, key string) (locs []place.Location, err error) {
	start := time.Now()
	defer func() { telemetry.ObserveStore("select", "locations", start, err) }()

	const q = `SELECT ` + locationColumns + ` FROM locations WHERE search_key = $1`

	l, err := scanLocation(s.q.QueryRow(ctx, q, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []place.Location{}, nil
		}
		return nil, &StoreError{Op: "select", Table: "locations", Err: err}
	}
	return []place.Location{l}, nil
}

// ByID returns the location with the given id. Returns nil, nil when it does not exist.
func (s *LocationStore) ByID(ctx context.Context, id int64) (_ *place.Location, err error) {
	start := time.Now()
	defer func() { telemetry.ObserveStore("select", "locations", start, err) }()

	const q = `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	l, err := scanLocation(s.q.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &StoreError{Op: "select", Table: "locations", Err: err}
	}
	return &l, nil
}

// Save inserts each location and returns them with their assigned ids. A
// location whose normalized search text is already stored is not inserted
// again; the stored row is returned in its place.
func (s *LocationStore) Save(ctx context.Context, locs []place.Location) ([]place.Location, error) {
	out := make([]place.Location, 0, len(locs))
	for _, l := range locs {
		saved, err := s.insert(ctx, l)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}

func (s *LocationStore) insert(ctx context.Context, l place.Location) (_ place.Location, err error) {
	start := time.Now()
	defer func() { telemetry.ObserveStore("insert", "locations", start, err) }()

	const q = `
		INSERT INTO locations (search_query, search_key, formatted_query, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (search_key) DO NOTHING
		RETURNING id`

	key := place.NormalizeQuery(l.SearchQuery)
	err = s.q.QueryRow(ctx, q, l.SearchQuery, key, l.FormattedQuery, l.Latitude, l.Longitude).Scan(&l.ID)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return place.Location{}, &StoreError{Op: "insert", Table: "locations", Err: err}
	}

	// Lost a race on search_key: hand back the row that won.
	existing, err := s.Find(ctx, key)
	if err != nil {
		return place.Location{}, err
	}
	if len(existing) == 0 {
		return place.Location{}, &StoreError{Op: "insert", Table: "locations", Err: fmt.Errorf("conflicting row for %q vanished", key)}
	}
	return existing[0], nil
}

// ---- features ----

// FeatureStore reads and writes one feature table keyed by location_id.
type FeatureStore[T any] struct {
	q     Querier
	table Table[T]
}

// NewFeatureStore binds a Table mapping to a Querier.
func NewFeatureStore[T any](q Querier, t Table[T]) *FeatureStore[T] {
	return &FeatureStore[T]{q: q, table: t}
}

// Find returns every row stored for the location, in insertion order.
func (s *FeatureStore[T]) Find(ctx context.Context, locationID int64) (recs []T, err error) {
	start := time.Now()
	defer func() { telemetry.ObserveStore("select", s.table.Name, start, err) }()

	rows, err := s.q.Query(ctx, s.table.selectByLocation(), locationID)
	if err != nil {
		return nil, &StoreError{Op: "select", Table: s.table.Name, Err: err}
	}
	defer rows.Close()

	recs = []T{}
	for rows.Next() {
		r, err := s.table.Scan(rows)
		if err != nil {
			return nil, &StoreError{Op: "select", Table: s.table.Name, Err: fmt.Errorf("scanning row: %w", err)}
		}
		recs = append(recs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "select", Table: s.table.Name, Err: fmt.Errorf("iterating rows: %w", err)}
	}

	return recs, nil
}

// Save writes all records with a single COPY statement, so either every
// record is stored or none is.
func (s *FeatureStore[T]) Save(ctx context.Context, recs []T) (_ []T, err error) {
	if len(recs) == 0 {
		return recs, nil
	}

	start := time.Now()
	defer func() { telemetry.ObserveStore("insert", s.table.Name, start, err) }()

	for _, r := range recs {
		if s.table.Parent(r) <= 0 {
			return nil, &StoreError{Op: "insert", Table: s.table.Name, Err: ErrOrphan}
		}
	}

	src := pgx.CopyFromSlice(len(recs), func(i int) ([]any, error) {
		return s.table.Values(recs[i]), nil
	})

	n, err := s.q.CopyFrom(ctx, pgx.Identifier{s.table.Name}, s.table.Columns, src)
	if err != nil {
		return nil, &StoreError{Op: "insert", Table: s.table.Name, Err: err}
	}
	if n != int64(len(recs)) {
		return nil, &StoreError{Op: "insert", Table: s.table.Name, Err: fmt.Errorf("copied %d of %d rows", n, len(recs))}
	}

	return recs, nil
}
