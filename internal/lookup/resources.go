package lookup

import (
	"context"
	"errors"
	"strings"

	"github.com/neexbeast/city-explorer/internal/place"
)

var (
	// ErrEmptyQuery rejects a blank place text before any I/O.
	ErrEmptyQuery = errors.New("empty place query")
	// ErrUnsavedParent rejects a feature lookup whose location has no id yet.
	ErrUnsavedParent = errors.New("parent location is not persisted")
)

// Locations resolves place text to a single stored Location, geocoding on a miss.
type Locations struct {
	c *Coordinator[string, string, place.Location]
}

// NewLocations keys locations by their normalized search text.
func NewLocations(store Store[string, place.Location], fetch FetchFunc[string, place.Location], opts ...Option) *Locations {
	return &Locations{c: New("location", place.NormalizeQuery, store, fetch, opts...)}
}

// Lookup returns the Location for query.
func (l *Locations) Lookup(ctx context.Context, query string) (place.Location, error) {
	if strings.TrimSpace(query) == "" {
		return place.Location{}, ErrEmptyQuery
	}
	locs, err := l.c.Lookup(ctx, query)
	if err != nil {
		return place.Location{}, err
	}
	return locs[0], nil
}

// Feature resolves the records of one kind attached to a stored Location.
type Feature[R any] struct {
	c *Coordinator[place.Location, int64, R]
}

func parentID(l place.Location) int64 { return l.ID }

// NewFeature keys feature records by their parent location id.
func NewFeature[R any](resource string, store Store[int64, R], fetch FetchFunc[place.Location, R], opts ...Option) *Feature[R] {
	return &Feature[R]{c: New(resource, parentID, store, fetch, opts...)}
}

// Lookup returns the records for parent. parent must already be persisted.
func (f *Feature[R]) Lookup(ctx context.Context, parent place.Location) ([]R, error) {
	if parent.ID <= 0 {
		return nil, ErrUnsavedParent
	}
	return f.c.Lookup(ctx, parent)
}
