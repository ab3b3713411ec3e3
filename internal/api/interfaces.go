package api

import (
	"context"

	"github.com/neexbeast/city-explorer/internal/place"
)

// LocationLookup resolves place text to a stored Location, geocoding on a miss.
type LocationLookup interface {
	Lookup(ctx context.Context, query string) (place.Location, error)
}

// LocationFinder reads an already stored Location by id. Returns nil, nil when absent.
type LocationFinder interface {
	ByID(ctx context.Context, id int64) (*place.Location, error)
}

// FeatureLookup resolves the records of one kind for a stored Location.
type FeatureLookup[R any] interface {
	Lookup(ctx context.Context, parent place.Location) ([]R, error)
}
