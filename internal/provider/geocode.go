package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/neexbeast/city-explorer/internal/place"
)

const geocodeDefaultURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Geocoder resolves free-text place queries through the Google Geocoding API.
type Geocoder struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewGeocoder constructs a Geocoder with the given API key.
func NewGeocoder(apiKey string, opts ...Option) *Geocoder {
	s := buildSettings(geocodeDefaultURL, opts)
	return &Geocoder{apiKey: apiKey, baseURL: s.baseURL, http: newHTTPClient("geocode", s)}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Fetch geocodes query and returns a single Location built from the first
// result. The Location's SearchQuery is query exactly as given; ID is zero
// until the location is stored.
func (g *Geocoder) Fetch(ctx context.Context, query string) ([]place.Location, error) {
	endpoint := g.baseURL + "?" + url.Values{
		"address": {query},
		"key":     {g.apiKey},
	}.Encode()

	var raw geocodeResponse
	if err := g.http.getJSON(ctx, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("geocoding %q: %w", query, err)
	}

	switch raw.Status {
	case "", "OK", "ZERO_RESULTS":
	default:
		return nil, &ProviderError{Provider: "geocode", Err: errors.New(raw.Status)}
	}

	if len(raw.Results) == 0 {
		return nil, noData("geocode")
	}

	first := raw.Results[0]
	return []place.Location{{
		SearchQuery:    query,
		FormattedQuery: first.FormattedAddress,
		Latitude:       first.Geometry.Location.Lat,
		Longitude:      first.Geometry.Location.Lng,
	}}, nil
}
