package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/neexbeast/city-explorer/internal/place"
)

const yelpDefaultURL = "https://api.yelp.com/v3/businesses/search"

var errMissingCredential = errors.New("missing API credential")

// YelpClient searches businesses with the Yelp Fusion API.
type YelpClient struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewYelpClient constructs a YelpClient authenticating with a bearer token.
func NewYelpClient(apiKey string, opts ...Option) *YelpClient {
	s := buildSettings(yelpDefaultURL, opts)
	return &YelpClient{apiKey: apiKey, baseURL: s.baseURL, http: newHTTPClient("yelp", s)}
}

type yelpResponse struct {
	Businesses []struct {
		Name     string  `json:"name"`
		ImageURL string  `json:"image_url"`
		Price    string  `json:"price"`
		Rating   float64 `json:"rating"`
		URL      string  `json:"url"`
	} `json:"businesses"`
}

// Fetch returns the businesses found for the location's search text.
func (c *YelpClient) Fetch(ctx context.Context, loc place.Location) ([]place.Restaurant, error) {
	if c.apiKey == "" {
		return nil, &ProviderError{Provider: "yelp", Err: errMissingCredential}
	}

	endpoint := c.baseURL + "?" + url.Values{"location": {loc.SearchQuery}}.Encode()
	header := http.Header{"Authorization": {"Bearer " + c.apiKey}}

	var raw yelpResponse
	if err := c.http.getJSON(ctx, endpoint, header, &raw); err != nil {
		return nil, fmt.Errorf("business search for %q: %w", loc.SearchQuery, err)
	}

	if len(raw.Businesses) == 0 {
		return nil, noData("yelp")
	}

	out := make([]place.Restaurant, 0, len(raw.Businesses))
	for _, b := range raw.Businesses {
		out = append(out, place.Restaurant{
			LocationID: loc.ID,
			Name:       b.Name,
			ImageURL:   b.ImageURL,
			Price:      b.Price,
			Rating:     b.Rating,
			URL:        b.URL,
		})
	}
	return out, nil
}
