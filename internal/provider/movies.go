package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/neexbeast/city-explorer/internal/place"
)

const (
	tmdbDefaultURL = "https://api.themoviedb.org/3/search/movie"
	posterBaseURL  = "https://image.tmdb.org/t/p"
	posterSize     = "w200_and_h300_bestv2"
)

// MovieClient searches films with The Movie Database API.
type MovieClient struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewMovieClient constructs a MovieClient with the given API key.
func NewMovieClient(apiKey string, opts ...Option) *MovieClient {
	s := buildSettings(tmdbDefaultURL, opts)
	return &MovieClient{apiKey: apiKey, baseURL: s.baseURL, http: newHTTPClient("movies", s)}
}

type tmdbResponse struct {
	Results []struct {
		Title       string  `json:"title"`
		Overview    string  `json:"overview"`
		VoteAverage float64 `json:"vote_average"`
		VoteCount   int     `json:"vote_count"`
		PosterPath  string  `json:"poster_path"`
		Popularity  float64 `json:"popularity"`
		ReleaseDate string  `json:"release_date"`
	} `json:"results"`
}

// Fetch returns the films matching the location's search text.
func (c *MovieClient) Fetch(ctx context.Context, loc place.Location) ([]place.Movie, error) {
	endpoint := c.baseURL + "?" + url.Values{
		"api_key": {c.apiKey},
		"query":   {loc.SearchQuery},
	}.Encode()

	var raw tmdbResponse
	if err := c.http.getJSON(ctx, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("movie search for %q: %w", loc.SearchQuery, err)
	}

	if len(raw.Results) == 0 {
		return nil, noData("movies")
	}

	out := make([]place.Movie, 0, len(raw.Results))
	for _, m := range raw.Results {
		out = append(out, place.Movie{
			LocationID:   loc.ID,
			Title:        m.Title,
			Overview:     m.Overview,
			AverageVotes: m.VoteAverage,
			TotalVotes:   m.VoteCount,
			ImageURL:     posterURL(m.PosterPath),
			Popularity:   m.Popularity,
			ReleasedOn:   m.ReleaseDate,
		})
	}
	return out, nil
}

// posterURL joins a TMDB poster path onto the fixed image base and size.
func posterURL(path string) string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return ""
	}
	return posterBaseURL + "/" + posterSize + "/" + path
}
