package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/neexbeast/city-explorer/internal/place"
)

const darkSkyDefaultURL = "https://api.darksky.net/forecast"

// WeatherClient fetches daily forecasts from a Dark Sky compatible API.
type WeatherClient struct {
	apiKey  string
	baseURL string
	http    *httpClient
}

// NewWeatherClient constructs a WeatherClient with the given API key.
func NewWeatherClient(apiKey string, opts ...Option) *WeatherClient {
	s := buildSettings(darkSkyDefaultURL, opts)
	return &WeatherClient{apiKey: apiKey, baseURL: s.baseURL, http: newHTTPClient("weather", s)}
}

type darkSkyResponse struct {
	Daily struct {
		Data []struct {
			Summary string `json:"summary"`
			Time    int64  `json:"time"`
		} `json:"data"`
	} `json:"daily"`
}

// Fetch returns one Weather per forecast day at the location's coordinates,
// each tagged with the location's id.
func (c *WeatherClient) Fetch(ctx context.Context, loc place.Location) ([]place.Weather, error) {
	endpoint := fmt.Sprintf("%s/%s/%s,%s",
		c.baseURL,
		url.PathEscape(c.apiKey),
		strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		strconv.FormatFloat(loc.Longitude, 'f', -1, 64),
	)

	var raw darkSkyResponse
	if err := c.http.getJSON(ctx, endpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("forecast for location %d: %w", loc.ID, err)
	}

	if len(raw.Daily.Data) == 0 {
		return nil, noData("weather")
	}

	days := make([]place.Weather, 0, len(raw.Daily.Data))
	for _, d := range raw.Daily.Data {
		days = append(days, place.Weather{
			LocationID: loc.ID,
			Forecast:   d.Summary,
			Time:       time.Unix(d.Time, 0).UTC().Format(place.DateLayout),
		})
	}
	return days, nil
}
