// Package place holds the records served by the explorer: a geocoded Location
// and the Weather, Restaurant and Movie entries attached to it.
package place

import "strings"

// Location is a geocoded place. ID is assigned by the store on insert.
type Location struct {
	ID             int64   `json:"id"`
	SearchQuery    string  `json:"search_query"`
	FormattedQuery string  `json:"formatted_query"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
}

// Weather is one forecast day for a location.
type Weather struct {
	LocationID int64  `json:"location_id"`
	Forecast   string `json:"forecast"`
	Time       string `json:"time"`
}

// Restaurant is a business near a location.
type Restaurant struct {
	LocationID int64   `json:"location_id"`
	Name       string  `json:"name"`
	ImageURL   string  `json:"image_url"`
	Price      string  `json:"price"`
	Rating     float64 `json:"rating"`
	URL        string  `json:"url"`
}

// Movie is a film matching a location's search text.
type Movie struct {
	LocationID   int64   `json:"location_id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	AverageVotes float64 `json:"average_votes"`
	TotalVotes   int     `json:"total_votes"`
	ImageURL     string  `json:"image_url"`
	Popularity   float64 `json:"popularity"`
	ReleasedOn   string  `json:"released_on"`
}

// NormalizeQuery returns the natural key for a place search: trimmed,
// inner whitespace collapsed and lower-cased.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// DateLayout renders forecast days as calendar dates, e.g. "Tue Oct 17 2026".
const DateLayout = "Mon Jan 02 2006"
