package storage

import (
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/neexbeast/city-explorer/internal/place"
)

// Table maps a feature record onto its table. Columns, Values and Scan must
// agree on order; the first column is always location_id.
type Table[T any] struct {
	Name    string
	Columns []string
	Values  func(T) []any
	Scan    func(row pgx.Row) (T, error)
	Parent  func(T) int64
}

func (t Table[T]) selectByLocation() string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
	}
	return "SELECT " + strings.Join(cols, ", ") +
		" FROM " + pgx.Identifier{t.Name}.Sanitize() +
		" WHERE location_id = $1 ORDER BY id"
}

// WeatherTable stores forecast days.
var WeatherTable = Table[place.Weather]{
	Name:    "weathers",
	Columns: []string{"location_id", "forecast", "time"},
	Values: func(w place.Weather) []any {
		return []any{w.LocationID, w.Forecast, w.Time}
	},
	Scan: func(row pgx.Row) (place.Weather, error) {
		var w place.Weather
		err := row.Scan(&w.LocationID, &w.Forecast, &w.Time)
		return w, err
	},
	Parent: func(w place.Weather) int64 { return w.LocationID },
}

// RestaurantTable stores business search results.
var RestaurantTable = Table[place.Restaurant]{
	Name:    "yelps",
	Columns: []string{"location_id", "name", "image_url", "price", "rating", "url"},
	Values: func(r place.Restaurant) []any {
		return []any{r.LocationID, r.Name, r.ImageURL, r.Price, r.Rating, r.URL}
	},
	Scan: func(row pgx.Row) (place.Restaurant, error) {
		var r place.Restaurant
		err := row.Scan(&r.LocationID, &r.Name, &r.ImageURL, &r.Price, &r.Rating, &r.URL)
		return r, err
	},
	Parent: func(r place.Restaurant) int64 { return r.LocationID },
}

// MovieTable stores movie search results.
var MovieTable = Table[place.Movie]{
	Name: "movies",
	Columns: []string{
		"location_id", "title", "overview", "average_votes", "total_votes",
		"image_url", "popularity", "released_on",
	},
	Values: func(m place.Movie) []any {
		return []any{
			m.LocationID, m.Title, m.Overview, m.AverageVotes, m.TotalVotes,
			m.ImageURL, m.Popularity, m.ReleasedOn,
		}
	},
	Scan: func(row pgx.Row) (place.Movie, error) {
		var m place.Movie
		err := row.Scan(
			&m.LocationID, &m.Title, &m.Overview, &m.AverageVotes, &m.TotalVotes,
			&m.ImageURL, &m.Popularity, &m.ReleasedOn,
		)
		return m, err
	},
	Parent: func(m place.Movie) int64 { return m.LocationID },
}
