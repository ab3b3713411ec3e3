package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/city-explorer/internal/place"
)

// failureMessage is the only error body callers ever see.
const failureMessage = "Sorry, something went wrong."

var (
	errMissingParent  = errors.New("request names no location id or search_query")
	errUnknownParent  = errors.New("location id is not stored")
	errMalformedQuery = errors.New("malformed data parameter")
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	locations   LocationLookup
	finder      LocationFinder
	weather     FeatureLookup[place.Weather]
	restaurants FeatureLookup[place.Restaurant]
	movies      FeatureLookup[place.Movie]
	log         *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(
	locations LocationLookup,
	finder LocationFinder,
	weather FeatureLookup[place.Weather],
	restaurants FeatureLookup[place.Restaurant],
	movies FeatureLookup[place.Movie],
	log *slog.Logger,
) *Handlers {
	return &Handlers{
		locations:   locations,
		finder:      finder,
		weather:     weather,
		restaurants: restaurants,
		movies:      movies,
		log:         log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFailure logs err and answers with the generic failure response.
func (h *Handlers) writeFailure(w http.ResponseWriter, r *http.Request, resource string, err error) {
	h.log.Error("request failed",
		"resource", resource,
		"request_id", middleware.GetReqID(r.Context()),
		"err", err,
	)
	writePlain(w, http.StatusInternalServerError, failureMessage)
}

// writePlain writes a fixed text/plain body with the given status code.
func writePlain(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// GetLocation handles GET /location?data=<place text>.
func (h *Handlers) GetLocation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("data")
	if query == "" {
		query = q.Get("data[search_query]")
	}

	loc, err := h.locations.Lookup(r.Context(), query)
	if err != nil {
		h.writeFailure(w, r, "location", err)
		return
	}

	writeJSON(w, http.StatusOK, loc)
}

// GetWeather handles GET /weather.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	serveFeature(h, w, r, "weather", h.weather)
}

// GetRestaurants handles GET /yelp.
func (h *Handlers) GetRestaurants(w http.ResponseWriter, r *http.Request) {
	serveFeature(h, w, r, "restaurants", h.restaurants)
}

// GetMovies handles GET /movies.
func (h *Handlers) GetMovies(w http.ResponseWriter, r *http.Request) {
	serveFeature(h, w, r, "movies", h.movies)
}

func serveFeature[R any](h *Handlers, w http.ResponseWriter, r *http.Request, resource string, f FeatureLookup[R]) {
	ref, err := parseParent(r.URL.Query())
	if err != nil {
		h.writeFailure(w, r, resource, err)
		return
	}

	parent, err := h.resolveParent(r.Context(), ref)
	if err != nil {
		h.writeFailure(w, r, resource, err)
		return
	}

	recs, err := f.Lookup(r.Context(), parent)
	if err != nil {
		h.writeFailure(w, r, resource, err)
		return
	}

	writeJSON(w, http.StatusOK, recs)
}

// parentRef is what a feature request says about its location. Caller-sent
// coordinates are accepted but ignored; the stored row is authoritative.
type parentRef struct {
	ID          int64  `json:"id"`
	SearchQuery string `json:"search_query"`
}

// parseParent reads either bracket notation (data[id]=7&data[search_query]=x)
// or a JSON object in data. A bare data value is taken as place text.
func parseParent(q url.Values) (parentRef, error) {
	var ref parentRef

	if raw := strings.TrimSpace(q.Get("data")); raw != "" {
		if !strings.HasPrefix(raw, "{") {
			ref.SearchQuery = raw
			return ref, nil
		}
		var body struct {
			ID          json.RawMessage `json:"id"`
			SearchQuery string          `json:"search_query"`
		}
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			return ref, fmt.Errorf("%w: %v", errMalformedQuery, err)
		}
		ref.SearchQuery = body.SearchQuery
		if len(body.ID) > 0 && string(body.ID) != "null" {
			id, err := parseID(strings.Trim(string(body.ID), `"`))
			if err != nil {
				return ref, err
			}
			ref.ID = id
		}
		return ref, nil
	}

	ref.SearchQuery = q.Get("data[search_query]")
	if raw := q.Get("data[id]"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return ref, err
		}
		ref.ID = id
	}
	return ref, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", errMalformedQuery, raw)
	}
	return id, nil
}

// resolveParent loads the stored Location a feature request refers to. An id
// wins over place text; place text goes through the location lookup, which
// geocodes and persists it first when needed.
func (h *Handlers) resolveParent(ctx context.Context, ref parentRef) (place.Location, error) {
	if ref.ID > 0 {
		loc, err := h.finder.ByID(ctx, ref.ID)
		if err != nil {
			return place.Location{}, err
		}
		if loc == nil {
			return place.Location{}, fmt.Errorf("%w: %d", errUnknownParent, ref.ID)
		}
		return *loc, nil
	}
	if strings.TrimSpace(ref.SearchQuery) != "" {
		return h.locations.Lookup(ctx, ref.SearchQuery)
	}
	return place.Location{}, errMissingParent
}

// Pinger is anything health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity in parallel. redis may be nil when the row cache is disabled.
func HealthHandlerFunc(db Pinger, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "ok"
		redisStatus := "disabled"

		var g errgroup.Group
		g.Go(func() error {
			if err := db.Ping(ctx); err != nil {
				log.Error("health check: db ping failed", "err", err)
				dbStatus = "error"
			}
			return nil
		})
		if redis != nil {
			redisStatus = "ok"
			g.Go(func() error {
				if err := redis.Ping(ctx); err != nil {
					log.Error("health check: redis ping failed", "err", err)
					redisStatus = "error"
				}
				return nil
			})
		}
		_ = g.Wait()

		status, overall := http.StatusOK, "ok"
		if dbStatus == "error" || redisStatus == "error" {
			status, overall = http.StatusServiceUnavailable, "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
