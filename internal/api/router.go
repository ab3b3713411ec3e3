package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the knobs the router reads from configuration.
type RouterConfig struct {
	// Token enables bearer auth on the data routes when non-empty.
	Token string
	// RateLimit is the number of requests allowed per IP per minute.
	RateLimit int
}

// NewRouter builds and returns the Chi router with all routes configured.
// Health and metrics are unauthenticated. redis may be nil.
func NewRouter(handlers *Handlers, cfg RouterConfig, db Pinger, redis Pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(Recoverer(log))
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))

	r.Get("/health", HealthHandlerFunc(db, redis, log))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if cfg.Token != "" {
			r.Use(BearerAuth(cfg.Token))
		}
		r.Get("/location", handlers.GetLocation)
		r.Get("/weather", handlers.GetWeather)
		r.Get("/yelp", handlers.GetRestaurants)
		r.Get("/movies", handlers.GetMovies)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
