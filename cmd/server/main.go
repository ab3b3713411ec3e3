package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neexbeast/city-explorer/internal/api"
	"github.com/neexbeast/city-explorer/internal/cache"
	"github.com/neexbeast/city-explorer/internal/config"
	"github.com/neexbeast/city-explorer/internal/lookup"
	"github.com/neexbeast/city-explorer/internal/place"
	"github.com/neexbeast/city-explorer/internal/provider"
	"github.com/neexbeast/city-explorer/internal/storage"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Run migrations.
	applied, err := storage.RunMigrations(ctx, pool, storage.Migrations())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied", "count", applied)

	// Redis is optional; without it lookups go straight to the store.
	var (
		lookupOpts = []lookup.Option{lookup.WithLogger(log)}
		redisPing  api.Pinger
	)
	if cfg.HasRedis() {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		rowCache := cache.NewCache(redisClient, cfg.CacheTTL)
		lookupOpts = append(lookupOpts, lookup.WithCache(rowCache))
		redisPing = rowCache
	} else {
		log.Info("REDIS_URL not set, row cache disabled")
	}

	// Wire dependencies.
	repo := storage.NewRepository(pool)
	p := cfg.Providers

	geocoder := provider.NewGeocoder(p.GeocodeKey, providerOpts(p.GeocodeURL, p.Timeout)...)
	weatherClient := provider.NewWeatherClient(p.WeatherKey, providerOpts(p.WeatherURL, p.Timeout)...)
	yelpClient := provider.NewYelpClient(p.YelpKey, providerOpts(p.YelpURL, p.Timeout)...)
	movieClient := provider.NewMovieClient(p.MoviesKey, providerOpts(p.MoviesURL, p.Timeout)...)

	locations := lookup.NewLocations(repo.Locations, geocoder.Fetch, lookupOpts...)
	weather := lookup.NewFeature[place.Weather]("weather", repo.Weather, weatherClient.Fetch, lookupOpts...)
	restaurants := lookup.NewFeature[place.Restaurant]("restaurants", repo.Restaurants, yelpClient.Fetch, lookupOpts...)
	movies := lookup.NewFeature[place.Movie]("movies", repo.Movies, movieClient.Fetch, lookupOpts...)

	handlers := api.NewHandlers(locations, repo.Locations, weather, restaurants, movies, log)
	router := api.NewRouter(handlers, api.RouterConfig{Token: cfg.APIToken, RateLimit: cfg.RateLimit}, pool, redisPing, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*p.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port, "auth", cfg.APIToken != "")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

func providerOpts(baseURL string, timeout time.Duration) []provider.Option {
	opts := []provider.Option{provider.WithTimeout(timeout)}
	if baseURL != "" {
		opts = append(opts, provider.WithBaseURL(baseURL))
	}
	return opts
}
