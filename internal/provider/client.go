// Package provider adapts the third-party APIs (geocoding, forecast, business
// search, movie search) into place records. Adapters only talk to the network;
// persisting what they return is the lookup coordinator's job.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/neexbeast/city-explorer/internal/telemetry"
)

const defaultTimeout = 10 * time.Second

// Option configures a provider client.
type Option func(*settings)

type settings struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// WithBaseURL points the client at a different endpoint (used by tests and staging).
func WithBaseURL(raw string) Option {
	return func(s *settings) { s.baseURL = raw }
}

// WithTimeout bounds every call made by the client.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client. Its Timeout is overridden
// by WithTimeout when both are given.
func WithHTTPClient(h *http.Client) Option {
	return func(s *settings) { s.client = h }
}

func buildSettings(defaultURL string, opts []Option) settings {
	s := settings{baseURL: defaultURL, timeout: defaultTimeout}
	for _, o := range opts {
		o(&s)
	}
	return s
}

// httpClient performs JSON GETs for a single provider behind a circuit breaker.
type httpClient struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newHTTPClient(name string, s settings) *httpClient {
	hc := &http.Client{Timeout: s.timeout}
	if s.client != nil {
		cp := *s.client
		cp.Timeout = s.timeout
		hc = &cp
	}

	return &httpClient{
		name:   name,
		client: hc,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !isOutage(err)
			},
		}),
	}
}

// isOutage reports whether err says the provider is unhealthy. Rejections of
// the caller's input (4xx other than 429), empty results and the caller's own
// cancellation do not count toward opening the breaker.
func isOutage(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoData) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode >= 400 && pe.StatusCode < 500 {
		return pe.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// getJSON performs a GET and decodes the JSON body into dst. Every failure is
// returned as a *ProviderError; the request URL is never part of the error
// text because it may carry an API key.
func (c *httpClient) getJSON(ctx context.Context, rawURL string, header http.Header, dst any) (err error) {
	start := time.Now()
	defer func() { telemetry.ObserveProvider(c.name, start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &ProviderError{Provider: c.name, Err: fmt.Errorf("building request: %w", err)}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	_, err = c.breaker.Execute(func() (interface{}, error) {
		resp, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, &ProviderError{Provider: c.name, Err: stripURL(doErr)}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, &ProviderError{
				Provider:   c.name,
				StatusCode: resp.StatusCode,
				Err:        errors.New(http.StatusText(resp.StatusCode)),
			}
		}

		if decErr := json.NewDecoder(resp.Body).Decode(dst); decErr != nil {
			return nil, &ProviderError{Provider: c.name, Err: fmt.Errorf("decoding response: %w", decErr)}
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &ProviderError{Provider: c.name, Err: fmt.Errorf("circuit open: %w", err)}
	}
	return err
}

// stripURL drops the request URL from a transport error.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
