package provider

import (
	"errors"
	"fmt"
)

// ErrNoData marks a provider response that succeeded but carried no results.
var ErrNoData = errors.New("provider returned no results")

// ProviderError is any failed provider call: transport error, timeout,
// non-2xx status or an undecodable body.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NoDataError is a ProviderError for a structurally empty result set. Callers
// may treat it as "not found" rather than "failed".
type NoDataError struct {
	Provider string
}

func (e *NoDataError) Error() string {
	return e.Provider + ": " + ErrNoData.Error()
}

// Unwrap exposes the failure as a *ProviderError wrapping ErrNoData, so
// errors.As(err, &*ProviderError) and errors.Is(err, ErrNoData) both match.
func (e *NoDataError) Unwrap() error {
	return &ProviderError{Provider: e.Provider, Err: ErrNoData}
}

func noData(name string) error {
	return &NoDataError{Provider: name}
}
