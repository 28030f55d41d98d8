package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ringline-ai/ringline/internal/observe"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] fails or
// sits behind an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the per-backend breaker template; each backend gets
	// its own breaker named after it.
	CircuitBreaker CircuitBreakerConfig

	// Kind labels provider request and error metrics, e.g. "dialogue" or
	// "tts". Set by the typed wrappers.
	Kind string

	// Metrics overrides the metrics instance. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// fallbackEntry pairs a backend with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup chains a primary and zero or more fallback backends of one
// provider type. A turn's work runs against the first backend whose breaker
// admits it and whose call succeeds, in registration order.
//
// FallbackGroup is safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
	metrics *observe.Metrics
}

// NewFallbackGroup creates a group with primary as the first entry. Register
// more backends with [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	fg := &FallbackGroup[T]{cfg: cfg, metrics: metrics}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend, tried after all previously registered ones.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// record counts one attempt against a named backend. Circuit-open rejections
// never reached the backend and are not counted.
func (fg *FallbackGroup[T]) record(name string, err error) {
	if errors.Is(err, ErrCircuitOpen) {
		return
	}
	ctx := context.Background()
	status := "ok"
	if err != nil {
		status = "error"
		fg.metrics.RecordProviderError(ctx, name, fg.cfg.Kind)
	}
	fg.metrics.RecordProviderRequest(ctx, name, fg.cfg.Kind, status)
}

// Execute tries fn against each backend in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each backend in the group until one
// succeeds, returning its result. Backends behind an open breaker are
// skipped. When every backend fails the last error is wrapped in
// [ErrAllFailed].
//
// This is a package-level function because Go does not support method-level
// type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]

		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		fg.record(entry.name, err)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
