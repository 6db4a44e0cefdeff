package clients

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries     int           // Maximum number of retry attempts
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
	Jitter         float64       // Random jitter factor (0-1)
}

// DefaultRetryConfig returns production-ready retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
	}
}

// RetryResult contains the result of a retry operation
type RetryResult struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
	RetryAfter    time.Duration // From Retry-After header if present
}

// Retrier handles retry logic with exponential backoff. Only Transient-class
// failures are retried; everything else surfaces immediately so the
// reconciler can act on the classified kind.
type Retrier struct {
	config *RetryConfig
}

// NewRetrier creates a new retrier with the given config
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

// ShouldRetry determines if an error should be retried
func (r *Retrier) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 0,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	kind, _ := Classify(err)
	return kind == ErrKindTransient
}

// CalculateBackoff calculates the backoff duration for a given attempt
func (r *Retrier) CalculateBackoff(attempt int, retryAfter time.Duration) time.Duration {
	// Use Retry-After header if provided
	if retryAfter > 0 {
		return retryAfter
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if r.config.Jitter > 0 {
		jitter := backoff * r.config.Jitter * (rand.Float64()*2 - 1)
		backoff += jitter
	}

	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// ParseRetryAfter extracts the Retry-After duration from an HTTP response
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	// Try parsing as seconds
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	// Try parsing as HTTP-date
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}

	return 0
}

// retryAfterFrom pulls the server-requested delay off the failed attempt
func retryAfterFrom(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// Do executes a function with retry logic
func (r *Retrier) Do(ctx context.Context, operation string, fn RetryableFunc) *RetryResult {
	result := &RetryResult{}
	startTime := time.Now()

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := fn(ctx)
		result.LastError = err

		if err == nil {
			result.TotalDuration = time.Since(startTime)
			return result
		}

		if !r.ShouldRetry(err) {
			result.TotalDuration = time.Since(startTime)
			return result
		}

		if attempt >= r.config.MaxRetries {
			result.LastError = fmt.Errorf("max retries exceeded for %s: %w", operation, err)
			result.TotalDuration = time.Since(startTime)
			return result
		}

		result.RetryAfter = retryAfterFrom(err)
		backoff := r.CalculateBackoff(attempt, result.RetryAfter)

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return result
		case <-time.After(backoff):
			// Continue to next attempt
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}
