package clients

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		BackoffFactor:  2.0,
		Jitter:         0,
	}
}

func TestShouldRetry_TransientStatuses(t *testing.T) {
	r := NewRetrier(testRetryConfig())

	for _, status := range []int{0, 500, 502, 503, 504} {
		assert.True(t, r.ShouldRetry(&APIError{StatusCode: status}), "status %d", status)
	}
}

func TestShouldRetry_TerminalStatuses(t *testing.T) {
	r := NewRetrier(testRetryConfig())

	for _, status := range []int{400, 401, 403, 404, 409, 429} {
		assert.False(t, r.ShouldRetry(&APIError{StatusCode: status}), "status %d", status)
	}
}

func TestShouldRetry_PlainNetworkError(t *testing.T) {
	r := NewRetrier(testRetryConfig())

	assert.True(t, r.ShouldRetry(errors.New("dial tcp: i/o timeout")))
	assert.False(t, r.ShouldRetry(nil))
}

func TestCalculateBackoff_Exponential(t *testing.T) {
	r := NewRetrier(&RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     time.Minute,
		BackoffFactor:  2.0,
		Jitter:         0,
	})

	assert.Equal(t, time.Second, r.CalculateBackoff(0, 0))
	assert.Equal(t, 2*time.Second, r.CalculateBackoff(1, 0))
	assert.Equal(t, 4*time.Second, r.CalculateBackoff(2, 0))
}

func TestCalculateBackoff_CappedAtMax(t *testing.T) {
	r := NewRetrier(&RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0,
	})

	assert.Equal(t, 5*time.Second, r.CalculateBackoff(10, 0))
}

func TestCalculateBackoff_RetryAfterWins(t *testing.T) {
	r := NewRetrier(testRetryConfig())

	assert.Equal(t, 7*time.Second, r.CalculateBackoff(0, 7*time.Second))
}

func TestParseRetryAfter_Seconds(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "42")

	assert.Equal(t, 42*time.Second, ParseRetryAfter(resp))
}

func TestParseRetryAfter_Missing(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}

	assert.Equal(t, time.Duration(0), ParseRetryAfter(resp))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(nil))
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	r := NewRetrier(testRetryConfig())
	calls := 0

	result := r.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, result.LastError)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	r := NewRetrier(testRetryConfig())
	calls := 0

	result := r.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &APIError{StatusCode: 503}
		}
		return nil
	})

	assert.NoError(t, result.LastError)
	assert.Equal(t, 3, result.Attempts)
}

func TestDo_TerminalErrorNotRetried(t *testing.T) {
	r := NewRetrier(testRetryConfig())
	calls := 0

	result := r.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 400, Body: "invalid"}
	})

	assert.Error(t, result.LastError)
	assert.Equal(t, 1, calls)
}

func TestDo_MaxRetriesExceeded(t *testing.T) {
	r := NewRetrier(testRetryConfig())
	calls := 0

	result := r.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return &APIError{StatusCode: 502}
	})

	assert.Error(t, result.LastError)
	assert.Contains(t, result.LastError.Error(), "max retries exceeded")
	assert.Equal(t, 4, calls) // initial attempt plus three retries
}

func TestDo_HonorsRetryAfterFromError(t *testing.T) {
	r := NewRetrier(testRetryConfig())
	calls := 0

	start := time.Now()
	result := r.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &APIError{StatusCode: 503, RetryAfter: 60 * time.Millisecond}
		}
		return nil
	})

	// The server's requested delay overrides the millisecond-scale backoff
	assert.NoError(t, result.LastError)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 60*time.Millisecond, result.RetryAfter)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestDo_ContextCancelled(t *testing.T) {
	r := NewRetrier(&RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Minute,
		MaxBackoff:     time.Minute,
		BackoffFactor:  2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	result := r.Do(ctx, "test", func(ctx context.Context) error {
		return &APIError{StatusCode: 503}
	})

	assert.ErrorIs(t, result.LastError, context.Canceled)
}
