package remote

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	base, repo, err := ParseLocation("http://localhost:8730/meta")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8730", base)
	assert.Equal(t, "meta", repo)

	// Nested repository paths stay intact
	base, repo, err = ParseLocation("https://vc.example.com/meta/lib")
	require.NoError(t, err)
	assert.Equal(t, "https://vc.example.com", base)
	assert.Equal(t, "meta/lib", repo)

	_, _, err = ParseLocation("http://localhost:8730/")
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, isTransient(nil))
	assert.True(t, isTransient(&RemoteError{Status: 500, Code: "internal_error", Message: "server error"}))
	assert.True(t, isTransient(&RemoteError{Status: http.StatusTooManyRequests, Code: "rate_limited", Message: "too many"}))
	assert.False(t, isTransient(&RemoteError{Status: 404, Code: "not_found", Message: "not found"}))
	assert.False(t, isTransient(&RemoteError{Status: 409, Code: "push_rejected", Message: "diverged"}))
	assert.True(t, isTransient(&http.MaxBytesError{Limit: 100}))
}

func TestRetryClient_Backoff(t *testing.T) {
	rc := NewRetryClient(nil, &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0.0, // no jitter for deterministic test
	})

	assert.Equal(t, 100*time.Millisecond, rc.backoff(0))
	assert.Equal(t, 200*time.Millisecond, rc.backoff(1))
	assert.Equal(t, 400*time.Millisecond, rc.backoff(2))
}

func TestRetryClient_BackoffCapped(t *testing.T) {
	rc := NewRetryClient(nil, &RetryConfig{
		MaxRetries:     10,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Second,
		JitterFraction: 0.0,
	})

	assert.Equal(t, 5*time.Second, rc.backoff(10))
}

func TestRetryClient_RetrySuccess(t *testing.T) {
	rc := NewRetryClient(nil, &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		JitterFraction: 0.0,
	})

	attempts := 0
	err := rc.retry(context.Background(), "test", func() error {
		attempts++
		if attempts < 3 {
			return &RemoteError{Status: 500, Code: "internal", Message: "fail"}
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryClient_RetryExhausted(t *testing.T) {
	rc := NewRetryClient(nil, &RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		JitterFraction: 0.0,
	})

	attempts := 0
	err := rc.retry(context.Background(), "test", func() error {
		attempts++
		return &RemoteError{Status: 500, Code: "internal", Message: "fail"}
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestRetryClient_NoRetryOn4xx(t *testing.T) {
	rc := NewRetryClient(nil, &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		JitterFraction: 0.0,
	})

	attempts := 0
	err := rc.retry(context.Background(), "test", func() error {
		attempts++
		return &RemoteError{Status: 404, Code: "not_found", Message: "not found"}
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts) // no retry
}

// refUpdateCounter counts UpdateRef calls to verify the CAS path bypasses retry.
type refUpdateCounter struct {
	RemoteClient
	calls int
}

func (m *refUpdateCounter) UpdateRef(_ context.Context, _, _, _ string) error {
	m.calls++
	return &RemoteError{Status: 500, Code: "internal", Message: "fail"}
}

func TestRetryClient_UpdateRefNotRetried(t *testing.T) {
	inner := &refUpdateCounter{}
	rc := NewRetryClient(inner, &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		JitterFraction: 0.0,
	})

	err := rc.UpdateRef(context.Background(), "master", "new", "old")
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
