package httpds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestGet_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "code,year\nUSA,2005\n")
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 3})
	c.wait = noWait

	rc, err := NewSource(c, srv.URL).Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "code,year\nUSA,2005\n", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_NonRetryableStatusIsFinal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(Config{})
	c.wait = noWait

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{MaxRetries: 2})
	c.wait = noWait

	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, backoffDuration(100*time.Millisecond, 0, time.Second))
	assert.Equal(t, 400*time.Millisecond, backoffDuration(100*time.Millisecond, 2, time.Second))
	assert.Equal(t, time.Second, backoffDuration(100*time.Millisecond, 10, time.Second))
}
