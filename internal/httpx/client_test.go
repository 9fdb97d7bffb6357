package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetReturnsBodyOn2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dropwatch-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := New(Config{UserAgent: "dropwatch-test"}, zap.NewNop())
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{MaxAttempts: 3}, zap.NewNop())
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)

	status, ok := StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, status)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetRetriesServerErrorsUpToLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{MaxAttempts: 3}, zap.NewNop())
	resp, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{MaxAttempts: 2}, zap.NewNop())
	_, err := c.Get(context.Background(), srv.URL)
	status, ok := StatusOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTransportFailureIsTyped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Config{MaxAttempts: 1, Timeout: time.Second}, zap.NewNop())
	_, err := c.Get(context.Background(), url)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, IsTransient(err))
	_, ok := StatusOf(err)
	assert.False(t, ok)
}

func TestGetJSONDecodes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"release":"a"}]}`))
	}))
	defer srv.Close()

	var out struct {
		Results []struct {
			Release string `json:"release"`
		} `json:"results"`
	}
	c := New(Config{}, nil)
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "a", out.Results[0].Release)
}

func TestPostJSONSendsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(Config{}, zap.NewNop())
	resp, err := c.PostJSON(context.Background(), srv.URL, map[string]string{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestIsTransientNil(t *testing.T) {
	t.Parallel()
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("other")))
}
