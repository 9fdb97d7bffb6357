package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestRecorderCounters(t *testing.T) {
	t.Parallel()

	r := New()
	r.ObserveCandidate("srrdb", OutcomeSent)
	r.ObserveCandidate("srrdb", OutcomeSent)
	r.ObserveCandidate("srrdb", OutcomeSeen)
	r.ObserveUpstreamError("srrdb", "https://API.srrdb.com/v1/search")
	r.ObserveRateLimitDelay("srrdb", time.Second)
	r.ObserveCycle("srrdb", 2*time.Second, nil)
	r.ObserveCycle("coc", time.Second, errors.New("disk full"))

	assert.InDelta(t, 2, testutil.ToFloat64(r.candidatesTotal.WithLabelValues("srrdb", OutcomeSent)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.candidatesTotal.WithLabelValues("srrdb", OutcomeSeen)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.upstreamErrorsTotal.WithLabelValues("srrdb", "api.srrdb.com")), 0)
	assert.Positive(t, testutil.ToFloat64(r.lastSuccessTimestamp.WithLabelValues("srrdb")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.lastSuccessTimestamp), "failed cycles do not set last success")
	assert.Equal(t, 2, testutil.CollectAndCount(r.cycleDurationSeconds))
}

func TestRecorderPush(t *testing.T) {
	t.Parallel()

	var (
		pushes atomic.Int32
		path   atomic.Value
		body   atomic.Value
	)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pushes.Add(1)
		path.Store(r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body.Store(string(b))
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	r := New()
	r.ObserveCandidate("cr", OutcomeSent)
	require.NoError(t, r.Push(context.Background(), gateway.URL, "dropwatch", "run-1"))

	assert.EqualValues(t, 1, pushes.Load())
	assert.Equal(t, "/metrics/job/dropwatch/run_id/run-1", path.Load())
	assert.True(t, strings.Contains(body.Load().(string), "dropwatch_candidates_total"))
}

func TestRecorderPushFailure(t *testing.T) {
	t.Parallel()

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer gateway.Close()

	err := New().Push(context.Background(), gateway.URL, "dropwatch", "")
	require.Error(t, err)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
