// Package metrics exposes Prometheus collectors for poll cycles and pushes
// them to a Pushgateway when a batch run ends.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Candidate outcomes.
const (
	OutcomeSent        = "sent"
	OutcomeSeen        = "seen"
	OutcomeNoMetadata  = "no_metadata"
	OutcomeNotFound    = "not_found"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeInvalid     = "invalid"
	OutcomeFailed      = "dispatch_failed"
)

// Recorder owns a private registry so a batch run pushes only its own series.
type Recorder struct {
	registry *prometheus.Registry

	candidatesTotal       *prometheus.CounterVec
	upstreamErrorsTotal   *prometheus.CounterVec
	cycleDurationSeconds  *prometheus.HistogramVec
	rateLimitDelaySeconds *prometheus.HistogramVec
	lastSuccessTimestamp  *prometheus.GaugeVec
}

// New registers the dropwatch collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		candidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dropwatch_candidates_total",
				Help: "Candidates processed, labeled by channel and outcome.",
			},
			[]string{"channel", "outcome"},
		),
		upstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dropwatch_upstream_errors_total",
				Help: "Upstream fetch failures, labeled by channel and site.",
			},
			[]string{"channel", "site"},
		),
		cycleDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dropwatch_cycle_duration_seconds",
				Help:    "Histogram of poll cycle durations.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"channel"},
		),
		rateLimitDelaySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dropwatch_rate_limit_delay_seconds",
				Help:    "Histogram of dispatch spacing waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"channel"},
		),
		lastSuccessTimestamp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dropwatch_last_success_timestamp_seconds",
				Help: "Unix time of the last cycle that completed without error.",
			},
			[]string{"channel"},
		),
	}
	r.registry.MustRegister(
		r.candidatesTotal,
		r.upstreamErrorsTotal,
		r.cycleDurationSeconds,
		r.rateLimitDelaySeconds,
		r.lastSuccessTimestamp,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveCandidate counts one processed candidate.
func (r *Recorder) ObserveCandidate(channel, outcome string) {
	r.candidatesTotal.WithLabelValues(channel, outcome).Inc()
}

// ObserveUpstreamError counts a failed fetch against the site in rawURL.
func (r *Recorder) ObserveUpstreamError(channel, rawURL string) {
	r.upstreamErrorsTotal.WithLabelValues(channel, SanitizeSite(rawURL)).Inc()
}

// ObserveCycle records a finished cycle.
func (r *Recorder) ObserveCycle(channel string, duration time.Duration, err error) {
	r.cycleDurationSeconds.WithLabelValues(channel).Observe(duration.Seconds())
	if err == nil {
		r.lastSuccessTimestamp.WithLabelValues(channel).SetToCurrentTime()
	}
}

// ObserveRateLimitDelay records the duration of a dispatch spacing wait.
func (r *Recorder) ObserveRateLimitDelay(channel string, duration time.Duration) {
	r.rateLimitDelaySeconds.WithLabelValues(channel).Observe(duration.Seconds())
}

// Push sends every collected series to the Pushgateway at gatewayURL under
// job, grouped by run ID.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job, runID string) error {
	pusher := push.New(gatewayURL, job).Gatherer(r.registry)
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
