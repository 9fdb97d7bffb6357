// Package pipeline runs one poll-and-notify cycle for a channel: load the
// seen set, list candidates, build payloads for the unseen ones, dispatch
// them, and record their dedup keys according to the channel policy.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/httpx"
	"github.com/JakeFAU/dropwatch/internal/metrics"
	"github.com/JakeFAU/dropwatch/internal/notify"
	"github.com/JakeFAU/dropwatch/internal/seen"
	"github.com/JakeFAU/dropwatch/internal/source"
)

// Report aggregates one cycle.
type Report struct {
	Channel    string
	Candidates int
	// Attempted counts dispatches, successful or not.
	Attempted int
	Sent      int
	// Skipped counts candidates never dispatched: already seen, no metadata,
	// not found, transient fetch failure, or invalid.
	Skipped int
	Failed  int
}

// Limiter spaces out dispatches on a channel.
type Limiter interface {
	Wait(ctx context.Context, channel string) error
}

// Observer receives per-candidate outcomes. *metrics.Recorder implements it.
type Observer interface {
	ObserveCandidate(channel, outcome string)
	ObserveUpstreamError(channel, rawURL string)
}

// Config names the channel and its persistence policy.
type Config struct {
	Channel string
	Policy  seen.Policy
}

// Controller owns one channel's collaborators.
type Controller struct {
	cfg      Config
	source   source.Source
	store    seen.Store
	notifier notify.Notifier
	limiter  Limiter
	observer Observer
	logger   *zap.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLimiter sets the dispatch limiter.
func WithLimiter(l Limiter) Option {
	return func(c *Controller) { c.limiter = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// New constructs a Controller.
func New(
	cfg Config,
	src source.Source,
	store seen.Store,
	notifier notify.Notifier,
	logger *zap.Logger,
	opts ...Option,
) (*Controller, error) {
	switch {
	case src == nil:
		return nil, fmt.Errorf("pipeline %q: source is required", cfg.Channel)
	case store == nil:
		return nil, fmt.Errorf("pipeline %q: seen store is required", cfg.Channel)
	case notifier == nil:
		return nil, fmt.Errorf("pipeline %q: notifier is required", cfg.Channel)
	}
	if cfg.Policy == "" {
		cfg.Policy = seen.PostConfirm
	}
	if cfg.Channel == "" {
		cfg.Channel = src.Name()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		cfg:      cfg,
		source:   src,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Channel returns the channel name.
func (c *Controller) Channel() string {
	return c.cfg.Channel
}

// RunCycle executes one cycle. Only seen-store I/O failures and context
// cancellation return an error; every per-candidate failure is isolated.
func (c *Controller) RunCycle(ctx context.Context) (Report, error) {
	report := Report{Channel: c.cfg.Channel}
	set, err := c.store.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load seen set: %w", err)
	}

	candidates, err := c.source.Candidates(ctx)
	if err != nil {
		c.logger.Warn("candidate fetch failed", zap.Error(err))
		c.observeUpstream(err)
		return report, nil
	}
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		c.logger.Info("no candidates")
		return report, nil
	}

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("cycle interrupted: %w", err)
		}
		if err := c.process(ctx, set, cand, &report); err != nil {
			return report, err
		}
	}

	c.logger.Info("cycle complete",
		zap.Int("candidates", report.Candidates),
		zap.Int("attempted", report.Attempted),
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("seen", set.Len()),
	)
	return report, nil
}

func (c *Controller) process(ctx context.Context, set seen.Set, cand source.Candidate, report *Report) error {
	if err := cand.Validate(); err != nil {
		c.logger.Warn("invalid candidate quarantined", zap.Error(err))
		c.skip(report, metrics.OutcomeInvalid)
		return nil
	}
	key := c.source.Key(cand)
	log := c.logger.With(zap.String("candidate", cand.Name))

	if set.Has(key) {
		c.skip(report, metrics.OutcomeSeen)
		return nil
	}
	if !cand.Hints.HasMetadata {
		log.Debug("candidate has no metadata")
		c.skip(report, metrics.OutcomeNoMetadata)
		return nil
	}

	payload, err := c.source.Build(ctx, cand)
	switch {
	case errors.Is(err, source.ErrNotFound):
		log.Info("skipping candidate without metadata", zap.Error(err))
		c.skip(report, metrics.OutcomeNotFound)
		return nil
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("cycle interrupted: %w", ctxErr)
		}
		if status, ok := httpx.StatusOf(err); ok {
			log.Warn("upstream returned error status; retry next cycle", zap.Int("status", status), zap.Error(err))
		} else {
			log.Warn("metadata fetch failed; retry next cycle",
				zap.Bool("transient", httpx.IsTransient(err)),
				zap.Error(err),
			)
		}
		c.observeUpstream(err)
		c.skip(report, metrics.OutcomeFetchFailed)
		return nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, c.cfg.Channel); err != nil {
			return fmt.Errorf("cycle interrupted: %w", err)
		}
	}
	return c.dispatch(ctx, set, key, payload, report, log)
}

func (c *Controller) dispatch(
	ctx context.Context,
	set seen.Set,
	key string,
	payload notify.Payload,
	report *Report,
	log *zap.Logger,
) error {
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now().UTC()
	}
	if c.cfg.Policy == seen.PrePersist {
		set.Add(key)
		if err := c.store.Save(ctx, set); err != nil {
			return fmt.Errorf("save seen set: %w", err)
		}
	}

	report.Attempted++
	if !c.notifier.Notify(ctx, payload) {
		report.Failed++
		c.observe(metrics.OutcomeFailed)
		if c.cfg.Policy == seen.PrePersist {
			log.Warn("dispatch failed; item already recorded and will not be retried")
		} else {
			log.Warn("dispatch failed; retry next cycle")
		}
		return nil
	}
	report.Sent++
	c.observe(metrics.OutcomeSent)
	log.Info("notification sent", zap.String("key", key))

	if c.cfg.Policy == seen.PostConfirm {
		set.Add(key)
		if err := c.store.Save(ctx, set); err != nil {
			return fmt.Errorf("save seen set: %w", err)
		}
	}
	return nil
}

func (c *Controller) skip(report *Report, outcome string) {
	report.Skipped++
	c.observe(outcome)
}

func (c *Controller) observe(outcome string) {
	if c.observer != nil {
		c.observer.ObserveCandidate(c.cfg.Channel, outcome)
	}
}

func (c *Controller) observeUpstream(err error) {
	if c.observer == nil {
		return
	}
	var statusErr *httpx.StatusError
	if errors.As(err, &statusErr) {
		c.observer.ObserveUpstreamError(c.cfg.Channel, statusErr.URL)
		return
	}
	c.observer.ObserveUpstreamError(c.cfg.Channel, "")
}
