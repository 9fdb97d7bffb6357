// Package app wires configuration into per-channel pipelines and owns the
// long-lived clients they share during one invocation.
package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/dropwatch/internal/config"
	"github.com/JakeFAU/dropwatch/internal/httpx"
	"github.com/JakeFAU/dropwatch/internal/logging"
	"github.com/JakeFAU/dropwatch/internal/metrics"
	"github.com/JakeFAU/dropwatch/internal/notify"
	"github.com/JakeFAU/dropwatch/internal/notify/discord"
	pubsubnotify "github.com/JakeFAU/dropwatch/internal/notify/pubsub"
	"github.com/JakeFAU/dropwatch/internal/pipeline"
	"github.com/JakeFAU/dropwatch/internal/qr"
	"github.com/JakeFAU/dropwatch/internal/ratelimit"
	"github.com/JakeFAU/dropwatch/internal/release"
	"github.com/JakeFAU/dropwatch/internal/seen"
	"github.com/JakeFAU/dropwatch/internal/source"
	"github.com/JakeFAU/dropwatch/internal/source/page"
	"github.com/JakeFAU/dropwatch/internal/source/qrcodes"
	"github.com/JakeFAU/dropwatch/internal/source/rewardlink"
	"github.com/JakeFAU/dropwatch/internal/source/srrdb"
)

// StoreFactory builds the seen store of a channel.
type StoreFactory func(ctx context.Context, name string, ch config.ChannelConfig) (seen.Store, error)

// NotifierFactory builds the destination of a channel.
type NotifierFactory func(ctx context.Context, name string, ch config.ChannelConfig) (notify.Notifier, error)

// App holds the shared services of one invocation.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	runID   string
	http    *httpx.Client
	fetcher *page.Fetcher
	limiter *ratelimit.Limiter
	metrics *metrics.Recorder

	newStore    StoreFactory
	newNotifier NotifierFactory

	mu      sync.Mutex
	gcs     *storage.Client
	pg      *pgxpool.Pool
	pgReady map[string]bool
	ps      *pubsub.Client
	topic   *pubsub.Topic
}

// Option customizes an App.
type Option func(*App)

// WithStoreFactory replaces the configured seen backend.
func WithStoreFactory(f StoreFactory) Option {
	return func(a *App) { a.newStore = f }
}

// WithNotifierFactory replaces the configured destinations.
func WithNotifierFactory(f NotifierFactory) Option {
	return func(a *App) { a.newNotifier = f }
}

// WithRunID fixes the run ID instead of generating one.
func WithRunID(id string) Option {
	return func(a *App) { a.runID = id }
}

// New builds an App from a validated configuration. Backend clients are
// opened lazily, the first time a channel needs them.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, pgReady: map[string]bool{}}
	for _, opt := range opts {
		opt(a)
	}
	if a.runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate run id: %w", err)
		}
		a.runID = id.String()
	}
	a.logger = logging.ForRun(logger, a.runID)
	a.metrics = metrics.New()
	a.http = httpx.New(httpx.Config{
		Timeout:     cfg.HTTP.Timeout,
		MaxAttempts: cfg.HTTP.MaxAttempts,
		UserAgent:   cfg.HTTP.UserAgent,
	}, a.logger)
	a.fetcher = page.New(page.Config{UserAgent: cfg.HTTP.UserAgent, Timeout: cfg.HTTP.Timeout}, nil)
	a.limiter = ratelimit.New(ratelimit.Config{
		MinInterval: cfg.Dispatch.MinInterval,
		OnDelay:     a.metrics.ObserveRateLimitDelay,
	})
	if a.newStore == nil {
		a.newStore = a.defaultStore
	}
	if a.newNotifier == nil {
		a.newNotifier = a.defaultNotifier
	}
	return a, nil
}

// RunID identifies this invocation in logs and pushed metrics.
func (a *App) RunID() string {
	return a.runID
}

// Metrics exposes the run's recorder.
func (a *App) Metrics() *metrics.Recorder {
	return a.metrics
}

// Run executes one cycle per selected channel, sequentially. A channel whose
// seen store fails does not stop the others; all such failures are joined
// into the returned error.
func (a *App) Run(ctx context.Context, only string) ([]pipeline.Report, error) {
	names, err := a.cfg.Select(only)
	if err != nil {
		return nil, err
	}
	reports := make([]pipeline.Report, 0, len(names))
	var errs []error
	for _, name := range names {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("run interrupted: %w", ctx.Err()))
			break
		}
		report, err := a.runChannel(ctx, name)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}
	a.pushMetrics(ctx)
	return reports, errors.Join(errs...)
}

func (a *App) runChannel(ctx context.Context, name string) (pipeline.Report, error) {
	start := time.Now()
	ctrl, err := a.Controller(ctx, name)
	if err != nil {
		return pipeline.Report{Channel: name}, err
	}
	report, err := ctrl.RunCycle(ctx)
	a.metrics.ObserveCycle(name, time.Since(start), err)
	return report, err
}

// Controller assembles the pipeline of one channel.
func (a *App) Controller(ctx context.Context, name string) (*pipeline.Controller, error) {
	ch, ok := a.cfg.Channels[name]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", name)
	}
	policy, err := seen.ParsePolicy(ch.Policy)
	if err != nil {
		return nil, err
	}
	logger := logging.ForChannel(a.logger, name, ch.Source)

	src, err := a.buildSource(ch, logger)
	if err != nil {
		return nil, err
	}
	store, err := a.newStore(ctx, name, ch)
	if err != nil {
		return nil, fmt.Errorf("open seen store: %w", err)
	}
	notifier, err := a.newNotifier(ctx, name, ch)
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}
	return pipeline.New(
		pipeline.Config{Channel: name, Policy: policy},
		src, store, notifier, logger,
		pipeline.WithLimiter(a.limiter),
		pipeline.WithObserver(a.metrics),
	)
}

func (a *App) buildSource(ch config.ChannelConfig, logger *zap.Logger) (source.Source, error) {
	switch ch.Source {
	case config.SourceSRRDB:
		client, err := srrdb.NewClient(a.http, srrdb.Endpoints{Scan: ch.Endpoint})
		if err != nil {
			return nil, err
		}
		return srrdb.New(client, release.Options{}, logger)
	case config.SourceRewardLink:
		return rewardlink.New(a.fetcher, rewardlink.Options{URL: ch.Endpoint}, logger)
	case config.SourceQRCodes:
		return qrcodes.New(a.fetcher, qr.NewHTTPDecoder(a.http, logger), qrcodes.Options{URL: ch.Endpoint}, logger)
	default:
		return nil, fmt.Errorf("unknown source %q", ch.Source)
	}
}

func (a *App) defaultStore(ctx context.Context, name string, ch config.ChannelConfig) (seen.Store, error) {
	switch a.cfg.Seen.Backend {
	case config.BackendFile, "":
		return seen.NewFileStore(filepath.Join(a.cfg.Seen.Dir, ch.SeenFile), a.logger)
	case config.BackendGCS:
		client, err := a.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		object := path.Join(a.cfg.Seen.GCS.Prefix, ch.SeenFile)
		return seen.NewGCSStore(seen.GCSObjects{Client: client}, a.cfg.Seen.GCS.Bucket, object, a.logger)
	case config.BackendPostgres:
		return a.postgresStore(ctx, name)
	default:
		return nil, fmt.Errorf("unknown seen backend %q", a.cfg.Seen.Backend)
	}
}

func (a *App) gcsClient(ctx context.Context) (*storage.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gcs == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.gcs = client
	}
	return a.gcs, nil
}

func (a *App) postgresStore(ctx context.Context, name string) (seen.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pg == nil {
		pool, err := seen.NewPostgresPool(ctx, a.cfg.Seen.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.pg = pool
	}
	store, err := seen.NewPostgresStore(a.pg, a.cfg.Seen.Postgres.Table, name)
	if err != nil {
		return nil, err
	}
	table := a.cfg.Seen.Postgres.Table
	if !a.pgReady[table] {
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.pgReady[table] = true
	}
	return store, nil
}

func (a *App) defaultNotifier(ctx context.Context, name string, ch config.ChannelConfig) (notify.Notifier, error) {
	logger := a.logger.With(zap.String("channel", name))
	switch ch.Notifier {
	case config.NotifierDiscord, "":
		return discord.New(a.cfg.WebhookFor(name), a.http, logger)
	case config.NotifierPubSub:
		topic, err := a.pubsubTopic(ctx)
		if err != nil {
			return nil, err
		}
		return pubsubnotify.New(topic, name, logger)
	default:
		return nil, fmt.Errorf("unknown notifier %q", ch.Notifier)
	}
}

func (a *App) pubsubTopic(ctx context.Context) (*pubsub.Topic, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.topic == nil {
		client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		a.ps = client
		a.topic = client.Topic(a.cfg.PubSub.Topic)
	}
	return a.topic, nil
}

func (a *App) pushMetrics(ctx context.Context) {
	gateway := a.cfg.Metrics.PushgatewayURL
	if gateway == "" {
		return
	}
	if err := a.metrics.Push(ctx, gateway, a.cfg.Metrics.Job, a.runID); err != nil {
		a.logger.Warn("metrics push failed", zap.String("gateway", gateway), zap.Error(err))
	}
}

// Close releases backend clients and flushes the logger.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.topic != nil {
		a.topic.Stop()
	}
	if a.ps != nil {
		if err := a.ps.Close(); err != nil {
			a.logger.Warn("error closing pubsub client", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("error closing gcs client", zap.Error(err))
		}
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.logger.Sync()
}
