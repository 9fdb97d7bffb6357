// Package config loads and validates dropwatch configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/dropwatch/internal/seen"
)

// Source kinds.
const (
	SourceSRRDB      = "srrdb"
	SourceRewardLink = "rewardlink"
	SourceQRCodes    = "qrcodes"
)

// Notifier kinds.
const (
	NotifierDiscord = "discord"
	NotifierPubSub  = "pubsub"
)

// Seen store backends.
const (
	BackendFile     = "file"
	BackendGCS      = "gcs"
	BackendPostgres = "postgres"
)

// ErrMissingWebhook reports a discord channel with no webhook destination.
var ErrMissingWebhook = errors.New("webhook.url is required (set DISCORD_WEBHOOK or DROPWATCH_WEBHOOK_URL)")

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Webhook  WebhookConfig            `mapstructure:"webhook"`
	Channels map[string]ChannelConfig `mapstructure:"channels"`
	HTTP     HTTPConfig               `mapstructure:"http"`
	Dispatch DispatchConfig           `mapstructure:"dispatch"`
	Seen     SeenConfig               `mapstructure:"seen"`
	PubSub   PubSubConfig             `mapstructure:"pubsub"`
	Metrics  MetricsConfig            `mapstructure:"metrics"`
	Logging  LoggingConfig            `mapstructure:"logging"`
}

// WebhookConfig holds the default Discord destination.
type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

// ChannelConfig pairs one source with one destination.
type ChannelConfig struct {
	Source   string `mapstructure:"source"`
	Notifier string `mapstructure:"notifier"`
	Policy   string `mapstructure:"policy"`
	SeenFile string `mapstructure:"seen_file"`
	// Endpoint overrides the page URL of blog sources or the srrdb scan URL.
	Endpoint string `mapstructure:"endpoint"`
	// WebhookURL overrides webhook.url for this channel.
	WebhookURL string `mapstructure:"webhook_url"`
	Disabled   bool   `mapstructure:"disabled"`
}

// HTTPConfig bounds every outbound call.
type HTTPConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	UserAgent   string        `mapstructure:"user_agent"`
}

// DispatchConfig spaces out notifications.
type DispatchConfig struct {
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// SeenConfig selects where dedup state lives.
type SeenConfig struct {
	Backend  string         `mapstructure:"backend"`
	Dir      string         `mapstructure:"dir"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// GCSConfig locates seen objects in a bucket.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PostgresConfig locates the seen table.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds the topic used by pubsub channels.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig enables the Pushgateway push at the end of a run.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DROPWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("webhook.url", "DROPWATCH_WEBHOOK_URL", "DISCORD_WEBHOOK"); err != nil {
		return Config{}, fmt.Errorf("bind webhook env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("channels", map[string]any{
		"switch": map[string]any{
			"source":      SourceSRRDB,
			"notifier":    NotifierDiscord,
			"policy":      string(seen.PostConfirm),
			"seen_file":   "seen_switch.json",
			"endpoint":    "",
			"webhook_url": "",
			"disabled":    false,
		},
		"coc": map[string]any{
			"source":      SourceRewardLink,
			"notifier":    NotifierDiscord,
			"policy":      string(seen.PostConfirm),
			"seen_file":   "seen_coc.json",
			"endpoint":    "",
			"webhook_url": "",
			"disabled":    false,
		},
		"clashroyale": map[string]any{
			"source":      SourceQRCodes,
			"notifier":    NotifierDiscord,
			"policy":      string(seen.PrePersist),
			"seen_file":   "seen_clashRoyale.json",
			"endpoint":    "",
			"webhook_url": "",
			"disabled":    false,
		},
	})
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.user_agent", "dropwatch/1.0")
	v.SetDefault("dispatch.min_interval", "1s")
	v.SetDefault("seen.backend", BackendFile)
	v.SetDefault("seen.dir", ".")
	v.SetDefault("seen.gcs.prefix", "dropwatch")
	v.SetDefault("seen.postgres.table", "seen_keys")
	v.SetDefault("metrics.job", "dropwatch")
	v.SetDefault("logging.development", false)
}

func (c *Config) normalize() {
	for name, ch := range c.Channels {
		ch.Source = strings.ToLower(strings.TrimSpace(ch.Source))
		ch.Notifier = strings.ToLower(strings.TrimSpace(ch.Notifier))
		if ch.Notifier == "" {
			ch.Notifier = NotifierDiscord
		}
		if ch.SeenFile == "" {
			ch.SeenFile = "seen_" + name + ".json"
		}
		c.Channels[name] = ch
	}
	c.Seen.Backend = strings.ToLower(strings.TrimSpace(c.Seen.Backend))
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.Dispatch.MinInterval < 0 {
		return fmt.Errorf("dispatch.min_interval must be >= 0")
	}
	switch c.Seen.Backend {
	case BackendFile:
	case BackendGCS:
		if c.Seen.GCS.Bucket == "" {
			return fmt.Errorf("seen.gcs.bucket must be set when seen.backend is %q", BackendGCS)
		}
	case BackendPostgres:
		if c.Seen.Postgres.DSN == "" {
			return fmt.Errorf("seen.postgres.dsn must be set when seen.backend is %q", BackendPostgres)
		}
	default:
		return fmt.Errorf("seen.backend %q is not one of file, gcs, postgres", c.Seen.Backend)
	}

	names := c.ChannelNames()
	if len(names) == 0 {
		return fmt.Errorf("at least one channel must be enabled")
	}
	for _, name := range names {
		if err := c.validateChannel(name, c.Channels[name]); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) validateChannel(name string, ch ChannelConfig) error {
	switch ch.Source {
	case SourceSRRDB, SourceRewardLink, SourceQRCodes:
	default:
		return fmt.Errorf("channels.%s.source %q is not one of srrdb, rewardlink, qrcodes", name, ch.Source)
	}
	if _, err := seen.ParsePolicy(ch.Policy); err != nil {
		return fmt.Errorf("channels.%s.policy: %w", name, err)
	}
	switch ch.Notifier {
	case NotifierDiscord:
		if c.WebhookFor(name) == "" {
			return fmt.Errorf("channels.%s: %w", name, ErrMissingWebhook)
		}
	case NotifierPubSub:
		if c.PubSub.ProjectID == "" || c.PubSub.Topic == "" {
			return fmt.Errorf("channels.%s: pubsub.project_id and pubsub.topic must be set", name)
		}
	default:
		return fmt.Errorf("channels.%s.notifier %q is not one of discord, pubsub", name, ch.Notifier)
	}
	return nil
}

// ChannelNames lists enabled channels in sorted order.
func (c Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for name, ch := range c.Channels {
		if !ch.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// WebhookFor resolves the Discord webhook of a channel.
func (c Config) WebhookFor(name string) string {
	if u := strings.TrimSpace(c.Channels[name].WebhookURL); u != "" {
		return u
	}
	return strings.TrimSpace(c.Webhook.URL)
}

// Select narrows the enabled channels to only, or returns all of them when
// only is empty.
func (c Config) Select(only string) ([]string, error) {
	if only == "" {
		return c.ChannelNames(), nil
	}
	ch, ok := c.Channels[only]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", only)
	}
	if ch.Disabled {
		return nil, fmt.Errorf("channel %q is disabled", only)
	}
	return []string{only}, nil
}
