// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/rulecrawler/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Spider     SpiderConfig     `mapstructure:"spider"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// SpiderConfig names the crawl and lists its seeds and rules.
type SpiderConfig struct {
	Name      string       `mapstructure:"name"`
	Version   string       `mapstructure:"version"`
	StartURLs []string     `mapstructure:"start_urls"`
	Rules     []RuleConfig `mapstructure:"rules"`
}

// RuleConfig is one crawl rule. Action is filter_urls, pattern or page.
// Pattern rules need Field, one of CSS or Regex, and a Transform name; page
// rules need an Extractor name.
type RuleConfig struct {
	Allow     []string `mapstructure:"allow"`
	Deny      []string `mapstructure:"deny"`
	Action    string   `mapstructure:"action"`
	Field     string   `mapstructure:"field"`
	CSS       string   `mapstructure:"css"`
	Regex     string   `mapstructure:"regex"`
	Transform string   `mapstructure:"transform"`
	Separator string   `mapstructure:"separator"`
	Extractor string   `mapstructure:"extractor"`
}

// SchedulerConfig controls admission: strategy, pacing and the in-flight ceiling.
type SchedulerConfig struct {
	Strategy           string `mapstructure:"strategy"`
	DownloadDelayMs    int    `mapstructure:"download_delay"`
	ConcurrentRequests int    `mapstructure:"concurrent_requests"`
	IdleTimeoutSeconds int    `mapstructure:"idle_timeout_seconds"`
	ListenerBuffer     int    `mapstructure:"listener_buffer"`
}

// DownloaderConfig selects the transport and the middleware chain.
type DownloaderConfig struct {
	Transport      string           `mapstructure:"transport"`
	TimeoutSeconds int              `mapstructure:"timeout_seconds"`
	RespectRobots  bool             `mapstructure:"respect_robots"`
	MaxBodyBytes   int              `mapstructure:"max_body_bytes"`
	RateLimit      RateLimitConfig  `mapstructure:"rate_limit"`
	MiddlewareList []string         `mapstructure:"middleware_list"`
	Middleware     MiddlewareConfig `mapstructure:"middleware"`
}

// RateLimitConfig throttles fetches per host. Zero RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// MiddlewareConfig holds per-middleware settings, passed through unmodified.
type MiddlewareConfig struct {
	UserAgent UserAgentConfig   `mapstructure:"user_agent"`
	Proxy     ProxyConfig       `mapstructure:"proxy"`
	Print     PrintConfig       `mapstructure:"print"`
	Headers   map[string]string `mapstructure:"headers"`
}

// UserAgentConfig sets the outgoing User-Agent.
type UserAgentConfig struct {
	Value string `mapstructure:"value"`
}

// ProxyConfig lists proxies per scheme to pick from at random.
type ProxyConfig struct {
	HTTP  []string `mapstructure:"http"`
	HTTPS []string `mapstructure:"https"`
}

// PrintConfig crops long values when logging. Zero disables cropping.
type PrintConfig struct {
	MaxLen int `mapstructure:"max_len"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	MaxParallel     int `mapstructure:"max_parallel"`
	NavTimeoutSec   int `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int `mapstructure:"promotion_threshold"`
}

// PipelineConfig selects post-processing elements and record sinks.
type PipelineConfig struct {
	ElementList []string      `mapstructure:"element_list"`
	Element     ElementConfig `mapstructure:"element"`
	Sinks       []string      `mapstructure:"sinks"`
}

// ElementConfig holds per-element settings.
type ElementConfig struct {
	Timestamping TimestampingConfig `mapstructure:"timestamping"`
	Print        PrintConfig        `mapstructure:"print"`
}

// TimestampingConfig controls the timestamp added to every record.
type TimestampingConfig struct {
	Offset string `mapstructure:"offset"`
	Format string `mapstructure:"format"`
	Field  string `mapstructure:"field"`
}

// StorageConfig selects the blob backend used by the blob record sink.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the Postgres record store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// SQLiteConfig points the embedded record store at a file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PubSubConfig holds metadata for publishing records.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the HTTP status server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig configures tracing and the otel resource.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	Version     string  `mapstructure:"version"`
	ProjectID   string  `mapstructure:"project_id"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Known plugin and sink names.
var (
	Middlewares = []string{"user_agent", "proxy", "headers", "decompress", "print"}
	Elements    = []string{"timestamping", "print"}
	Sinks       = []string{"log", "memory", "blob", "pubsub", "postgres", "sqlite"}
	Transports  = []string{"colly", "headless", "adaptive"}
	Backends    = []string{"local", "gcs", "memory"}
)

// Load builds a Config from disk/environment. A .env file in the working
// directory is loaded first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("spider.name", "default")
	v.SetDefault("spider.version", "0.1.0")
	v.SetDefault("scheduler.strategy", "breadth_first")
	v.SetDefault("scheduler.download_delay", 500)
	v.SetDefault("scheduler.concurrent_requests", 4)
	v.SetDefault("scheduler.idle_timeout_seconds", 0)
	v.SetDefault("scheduler.listener_buffer", 64)
	v.SetDefault("downloader.transport", "colly")
	v.SetDefault("downloader.timeout_seconds", 15)
	v.SetDefault("downloader.respect_robots", false)
	v.SetDefault("downloader.max_body_bytes", 10<<20)
	v.SetDefault("downloader.rate_limit.requests_per_second", 0)
	v.SetDefault("downloader.rate_limit.burst", 1)
	v.SetDefault("downloader.middleware_list", []string{"user_agent"})
	v.SetDefault("downloader.middleware.user_agent.value", "rulecrawler/0.1 (+https://github.com/JakeFAU/rulecrawler)")
	v.SetDefault("downloader.middleware.print.max_len", 100)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 60)
	v.SetDefault("pipeline.element_list", []string{"timestamping"})
	v.SetDefault("pipeline.element.timestamping.offset", "utc")
	v.SetDefault("pipeline.element.timestamping.format", "Rfc3339")
	v.SetDefault("pipeline.element.timestamping.field", "timestamp")
	v.SetDefault("pipeline.element.print.max_len", 100)
	v.SetDefault("pipeline.sinks", []string{"log"})
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.prefix", "records")
	v.SetDefault("db.table", "crawl_records")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("sqlite.path", "data/records.db")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("telemetry.service_name", "rulecrawler")
	v.SetDefault("telemetry.version", "0.1.0")
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := crawler.ParseStrategy(c.Scheduler.Strategy); err != nil {
		return fmt.Errorf("scheduler.strategy: %w", err)
	}
	if c.Scheduler.DownloadDelayMs <= 0 {
		return fmt.Errorf("%w: scheduler.download_delay must be > 0", crawler.ErrConfig)
	}
	if c.Scheduler.ConcurrentRequests <= 0 {
		return fmt.Errorf("%w: scheduler.concurrent_requests must be > 0", crawler.ErrConfig)
	}
	if c.Scheduler.IdleTimeoutSeconds < 0 {
		return fmt.Errorf("%w: scheduler.idle_timeout_seconds must be >= 0", crawler.ErrConfig)
	}
	if c.IdleTimeout() > 0 && c.IdleTimeout() <= 2*c.DownloadDelay() {
		return fmt.Errorf("%w: scheduler.idle_timeout_seconds must exceed twice the download delay", crawler.ErrConfig)
	}
	if !oneOf(c.Downloader.Transport, Transports) {
		return fmt.Errorf("%w: downloader.transport must be one of %v", crawler.ErrConfig, Transports)
	}
	if c.Downloader.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: downloader.timeout_seconds must be > 0", crawler.ErrConfig)
	}
	if c.Downloader.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: downloader.rate_limit.requests_per_second must be >= 0", crawler.ErrConfig)
	}
	if c.Downloader.Transport != "colly" && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("%w: headless.max_parallel must be > 0 when the headless transport is used", crawler.ErrConfig)
	}
	if err := allKnown("downloader.middleware_list", c.Downloader.MiddlewareList, Middlewares); err != nil {
		return err
	}
	if err := allKnown("pipeline.element_list", c.Pipeline.ElementList, Elements); err != nil {
		return err
	}
	if err := allKnown("pipeline.sinks", c.Pipeline.Sinks, Sinks); err != nil {
		return err
	}
	if err := c.validateSinks(); err != nil {
		return err
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("%w: server.port must be > 0", crawler.ErrConfig)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: telemetry.sample_ratio must be within [0, 1]", crawler.ErrConfig)
	}
	return nil
}

func (c Config) validateSinks() error {
	for _, sink := range c.Pipeline.Sinks {
		switch sink {
		case "blob":
			if !oneOf(c.Storage.Backend, Backends) {
				return fmt.Errorf("%w: storage.backend must be one of %v", crawler.ErrConfig, Backends)
			}
			if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
				return fmt.Errorf("%w: storage.gcs_bucket must be set for the gcs backend", crawler.ErrConfig)
			}
		case "pubsub":
			if c.PubSub.ProjectID == "" || c.PubSub.TopicName == "" {
				return fmt.Errorf("%w: pubsub.project_id and pubsub.topic_name must be set for the pubsub sink", crawler.ErrConfig)
			}
		case "postgres":
			if c.DB.DSN == "" {
				return fmt.Errorf("%w: db.dsn must be set for the postgres sink", crawler.ErrConfig)
			}
		case "sqlite":
			if c.SQLite.Path == "" {
				return fmt.Errorf("%w: sqlite.path must be set for the sqlite sink", crawler.ErrConfig)
			}
		}
	}
	return nil
}

// Strategy returns the parsed crawl strategy. Validate has already checked it.
func (c Config) Strategy() crawler.Strategy {
	s, _ := crawler.ParseStrategy(c.Scheduler.Strategy)
	return s
}

// DownloadDelay converts the configured delay into a duration.
func (c Config) DownloadDelay() time.Duration {
	return time.Duration(c.Scheduler.DownloadDelayMs) * time.Millisecond
}

// IdleTimeout is zero when idle shutdown is disabled.
func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.Scheduler.IdleTimeoutSeconds) * time.Second
}

// FetchTimeout bounds a single transport call.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Downloader.TimeoutSeconds) * time.Second
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func allKnown(key string, values, allowed []string) error {
	for _, v := range values {
		if !oneOf(v, allowed) {
			return fmt.Errorf("%w: %s: unknown entry %q (allowed %v)", crawler.ErrConfig, key, v, allowed)
		}
	}
	return nil
}
