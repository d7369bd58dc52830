package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"webpdf/internal/tiler"
)

// Config aggregates application settings sourced from environment variables
// and optional command line flags.
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Render RenderConfig `mapstructure:"render"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Jobs   JobsConfig   `mapstructure:"jobs"`
	MinIO  MinIOConfig  `mapstructure:"minio"`
	Log    LogConfig    `mapstructure:"log"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	APIKey         string   `mapstructure:"api_key"`
	APIKeyHash     string   `mapstructure:"api_key_hash"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
}

// RenderConfig tunes the headless browser and the conversion pipelines.
type RenderConfig struct {
	BrowserBin        string        `mapstructure:"browser_bin"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	IgnoreHTTPSErrors bool          `mapstructure:"ignore_https_errors"`
	MaxPages          int           `mapstructure:"max_pages"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleTimeout     time.Duration `mapstructure:"settle_timeout"`
	ConversionTimeout time.Duration `mapstructure:"conversion_timeout"`
	MaxContentHeight  int           `mapstructure:"max_content_height"`
	OverflowPolicy    string        `mapstructure:"overflow_policy"`
}

// HeightLimit returns the configured content height bound.
func (r RenderConfig) HeightLimit() tiler.HeightLimit {
	policy, err := tiler.ParseOverflowPolicy(r.OverflowPolicy)
	if err != nil {
		policy = tiler.OverflowClip
	}
	return tiler.HeightLimit{Max: r.MaxContentHeight, Policy: policy}
}

// CacheConfig controls the Redis PDF cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// JobsConfig controls asynchronous conversions.
type JobsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Queue       string        `mapstructure:"queue"`
	Concurrency int           `mapstructure:"concurrency"`
	ResultTTL   time.Duration `mapstructure:"result_ttl"`
	MaxRetry    int           `mapstructure:"max_retry"`

	// SubmitPerMinute caps job submissions per client IP; 0 disables the cap.
	SubmitPerMinute int `mapstructure:"submit_per_minute"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string        `mapstructure:"endpoint"`
	PublicEndpoint   string        `mapstructure:"public_endpoint"`
	AccessKeyID      string        `mapstructure:"access_key_id"`
	SecretAccessKey  string        `mapstructure:"secret_access_key"`
	UseSSL           bool          `mapstructure:"use_ssl"`
	Bucket           string        `mapstructure:"bucket"`
	Region           string        `mapstructure:"region"`
	AutoCreateBucket bool          `mapstructure:"auto_create_bucket"`
	BucketLookup     string        `mapstructure:"bucket_lookup"`
	PresignTTL       time.Duration `mapstructure:"presign_ttl"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RegisterFlags adds the command line overrides understood by Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int("port", 0, "HTTP listen port (overrides API_PORT)")
	fs.String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	fs.String("browser-bin", "", "path to a Chromium binary (overrides RENDER_BROWSER_BIN)")
}

// Load reads configuration from environment variables. Flags registered with
// RegisterFlags and explicitly set on fs take precedence; fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}
	if err := bindFlags(v, fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.AllowedOrigins = splitList(cfg.API.AllowedOrigins)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad(fs *pflag.FlagSet) *Config {
	cfg, err := Load(fs)
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.allowed_origins", []string{
		"https://emotive.g3nia.com",
		"http://localhost:3000",
		"http://localhost:8000",
	})
	v.SetDefault("api.rate_limit_rps", 0)
	v.SetDefault("api.rate_limit_burst", 10)
	v.SetDefault("api.max_body_bytes", 10<<20)
	v.SetDefault("render.no_sandbox", true)
	v.SetDefault("render.ignore_https_errors", true)
	v.SetDefault("render.max_pages", 0)
	v.SetDefault("render.navigation_timeout", 60*time.Second)
	v.SetDefault("render.settle_timeout", 10*time.Second)
	v.SetDefault("render.conversion_timeout", 3*time.Minute)
	v.SetDefault("render.max_content_height", tiler.DefaultMaxHeight)
	v.SetDefault("render.overflow_policy", string(tiler.OverflowClip))
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("jobs.enabled", false)
	v.SetDefault("jobs.queue", "pdf")
	v.SetDefault("jobs.concurrency", 2)
	v.SetDefault("jobs.result_ttl", 24*time.Hour)
	v.SetDefault("jobs.max_retry", 3)
	v.SetDefault("jobs.submit_per_minute", 30)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "webpdf")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("minio.bucket_lookup", "auto")
	v.SetDefault("minio.presign_ttl", 15*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                   "API_PORT",
		"api.allowed_origins":        "API_ALLOWED_ORIGINS",
		"api.api_key":                "API_KEY",
		"api.api_key_hash":           "API_KEY_HASH",
		"api.rate_limit_rps":         "API_RATE_LIMIT_RPS",
		"api.rate_limit_burst":       "API_RATE_LIMIT_BURST",
		"api.max_body_bytes":         "API_MAX_BODY_BYTES",
		"render.browser_bin":         "RENDER_BROWSER_BIN",
		"render.no_sandbox":          "RENDER_NO_SANDBOX",
		"render.ignore_https_errors": "RENDER_IGNORE_HTTPS_ERRORS",
		"render.max_pages":           "RENDER_MAX_PAGES",
		"render.navigation_timeout":  "RENDER_NAVIGATION_TIMEOUT",
		"render.settle_timeout":      "RENDER_SETTLE_TIMEOUT",
		"render.conversion_timeout":  "RENDER_CONVERSION_TIMEOUT",
		"render.max_content_height":  "RENDER_MAX_CONTENT_HEIGHT",
		"render.overflow_policy":     "RENDER_OVERFLOW_POLICY",
		"cache.enabled":              "CACHE_ENABLED",
		"cache.ttl":                  "CACHE_TTL",
		"redis.host":                 "REDIS_HOST",
		"redis.port":                 "REDIS_PORT",
		"redis.password":             "REDIS_PASSWORD",
		"redis.db":                   "REDIS_DB",
		"jobs.enabled":               "JOBS_ENABLED",
		"jobs.queue":                 "JOBS_QUEUE",
		"jobs.concurrency":           "JOBS_CONCURRENCY",
		"jobs.result_ttl":            "JOBS_RESULT_TTL",
		"jobs.max_retry":             "JOBS_MAX_RETRY",
		"jobs.submit_per_minute":     "JOBS_SUBMIT_PER_MINUTE",
		"minio.endpoint":             "MINIO_ENDPOINT",
		"minio.public_endpoint":      "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":        "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":    "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":              "MINIO_USE_SSL",
		"minio.bucket":               "MINIO_BUCKET",
		"minio.region":               "MINIO_REGION",
		"minio.auto_create_bucket":   "MINIO_AUTO_CREATE_BUCKET",
		"minio.bucket_lookup":        "MINIO_BUCKET_LOOKUP",
		"minio.presign_ttl":          "MINIO_PRESIGN_TTL",
		"log.level":                  "LOG_LEVEL",
		"log.format":                 "LOG_FORMAT",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	if fs == nil {
		return nil
	}
	mappings := map[string]string{
		"api.port":           "port",
		"log.level":          "log-level",
		"render.browser_bin": "browser-bin",
	}
	for key, name := range mappings {
		flag := fs.Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag --%s to %s: %w", name, key, err)
		}
	}
	return nil
}

// splitList flattens comma separated entries, which is how a list arrives
// from a single environment variable.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return errors.New("api port must be between 1 and 65535")
	}
	if cfg.API.APIKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.API.APIKeyHash)); err != nil {
			return fmt.Errorf("api key hash is not a bcrypt hash: %w", err)
		}
	}
	if cfg.API.RateLimitRPS < 0 {
		return errors.New("api rate limit must not be negative")
	}
	if cfg.API.RateLimitRPS > 0 && cfg.API.RateLimitBurst <= 0 {
		return errors.New("api rate limit burst must be positive")
	}
	if cfg.API.MaxBodyBytes <= 0 {
		return errors.New("api max body bytes must be positive")
	}
	if cfg.Render.MaxPages < 0 {
		return errors.New("render max pages must not be negative")
	}
	if cfg.Render.NavigationTimeout <= 0 || cfg.Render.SettleTimeout <= 0 {
		return errors.New("render timeouts must be positive")
	}
	if cfg.Render.MaxContentHeight <= 0 {
		return errors.New("render max content height must be positive")
	}
	if _, err := tiler.ParseOverflowPolicy(cfg.Render.OverflowPolicy); err != nil {
		return fmt.Errorf("render overflow policy: %w", err)
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Log.Format)
	}

	if cfg.Cache.Enabled || cfg.Jobs.Enabled {
		if cfg.Redis.Host == "" {
			return errors.New("redis host is required")
		}
		if cfg.Redis.Port <= 0 {
			return errors.New("redis port must be positive")
		}
	}
	if cfg.Cache.Enabled && cfg.Cache.TTL <= 0 {
		return errors.New("cache ttl must be positive")
	}

	if !cfg.Jobs.Enabled {
		return nil
	}
	if cfg.Jobs.Queue == "" {
		return errors.New("jobs queue is required")
	}
	if cfg.Jobs.Concurrency <= 0 {
		return errors.New("jobs concurrency must be positive")
	}
	if cfg.Jobs.ResultTTL <= 0 {
		return errors.New("jobs result ttl must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.Bucket == "" {
		return errors.New("minio bucket is required")
	}
	return nil
}
