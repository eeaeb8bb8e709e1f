package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/teemow/notetaker/internal/google"
	"github.com/teemow/notetaker/internal/recall"
	"github.com/teemow/notetaker/internal/store"
)

// Config holds the process configuration. Every field can be set through
// the environment variable named in its tag or the same key in a config
// file.
type Config struct {
	DatabaseDriver string `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL    string `mapstructure:"DATABASE_URL"`

	CalendarProvider   string `mapstructure:"CALENDAR_PROVIDER"`
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	RecallAPIKey          string        `mapstructure:"RECALL_API_KEY"`
	RecallBaseURL         string        `mapstructure:"RECALL_BASE_URL"`
	RecallTimeout         time.Duration `mapstructure:"RECALL_TIMEOUT"`
	RecallDownloadTimeout time.Duration `mapstructure:"RECALL_DOWNLOAD_TIMEOUT"`

	JoinInterval       time.Duration `mapstructure:"SCHEDULER_JOIN_INTERVAL"`
	CompletionInterval time.Duration `mapstructure:"SCHEDULER_COMPLETION_INTERVAL"`
	SyncInterval       time.Duration `mapstructure:"SCHEDULER_SYNC_INTERVAL"`
	MaxRetries         int           `mapstructure:"SCHEDULER_MAX_RETRIES"`
	RetryDelay         time.Duration `mapstructure:"SCHEDULER_RETRY_DELAY"`
	JoinTolerance      time.Duration `mapstructure:"SCHEDULER_JOIN_TOLERANCE"`
	DefaultLeadMinutes int           `mapstructure:"DEFAULT_LEAD_MINUTES"`

	SyncWindow     time.Duration `mapstructure:"SYNC_WINDOW"`
	SyncMaxResults int           `mapstructure:"SYNC_MAX_RESULTS"`

	QueueURL          string `mapstructure:"QUEUE_URL"`
	QueueName         string `mapstructure:"QUEUE_NAME"`
	WorkerConcurrency int    `mapstructure:"WORKER_CONCURRENCY"`

	HTTPAddr           string   `mapstructure:"HTTP_ADDR"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	MetricsEnabled     bool     `mapstructure:"METRICS_ENABLED"`
	MetricsAddr        string   `mapstructure:"METRICS_ADDR"`

	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"DATABASE_DRIVER":               store.DriverPostgres,
	"DATABASE_URL":                  "",
	"CALENDAR_PROVIDER":             "google",
	"GOOGLE_CLIENT_ID":              "",
	"GOOGLE_CLIENT_SECRET":          "",
	"GOOGLE_REDIRECT_URL":           "",
	"RECALL_API_KEY":                "",
	"RECALL_BASE_URL":               recall.DefaultBaseURL,
	"RECALL_TIMEOUT":                recall.DefaultTimeout,
	"RECALL_DOWNLOAD_TIMEOUT":       recall.DefaultDownloadTimeout,
	"SCHEDULER_JOIN_INTERVAL":       2 * time.Minute,
	"SCHEDULER_COMPLETION_INTERVAL": 5 * time.Minute,
	"SCHEDULER_SYNC_INTERVAL":       15 * time.Minute,
	"SCHEDULER_MAX_RETRIES":         3,
	"SCHEDULER_RETRY_DELAY":         60 * time.Second,
	"SCHEDULER_JOIN_TOLERANCE":      2 * time.Minute,
	"DEFAULT_LEAD_MINUTES":          store.DefaultLeadMinutes,
	"SYNC_WINDOW":                   30 * 24 * time.Hour,
	"SYNC_MAX_RESULTS":              50,
	"QUEUE_URL":                     "",
	"QUEUE_NAME":                    "notetaker.jobs",
	"WORKER_CONCURRENCY":            2,
	"HTTP_ADDR":                     ":8080",
	"CORS_ALLOWED_ORIGINS":          []string{},
	"METRICS_ENABLED":               true,
	"METRICS_ADDR":                  ":9090",
	"LOG_FORMAT":                    "",
	"LOG_LEVEL":                     "info",
}

// Load reads the configuration. A .env file in the working directory is
// loaded first without overriding variables already set. path names an
// optional config file (yaml, json, toml or .env); environment variables
// take precedence over its values.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.CORSAllowedOrigins = splitOrigins(cfg.CORSAllowedOrigins)
	return &cfg, nil
}

// splitOrigins accepts both a list and a single comma-separated value.
func splitOrigins(in []string) []string {
	var out []string
	for _, v := range in {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}

// Validate reports every missing or invalid value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	switch c.DatabaseDriver {
	case store.DriverPostgres, "postgresql", store.DriverSQLite, "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not supported, use postgres or sqlite", c.DatabaseDriver))
	}
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required"))
	}
	if c.RecallAPIKey == "" {
		errs = append(errs, errors.New("RECALL_API_KEY is required"))
	}
	if c.JoinInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_JOIN_INTERVAL must be positive"))
	}
	if c.CompletionInterval <= 0 {
		errs = append(errs, errors.New("SCHEDULER_COMPLETION_INTERVAL must be positive"))
	}
	if c.SyncInterval < 0 {
		errs = append(errs, errors.New("SCHEDULER_SYNC_INTERVAL must not be negative"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("SCHEDULER_MAX_RETRIES must not be negative"))
	}
	if c.JoinTolerance <= 0 {
		errs = append(errs, errors.New("SCHEDULER_JOIN_TOLERANCE must be positive"))
	}
	if c.DefaultLeadMinutes < 0 {
		errs = append(errs, errors.New("DEFAULT_LEAD_MINUTES must not be negative"))
	}
	if c.SyncMaxResults <= 0 {
		errs = append(errs, errors.New("SYNC_MAX_RESULTS must be positive"))
	}
	if c.WorkerConcurrency <= 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY must be positive"))
	}
	return errors.Join(errs...)
}

// Google returns the OAuth client configuration.
func (c *Config) Google() google.Config {
	return google.Config{
		ClientID:     c.GoogleClientID,
		ClientSecret: c.GoogleClientSecret,
		RedirectURL:  c.GoogleRedirectURL,
	}
}

// Recall returns the recording provider client options without the
// process-wide metrics and logger.
func (c *Config) Recall() recall.Options {
	return recall.Options{
		BaseURL:         c.RecallBaseURL,
		APIKey:          c.RecallAPIKey,
		Timeout:         c.RecallTimeout,
		DownloadTimeout: c.RecallDownloadTimeout,
	}
}
