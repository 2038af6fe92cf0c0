// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Location LocationConfig `mapstructure:"location"`
	DB       DBConfig       `mapstructure:"db"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Mailer   MailerConfig   `mapstructure:"mailer"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// GitHubConfig governs the directory API client and token pool.
type GitHubConfig struct {
	Tokens          []string `mapstructure:"tokens"`
	BaseURL         string   `mapstructure:"base_url"`
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
	MaxAttempts     int      `mapstructure:"max_attempts"`
	RateLimitPauseS int      `mapstructure:"rate_limit_pause_seconds"`
	RepoScanLimit   int      `mapstructure:"repo_scan_limit"`
	CommitScanLimit int      `mapstructure:"commit_scan_limit"`
}

// CrawlConfig governs the orchestrator loop.
type CrawlConfig struct {
	PageSize    int    `mapstructure:"page_size"`
	Concurrency int    `mapstructure:"concurrency"`
	Schedule    string `mapstructure:"schedule"`
}

// LocationConfig selects and keys the location resolution provider.
type LocationConfig struct {
	Provider     string `mapstructure:"provider"`
	RegionCode   string `mapstructure:"region_code"`
	Retries      int    `mapstructure:"retries"`
	OpenCageKey  string `mapstructure:"opencage_key"`
	GoogleKey    string `mapstructure:"google_key"`
	AnthropicKey string `mapstructure:"anthropic_key"`
	GeminiKey    string `mapstructure:"gemini_key"`
	ClaudeModel  string `mapstructure:"claude_model"`
	GeminiModel  string `mapstructure:"gemini_model"`
	UserAgent    string `mapstructure:"user_agent"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// QueueConfig holds metadata for saved-user event publishing.
type QueueConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ArchiveConfig sets the destination for raw detail payload blobs.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	BaseDir   string `mapstructure:"base_dir"`
}

// MailerConfig configures the outreach mailer boundary.
type MailerConfig struct {
	Provider      string `mapstructure:"provider"`
	ChromeProfile string `mapstructure:"chrome_profile"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GITSCOUT")
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

	// Tokens may arrive as a single comma-separated env value.
	if len(cfg.GitHub.Tokens) == 1 && strings.Contains(cfg.GitHub.Tokens[0], ",") {
		cfg.GitHub.Tokens = splitTokens(cfg.GitHub.Tokens[0])
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func splitTokens(raw string) []string {
	parts := strings.Split(raw, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.timeout_seconds", 30)
	v.SetDefault("github.max_attempts", 3)
	v.SetDefault("github.rate_limit_pause_seconds", 60)
	v.SetDefault("github.repo_scan_limit", 5)
	v.SetDefault("github.commit_scan_limit", 10)
	v.SetDefault("crawl.page_size", 100)
	v.SetDefault("crawl.concurrency", 100)
	v.SetDefault("location.provider", "nominatim")
	v.SetDefault("location.region_code", "IR")
	v.SetDefault("location.retries", 2)
	v.SetDefault("location.claude_model", "claude-3-haiku-20240307")
	v.SetDefault("location.gemini_model", "gemini-2.0-flash")
	v.SetDefault("location.user_agent", "gitscout/1.0")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("queue.provider", "noop")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("mailer.provider", "noop")
	v.SetDefault("mailer.nav_timeout_seconds", 45)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.GitHub.TimeoutSeconds <= 0 {
		return fmt.Errorf("github.timeout_seconds must be > 0")
	}
	if c.GitHub.MaxAttempts <= 0 {
		return fmt.Errorf("github.max_attempts must be > 0")
	}
	if c.Crawl.PageSize <= 0 {
		return fmt.Errorf("crawl.page_size must be > 0")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	switch c.Location.Provider {
	case "nominatim", "opencage", "google", "claude", "gemini":
	default:
		return fmt.Errorf("location.provider %q is not supported", c.Location.Provider)
	}
	if c.Location.Provider == "opencage" && c.Location.OpenCageKey == "" {
		return fmt.Errorf("location.opencage_key must be set for the opencage provider")
	}
	if c.Location.Provider == "google" && c.Location.GoogleKey == "" {
		return fmt.Errorf("location.google_key must be set for the google provider")
	}
	if c.Location.Provider == "claude" && c.Location.AnthropicKey == "" {
		return fmt.Errorf("location.anthropic_key must be set for the claude provider")
	}
	if c.Location.Provider == "gemini" && c.Location.GeminiKey == "" {
		return fmt.Errorf("location.gemini_key must be set for the gemini provider")
	}
	if c.Queue.Provider == "pubsub" && (c.Queue.ProjectID == "" || c.Queue.TopicID == "") {
		return fmt.Errorf("queue.project_id and queue.topic_id must be set for the pubsub provider")
	}
	if c.Archive.Provider == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set for the gcs provider")
	}
	if c.Archive.Provider == "local" && c.Archive.BaseDir == "" {
		return fmt.Errorf("archive.base_dir must be set for the local provider")
	}
	if c.Mailer.Provider == "chromedp" && c.Mailer.ChromeProfile == "" {
		return fmt.Errorf("mailer.chrome_profile must be set for the chromedp provider")
	}
	return nil
}

// HTTPTimeout converts the configured GitHub timeout into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// RateLimitPause is the wait applied when a rate limit carries no reset time.
func (c Config) RateLimitPause() time.Duration {
	return time.Duration(c.GitHub.RateLimitPauseS) * time.Second
}
