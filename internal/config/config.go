package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the JobQuest watcher.
type Config struct {
	Schedule     ScheduleConfig
	Source       SourceConfig
	Retry        RetryConfig
	AI           AIConfig
	Notification NotificationConfig
	Storage      StorageConfig
}

// ScheduleConfig controls the evaluation loop.
type ScheduleConfig struct {
	Interval     time.Duration // gap between scheduler passes
	AlertStagger time.Duration // pause between alerts within one pass
}

// SourceConfig controls the job-board crawler.
type SourceConfig struct {
	BaseURL        string        // override for the search endpoint; empty uses the default
	PageDelay      time.Duration // politeness gap between page fetches
	Timeout        time.Duration // per-request timeout
	MaxPages       int           // crawl depth per alert cycle; 0 = to the pagination ceiling
	MaxSearchPages int           // crawl depth for ad-hoc searches
}

// RetryConfig controls the transient-failure retry decorator.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// AIConfig controls the optional relevance-classification layer.
type AIConfig struct {
	Enabled    bool
	Provider   string        // "gemini" or "openai"
	BaseURL    string        // defaults per provider
	Model      string        // model identifier, e.g. "gemini-2.0-flash"
	APIKey     string        // expanded from env var by Load
	BatchDelay time.Duration // gap between classification calls
	Timeout    time.Duration // per-request timeout
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type         string        // "log" or "telegram"
	BotToken     string        // required if type is "telegram"
	MessageDelay time.Duration // per-chat gap between outbound messages
}

// StorageConfig controls the SQLite database location.
type StorageConfig struct {
	Path string
}

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations
// as strings).
type rawConfig struct {
	Schedule     rawScheduleConfig     `yaml:"schedule"`
	Source       rawSourceConfig       `yaml:"source"`
	Retry        rawRetryConfig        `yaml:"retry"`
	AI           rawAIConfig           `yaml:"ai"`
	Notification rawNotificationConfig `yaml:"notification"`
	Storage      rawStorageConfig      `yaml:"storage"`
}

type rawScheduleConfig struct {
	Interval     string `yaml:"interval"`
	AlertStagger string `yaml:"alert_stagger"`
}

type rawSourceConfig struct {
	BaseURL        string `yaml:"base_url"`
	PageDelay      string `yaml:"page_delay"`
	Timeout        string `yaml:"timeout"`
	MaxPages       *int   `yaml:"max_pages"`
	MaxSearchPages *int   `yaml:"max_search_pages"`
}

type rawRetryConfig struct {
	MaxRetries *int   `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
}

type rawAIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Provider   string `yaml:"provider"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	BatchDelay string `yaml:"batch_delay"`
	Timeout    string `yaml:"timeout"`
}

type rawNotificationConfig struct {
	Type         string `yaml:"type"`
	BotToken     string `yaml:"bot_token"`
	MessageDelay string `yaml:"message_delay"`
}

type rawStorageConfig struct {
	Path string `yaml:"path"`
}

// Load reads and parses the YAML config file at path, validates it, and
// returns Config. A .env file next to the working directory is loaded
// first so ${VAR} references in the YAML can resolve.
func Load(path string) (*Config, error) {
	// Missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		Schedule: ScheduleConfig{
			Interval:     30 * time.Minute,
			AlertStagger: 5 * time.Second,
		},
		Source: SourceConfig{
			BaseURL:        raw.Source.BaseURL,
			PageDelay:      1500 * time.Millisecond,
			Timeout:        10 * time.Second,
			MaxPages:       0,
			MaxSearchPages: 5,
		},
		Retry: RetryConfig{
			MaxRetries: 2,
			BaseDelay:  5 * time.Second,
		},
		AI: AIConfig{
			Enabled:    raw.AI.Enabled,
			Provider:   raw.AI.Provider,
			BaseURL:    raw.AI.BaseURL,
			Model:      raw.AI.Model,
			APIKey:     raw.AI.APIKey,
			BatchDelay: 500 * time.Millisecond,
			Timeout:    30 * time.Second,
		},
		Notification: NotificationConfig{
			Type:         raw.Notification.Type,
			BotToken:     raw.Notification.BotToken,
			MessageDelay: 1200 * time.Millisecond,
		},
		Storage: StorageConfig{
			Path: raw.Storage.Path,
		},
	}

	if err := overrideDuration(&cfg.Schedule.Interval, raw.Schedule.Interval, "schedule.interval"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Schedule.AlertStagger, raw.Schedule.AlertStagger, "schedule.alert_stagger"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Source.PageDelay, raw.Source.PageDelay, "source.page_delay"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Source.Timeout, raw.Source.Timeout, "source.timeout"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Retry.BaseDelay, raw.Retry.BaseDelay, "retry.base_delay"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.AI.BatchDelay, raw.AI.BatchDelay, "ai.batch_delay"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.AI.Timeout, raw.AI.Timeout, "ai.timeout"); err != nil {
		return nil, err
	}
	if err := overrideDuration(&cfg.Notification.MessageDelay, raw.Notification.MessageDelay, "notification.message_delay"); err != nil {
		return nil, err
	}

	if raw.Source.MaxPages != nil {
		cfg.Source.MaxPages = *raw.Source.MaxPages
	}
	if raw.Source.MaxSearchPages != nil {
		cfg.Source.MaxSearchPages = *raw.Source.MaxSearchPages
	}
	if raw.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *raw.Retry.MaxRetries
	}

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.BaseURL == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.BaseURL = defaultGeminiBaseURL
		case "openai":
			cfg.AI.BaseURL = defaultOpenAIBaseURL
		}
	}
	if cfg.Notification.Type == "" {
		cfg.Notification.Type = "log"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "job_alerts.db"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// overrideDuration replaces *dst with the parsed raw value when set.
func overrideDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

func validate(cfg *Config) error {
	if cfg.Schedule.Interval <= 0 {
		return fmt.Errorf("schedule.interval must be positive, got %v", cfg.Schedule.Interval)
	}
	if cfg.Source.MaxPages < 0 {
		return fmt.Errorf("source.max_pages must not be negative, got %d", cfg.Source.MaxPages)
	}
	if cfg.Source.MaxSearchPages <= 0 {
		return fmt.Errorf("source.max_search_pages must be positive, got %d", cfg.Source.MaxSearchPages)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", cfg.Retry.MaxRetries)
	}

	switch cfg.Notification.Type {
	case "log":
	case "telegram":
		if cfg.Notification.BotToken == "" {
			return fmt.Errorf("notification.bot_token is required when type is \"telegram\"")
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"telegram\", got %q", cfg.Notification.Type)
	}

	if cfg.AI.Enabled {
		if cfg.AI.Provider != "gemini" && cfg.AI.Provider != "openai" {
			return fmt.Errorf("ai.provider must be \"gemini\" or \"openai\", got %q", cfg.AI.Provider)
		}
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key is required when ai.enabled is true")
		}
		if cfg.AI.Model == "" {
			return fmt.Errorf("ai.model is required when ai.enabled is true")
		}
	}

	return nil
}
