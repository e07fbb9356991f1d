package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	ListenAddr       string `yaml:"listen_addr"`
	GeminiAPIKey     string `yaml:"gemini_api_key"`
	GeminiModel      string `yaml:"gemini_model"`
	GeminiChatModel  string `yaml:"gemini_chat_model"`
	GitHubToken      string `yaml:"github_token"`
	PollInterval     string `yaml:"poll_interval"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	ThinkingBudget   int    `yaml:"thinking_budget"`
	TelegramToken    string `yaml:"telegram_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`
	DBPath           string `yaml:"db_path"`
	LogLevel         string `yaml:"log_level"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("DEVPULSE_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// PollIntervalDuration returns the poll interval as a time.Duration.
// Call only after Load has validated the config.
func (c *Config) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// NotifyEnabled reports whether the Telegram release notifier is configured.
func (c *Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.GeminiModel == "" {
		cfg.GeminiModel = "gemini-2.0-flash"
	}
	if cfg.GeminiChatModel == "" {
		cfg.GeminiChatModel = cfg.GeminiModel
	}
	if cfg.PollInterval == "" {
		cfg.PollInterval = "1h"
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 30
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./devpulse.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.GeminiAPIKey = key
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHubToken = token
	}
	if dbPath := os.Getenv("DEVPULSE_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if addr := os.Getenv("DEVPULSE_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
}

func validate(cfg *Config) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("gemini_api_key is required")
	}
	d, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return fmt.Errorf("invalid poll_interval %q: %w", cfg.PollInterval, err)
	}
	if d < time.Minute {
		return fmt.Errorf("poll_interval must be at least 1m, got %q", cfg.PollInterval)
	}
	if cfg.ThinkingBudget < 0 {
		return fmt.Errorf("thinking_budget must not be negative, got %d", cfg.ThinkingBudget)
	}
	return nil
}
