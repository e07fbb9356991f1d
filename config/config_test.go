package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
gemini_api_key: "test-key"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Check defaults are applied
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("GeminiModel = %q, want %q", cfg.GeminiModel, "gemini-2.0-flash")
	}
	if cfg.GeminiChatModel != "gemini-2.0-flash" {
		t.Errorf("GeminiChatModel = %q, want %q", cfg.GeminiChatModel, "gemini-2.0-flash")
	}
	if cfg.PollInterval != "1h" {
		t.Errorf("PollInterval = %q, want %q", cfg.PollInterval, "1h")
	}
	if cfg.FetchTimeoutSecs != 30 {
		t.Errorf("FetchTimeoutSecs = %d, want %d", cfg.FetchTimeoutSecs, 30)
	}
	if cfg.DBPath != "./devpulse.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./devpulse.db")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.NotifyEnabled() {
		t.Error("NotifyEnabled() = true without telegram settings")
	}
}

func TestLoadOverrideDefaults(t *testing.T) {
	configPath := writeConfig(t, `
gemini_api_key: "test-key"
gemini_model: "gemini-2.5-pro"
gemini_chat_model: "gemini-2.5-flash"
listen_addr: ":9090"
poll_interval: "30m"
fetch_timeout_secs: 10
thinking_budget: 1024
telegram_token: "bot-token"
telegram_chat_id: 123456
db_path: "/data/devpulse.db"
log_level: "debug"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GeminiModel != "gemini-2.5-pro" {
		t.Errorf("GeminiModel = %q, want %q", cfg.GeminiModel, "gemini-2.5-pro")
	}
	if cfg.GeminiChatModel != "gemini-2.5-flash" {
		t.Errorf("GeminiChatModel = %q, want %q", cfg.GeminiChatModel, "gemini-2.5-flash")
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if got := cfg.PollIntervalDuration(); got != 30*time.Minute {
		t.Errorf("PollIntervalDuration() = %v, want %v", got, 30*time.Minute)
	}
	if cfg.ThinkingBudget != 1024 {
		t.Errorf("ThinkingBudget = %d, want %d", cfg.ThinkingBudget, 1024)
	}
	if !cfg.NotifyEnabled() {
		t.Error("NotifyEnabled() = false with telegram settings")
	}
}

func TestLoadMissingGeminiKey(t *testing.T) {
	configPath := writeConfig(t, `
listen_addr: ":8080"
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected error for missing gemini_api_key")
	}
}

func TestLoadInvalidPollInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
	}{
		{"unparseable", "soon"},
		{"too short", "10s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, `
gemini_api_key: "test-key"
poll_interval: "`+tt.interval+`"
`)
			if _, err := Load(configPath); err == nil {
				t.Fatalf("expected error for poll_interval %q", tt.interval)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
gemini_api_key: "file-key"
`)

	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("DEVPULSE_DB", "/env/devpulse.db")
	t.Setenv("DEVPULSE_ADDR", ":7070")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.GeminiAPIKey != "env-key" {
		t.Errorf("GeminiAPIKey = %q, want %q", cfg.GeminiAPIKey, "env-key")
	}
	if cfg.DBPath != "/env/devpulse.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/env/devpulse.db")
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":7070")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("DEVPULSE_CONFIG", "/etc/devpulse/config.yaml")
	if got := GetConfigPath(); got != "/etc/devpulse/config.yaml" {
		t.Errorf("GetConfigPath() = %q, want %q", got, "/etc/devpulse/config.yaml")
	}
}
