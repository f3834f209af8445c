package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"podigest/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GROQ_TOKEN", "HF_TOKEN", "BOT_TOKEN", "CHAT_ID", "LOG_LEVEL",
		"USE_PROXY", "PROXY_FILE", "TEST_PROXIES_ON_STARTUP", "MAX_PROXIES_TO_TEST",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantEpisodes := filepath.Join(tempHome, ".local", "share", "podigest", "episodes")
	if cfg.Paths.EpisodesDir != wantEpisodes {
		t.Fatalf("unexpected episodes dir: got %q want %q", cfg.Paths.EpisodesDir, wantEpisodes)
	}
	if cfg.Paths.ProxyFile != filepath.Join(tempHome, ".config", "podigest", "proxies.txt") {
		t.Fatalf("unexpected proxy file: %q", cfg.Paths.ProxyFile)
	}
	if !cfg.Proxy.Enabled || !cfg.Proxy.TestOnStartup {
		t.Fatal("expected proxy pool enabled and tested on startup by default")
	}
	if cfg.Proxy.MaxToTest != 20 || cfg.Proxy.FallbackBudget != 20 {
		t.Fatalf("unexpected proxy budgets: %+v", cfg.Proxy)
	}
	if cfg.Download.MaxProxyAttempts != 3 || cfg.Download.MaxAppRetries != 3 || cfg.Download.TransportRetries != 3 {
		t.Fatalf("unexpected download budgets: %+v", cfg.Download)
	}
	if cfg.Summarization.Primary.Configured() {
		t.Fatal("expected primary provider to lack credentials by default")
	}
	if cfg.Publish.Configured() {
		t.Fatal("expected publisher unconfigured by default")
	}
	if cfg.Transcription.Model != "base.en" {
		t.Fatalf("unexpected whisper model %q", cfg.Transcription.Model)
	}
}

func TestLoadAppliesEnvironmentFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GROQ_TOKEN", "groq-key")
	t.Setenv("HF_TOKEN", "hf-key")
	t.Setenv("BOT_TOKEN", "bot")
	t.Setenv("CHAT_ID", "@channel")
	t.Setenv("USE_PROXY", "false")
	t.Setenv("MAX_PROXIES_TO_TEST", "5")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Summarization.Primary.APIKey != "groq-key" || cfg.Summarization.Fallback.APIKey != "hf-key" {
		t.Fatalf("expected provider keys from env, got %q/%q", cfg.Summarization.Primary.APIKey, cfg.Summarization.Fallback.APIKey)
	}
	if !cfg.Publish.Configured() {
		t.Fatal("expected publisher configured from env")
	}
	if cfg.Proxy.Enabled {
		t.Fatal("expected USE_PROXY=false to disable the pool")
	}
	if cfg.Proxy.MaxToTest != 5 {
		t.Fatalf("expected MAX_PROXIES_TO_TEST override, got %d", cfg.Proxy.MaxToTest)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidBooleanEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USE_PROXY", "sometimes")

	if _, _, _, err := config.Load(""); err == nil || !strings.Contains(err.Error(), "USE_PROXY") {
		t.Fatalf("expected USE_PROXY parse error, got %v", err)
	}
}

func TestLoadCustomFile(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "custom.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"episodes_dir": "~/audio",
		},
		"download": map[string]any{
			"max_proxy_attempts": 5,
		},
		"schedule": map[string]any{
			"process_cron": "*/30 * * * *",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.EpisodesDir != filepath.Join(tempHome, "audio") {
		t.Fatalf("unexpected episodes dir %q", cfg.Paths.EpisodesDir)
	}
	if cfg.Download.MaxProxyAttempts != 5 {
		t.Fatalf("expected max_proxy_attempts 5, got %d", cfg.Download.MaxProxyAttempts)
	}
	if cfg.Download.MaxAppRetries != 3 {
		t.Fatalf("expected unset values to keep defaults, got %d", cfg.Download.MaxAppRetries)
	}
	if cfg.Schedule.ProcessCron != "*/30 * * * *" {
		t.Fatalf("unexpected process cron %q", cfg.Schedule.ProcessCron)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"cron", func(c *config.Config) { c.Schedule.FetchCron = "every morning" }, "schedule.fetch_cron"},
		{"proxy attempts", func(c *config.Config) { c.Download.MaxProxyAttempts = 0 }, "download.max_proxy_attempts"},
		{"transport retries", func(c *config.Config) { c.Download.TransportRetries = -1 }, "download.transport_retries"},
		{"probe url", func(c *config.Config) { c.Proxy.ProbeURL = "ftp://example.com" }, "proxy.probe_url"},
		{"chat without token", func(c *config.Config) { c.Publish.ChatID = "@x" }, "publish.telegram_token"},
		{"temperature", func(c *config.Config) { c.Summarization.Primary.Temperature = 3 }, "summarization.primary.temperature"},
		{"attempt cap", func(c *config.Config) { c.Workflow.MaxEpisodeAttempts = -2 }, "workflow.max_episode_attempts"},
		{"level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	cfg := config.Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Summarization.Fallback.Model != "openai/gpt-oss-120b:cheapest" {
		t.Fatalf("unexpected fallback model in sample: %q", cfg.Summarization.Fallback.Model)
	}
}
