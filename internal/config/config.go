package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	EpisodesDir  string `toml:"episodes_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
	CatalogPath  string `toml:"catalog_path"`
	ProxyFile    string `toml:"proxy_file"`
}

// Proxy contains configuration for the relay pool.
type Proxy struct {
	Enabled        bool   `toml:"enabled"`
	TestOnStartup  bool   `toml:"test_on_startup"`
	MaxToTest      int    `toml:"max_to_test"`
	FallbackBudget int    `toml:"fallback_budget"`
	ProbeURL       string `toml:"probe_url"`
	ProbeTimeout   int    `toml:"probe_timeout"`
	ProbeDelayMS   int    `toml:"probe_delay_ms"`
}

// Download contains configuration for audio acquisition.
type Download struct {
	ConnectTimeout   int    `toml:"connect_timeout"`
	ReadTimeout      int    `toml:"read_timeout"`
	TransportRetries int    `toml:"transport_retries"`
	TransportBackoff int    `toml:"transport_backoff"`
	MaxProxyAttempts int    `toml:"max_proxy_attempts"`
	MaxAppRetries    int    `toml:"max_app_retries"`
	AppBackoff       int    `toml:"app_backoff"`
	UserAgent        string `toml:"user_agent"`
	KeepAudio        bool   `toml:"keep_audio"`
}

// Transcription contains configuration for the whisper command line tool.
type Transcription struct {
	Binary   string `toml:"binary"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
	Timeout  int    `toml:"timeout"`
}

// Provider describes one OpenAI-compatible chat completion endpoint.
type Provider struct {
	Name         string  `toml:"name"`
	APIKey       string  `toml:"api_key"`
	BaseURL      string  `toml:"base_url"`
	Model        string  `toml:"model"`
	MaxTokens    int     `toml:"max_tokens"`
	Temperature  float64 `toml:"temperature"`
	Timeout      int     `toml:"timeout"`
	SystemPrompt string  `toml:"system_prompt"`
}

// Configured reports whether the provider has enough settings to be called.
func (p Provider) Configured() bool {
	return strings.TrimSpace(p.APIKey) != "" && strings.TrimSpace(p.BaseURL) != "" && strings.TrimSpace(p.Model) != ""
}

// Summarization contains configuration for digest generation.
type Summarization struct {
	TranscriptLimit int      `toml:"transcript_limit"`
	Primary         Provider `toml:"primary"`
	Fallback        Provider `toml:"fallback"`
}

// Publish contains configuration for the Telegram channel publisher.
type Publish struct {
	TelegramToken string `toml:"telegram_token"`
	ChatID        string `toml:"chat_id"`
	APIBaseURL    string `toml:"api_base_url"`
	FooterLabel   string `toml:"footer_label"`
	FooterURL     string `toml:"footer_url"`
	Timeout       int    `toml:"timeout"`
}

// Configured reports whether Telegram credentials are present.
func (p Publish) Configured() bool {
	return strings.TrimSpace(p.TelegramToken) != "" && strings.TrimSpace(p.ChatID) != ""
}

// Schedule contains cron expressions for the daemon.
type Schedule struct {
	FetchCron   string `toml:"fetch_cron"`
	ProcessCron string `toml:"process_cron"`
	RunOnStart  bool   `toml:"run_on_start"`
}

// Workflow contains configuration for episode selection.
type Workflow struct {
	ClaimLeaseMinutes  int `toml:"claim_lease_minutes"`
	MaxEpisodeAttempts int `toml:"max_episode_attempts"`
}

// Feeds contains configuration for RSS discovery.
type Feeds struct {
	DelaySeconds int    `toml:"delay_seconds"`
	EntriesLimit int    `toml:"entries_limit"`
	Timeout      int    `toml:"timeout"`
	UserAgent    string `toml:"user_agent"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podigest.
//
// Configuration sections by subsystem:
//   - Paths: data, episode audio, log, database, catalog and proxy list locations
//   - Proxy: relay pool warm-up and probing
//   - Download: timeouts and the two retry budgets
//   - Transcription: whisper binary and model
//   - Summarization: primary and fallback chat completion providers
//   - Publish: Telegram bot credentials and footer
//   - Schedule: cron expressions for the fetch and process jobs
//   - Workflow: claim lease and optional attempt cap
//   - Feeds: RSS polling pace and limits
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Proxy         Proxy         `toml:"proxy"`
	Download      Download      `toml:"download"`
	Transcription Transcription `toml:"transcription"`
	Summarization Summarization `toml:"summarization"`
	Publish       Publish       `toml:"publish"`
	Schedule      Schedule      `toml:"schedule"`
	Workflow      Workflow      `toml:"workflow"`
	Feeds         Feeds         `toml:"feeds"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podigest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.EpisodesDir, c.Paths.LogDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "podigest.lock")
}

// ClaimLease returns how long a claimed episode stays reserved.
func (c *Config) ClaimLease() time.Duration {
	return time.Duration(c.Workflow.ClaimLeaseMinutes) * time.Minute
}

// ProbeDelay returns the pause between proxy probes.
func (c *Config) ProbeDelay() time.Duration {
	return time.Duration(c.Proxy.ProbeDelayMS) * time.Millisecond
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

// ConnectTimeout returns the dial timeout used for audio downloads.
func (c *Config) ConnectTimeout() time.Duration { return seconds(c.Download.ConnectTimeout) }

// ReadTimeout returns the idle read timeout used for audio downloads.
func (c *Config) ReadTimeout() time.Duration { return seconds(c.Download.ReadTimeout) }

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
