package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProxy(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateSummarization(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFeeds(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateProxy() error {
	if !c.Proxy.Enabled {
		return nil
	}
	if c.Proxy.MaxToTest < 0 {
		return errors.New("proxy.max_to_test must be >= 0")
	}
	if c.Proxy.FallbackBudget < 0 {
		return errors.New("proxy.fallback_budget must be >= 0")
	}
	if err := validateHTTPURL("proxy.probe_url", c.Proxy.ProbeURL); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDownload() error {
	if err := ensurePositiveMap(map[string]int{
		"download.connect_timeout":    c.Download.ConnectTimeout,
		"download.read_timeout":       c.Download.ReadTimeout,
		"download.max_proxy_attempts": c.Download.MaxProxyAttempts,
		"download.max_app_retries":    c.Download.MaxAppRetries,
	}); err != nil {
		return err
	}
	if c.Download.TransportRetries < 0 {
		return errors.New("download.transport_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	if c.Transcription.Timeout <= 0 {
		return errors.New("transcription.timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateSummarization() error {
	if err := validateProvider("summarization.primary", c.Summarization.Primary); err != nil {
		return err
	}
	return validateProvider("summarization.fallback", c.Summarization.Fallback)
}

func validateProvider(section string, p Provider) error {
	if p.BaseURL != "" {
		if err := validateHTTPURL(section+".base_url", p.BaseURL); err != nil {
			return err
		}
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("%s.max_tokens must be >= 0", section)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("%s.temperature must be between 0 and 2", section)
	}
	return nil
}

func (c *Config) validatePublish() error {
	token := strings.TrimSpace(c.Publish.TelegramToken)
	chat := strings.TrimSpace(c.Publish.ChatID)
	if token != "" && chat == "" {
		return errors.New("publish.chat_id must be set when publish.telegram_token is set (or set CHAT_ID)")
	}
	if chat != "" && token == "" {
		return errors.New("publish.telegram_token must be set when publish.chat_id is set (or set BOT_TOKEN)")
	}
	return validateHTTPURL("publish.api_base_url", c.Publish.APIBaseURL)
}

func (c *Config) validateSchedule() error {
	if _, err := cron.ParseStandard(c.Schedule.FetchCron); err != nil {
		return fmt.Errorf("schedule.fetch_cron: %w", err)
	}
	if _, err := cron.ParseStandard(c.Schedule.ProcessCron); err != nil {
		return fmt.Errorf("schedule.process_cron: %w", err)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ClaimLeaseMinutes <= 0 {
		return errors.New("workflow.claim_lease_minutes must be positive")
	}
	if c.Workflow.MaxEpisodeAttempts < 0 {
		return errors.New("workflow.max_episode_attempts must be >= 0 (0 disables the cap)")
	}
	return nil
}

func (c *Config) validateFeeds() error {
	return ensurePositiveMap(map[string]int{
		"feeds.entries_limit": c.Feeds.EntriesLimit,
		"feeds.timeout":       c.Feeds.Timeout,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func validateHTTPURL(key, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", key)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", key)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
