package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeProxy(); err != nil {
		return err
	}
	c.normalizeDownload()
	c.normalizeTranscription()
	c.normalizeSummarization()
	c.normalizePublish()
	c.normalizeSchedule()
	c.normalizeFeeds()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("PROXY_FILE"); ok && strings.TrimSpace(c.Paths.ProxyFile) == defaultProxyFile {
		c.Paths.ProxyFile = value
	}
	defaults := map[*string]string{
		&c.Paths.DataDir:      defaultDataDir,
		&c.Paths.EpisodesDir:  defaultEpisodesDir,
		&c.Paths.LogDir:       defaultLogDir,
		&c.Paths.DatabasePath: defaultDatabasePath,
		&c.Paths.CatalogPath:  defaultCatalogPath,
	}
	for field, fallback := range defaults {
		if strings.TrimSpace(*field) == "" {
			*field = fallback
		}
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.EpisodesDir, err = expandPath(c.Paths.EpisodesDir); err != nil {
		return fmt.Errorf("paths.episodes_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.DatabasePath, err = expandPath(c.Paths.DatabasePath); err != nil {
		return fmt.Errorf("paths.database_path: %w", err)
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	if c.Paths.ProxyFile, err = expandPath(strings.TrimSpace(c.Paths.ProxyFile)); err != nil {
		return fmt.Errorf("paths.proxy_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeProxy() error {
	if value, ok := lookupEnv("USE_PROXY"); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("USE_PROXY: %w", err)
		}
		c.Proxy.Enabled = enabled
	}
	if value, ok := lookupEnv("TEST_PROXIES_ON_STARTUP"); ok {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("TEST_PROXIES_ON_STARTUP: %w", err)
		}
		c.Proxy.TestOnStartup = enabled
	}
	if value, ok := lookupEnv("MAX_PROXIES_TO_TEST"); ok {
		count, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("MAX_PROXIES_TO_TEST: %w", err)
		}
		c.Proxy.MaxToTest = count
	}
	c.Proxy.ProbeURL = strings.TrimSpace(c.Proxy.ProbeURL)
	if c.Proxy.ProbeURL == "" {
		c.Proxy.ProbeURL = defaultProbeURL
	}
	if c.Proxy.ProbeTimeout <= 0 {
		c.Proxy.ProbeTimeout = defaultProbeTimeout
	}
	if c.Proxy.ProbeDelayMS < 0 {
		c.Proxy.ProbeDelayMS = 0
	}
	return nil
}

func (c *Config) normalizeDownload() {
	c.Download.UserAgent = strings.TrimSpace(c.Download.UserAgent)
	if c.Download.UserAgent == "" {
		c.Download.UserAgent = defaultUserAgent
	}
	if c.Download.TransportBackoff < 0 {
		c.Download.TransportBackoff = 0
	}
	if c.Download.AppBackoff < 0 {
		c.Download.AppBackoff = 0
	}
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Binary = strings.TrimSpace(c.Transcription.Binary)
	if c.Transcription.Binary == "" {
		c.Transcription.Binary = defaultWhisperBinary
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultWhisperModel
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
}

func (c *Config) normalizeSummarization() {
	normalizeProvider(&c.Summarization.Primary, "GROQ_TOKEN")
	normalizeProvider(&c.Summarization.Fallback, "HF_TOKEN")
	if c.Summarization.TranscriptLimit <= 0 {
		c.Summarization.TranscriptLimit = defaultTranscriptLimit
	}
}

func normalizeProvider(p *Provider, envKey string) {
	p.Name = strings.TrimSpace(p.Name)
	p.BaseURL = strings.TrimSpace(p.BaseURL)
	p.Model = strings.TrimSpace(p.Model)
	p.APIKey = strings.TrimSpace(p.APIKey)
	p.SystemPrompt = strings.TrimSpace(p.SystemPrompt)
	if p.APIKey == "" {
		if value, ok := lookupEnv(envKey); ok {
			p.APIKey = value
		}
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultProviderTimeout
	}
}

func (c *Config) normalizePublish() {
	c.Publish.TelegramToken = strings.TrimSpace(c.Publish.TelegramToken)
	if c.Publish.TelegramToken == "" {
		if value, ok := lookupEnv("BOT_TOKEN"); ok {
			c.Publish.TelegramToken = value
		}
	}
	c.Publish.ChatID = strings.TrimSpace(c.Publish.ChatID)
	if c.Publish.ChatID == "" {
		if value, ok := lookupEnv("CHAT_ID"); ok {
			c.Publish.ChatID = value
		}
	}
	c.Publish.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.APIBaseURL), "/")
	if c.Publish.APIBaseURL == "" {
		c.Publish.APIBaseURL = defaultTelegramBaseURL
	}
	c.Publish.FooterLabel = strings.TrimSpace(c.Publish.FooterLabel)
	c.Publish.FooterURL = strings.TrimSpace(c.Publish.FooterURL)
	if c.Publish.Timeout <= 0 {
		c.Publish.Timeout = defaultPublishTimeout
	}
}

func (c *Config) normalizeSchedule() {
	c.Schedule.FetchCron = strings.TrimSpace(c.Schedule.FetchCron)
	if c.Schedule.FetchCron == "" {
		c.Schedule.FetchCron = defaultFetchCron
	}
	c.Schedule.ProcessCron = strings.TrimSpace(c.Schedule.ProcessCron)
	if c.Schedule.ProcessCron == "" {
		c.Schedule.ProcessCron = defaultProcessCron
	}
}

func (c *Config) normalizeFeeds() {
	c.Feeds.UserAgent = strings.TrimSpace(c.Feeds.UserAgent)
	if c.Feeds.UserAgent == "" {
		c.Feeds.UserAgent = defaultUserAgent
	}
	if c.Feeds.DelaySeconds < 0 {
		c.Feeds.DelaySeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	if value, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
