package config

const (
	defaultConfigPath   = "~/.config/podigest/config.toml"
	defaultDataDir      = "~/.local/share/podigest"
	defaultEpisodesDir  = "~/.local/share/podigest/episodes"
	defaultLogDir       = "~/.local/share/podigest/logs"
	defaultDatabasePath = "~/.local/share/podigest/podcasts.db"
	defaultCatalogPath  = "~/.config/podigest/podcasts.json"
	defaultProxyFile    = "~/.config/podigest/proxies.txt"

	defaultProbeURL       = "http://httpbin.org/ip"
	defaultProbeTimeout   = 10
	defaultProbeDelayMS   = 500
	defaultMaxToTest      = 20
	defaultFallbackBudget = 20

	defaultConnectTimeout   = 15
	defaultReadTimeout      = 60
	defaultTransportRetries = 3
	defaultTransportBackoff = 1
	defaultMaxProxyAttempts = 3
	defaultMaxAppRetries    = 3
	defaultAppBackoff       = 10
	defaultUserAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	defaultWhisperBinary   = "whisper"
	defaultWhisperModel    = "base.en"
	defaultWhisperLanguage = "en"
	defaultWhisperTimeout  = 7200

	defaultTranscriptLimit  = 8000
	defaultPrimaryName      = "groq"
	defaultPrimaryBaseURL   = "https://api.groq.com/openai/v1/chat/completions"
	defaultPrimaryModel     = "openai/gpt-oss-120b"
	defaultPrimaryMaxTokens = 1000
	defaultPrimaryTemp      = 0.7
	defaultFallbackName     = "huggingface"
	defaultFallbackBaseURL  = "https://router.huggingface.co/v1/chat/completions"
	defaultFallbackModel    = "openai/gpt-oss-120b:cheapest"
	defaultFallbackTokens   = 1500
	defaultProviderTimeout  = 120
	defaultPrimarySystem    = "Ты эксперт по созданию кратких содержаний подкастов на русском языке."
	defaultFallbackSystem   = "Ты эксперт по созданию дайджестов подкастов."

	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultFooterLabel     = "devdigest"
	defaultFooterURL       = "https://t.me/devdigest_ru"
	defaultPublishTimeout  = 15

	defaultFetchCron   = "0 8,14,20 * * *"
	defaultProcessCron = "0 9,15,21 * * *"

	defaultClaimLeaseMinutes = 180

	defaultFeedDelaySeconds = 3
	defaultFeedEntriesLimit = 10
	defaultFeedTimeout      = 15

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			EpisodesDir:  defaultEpisodesDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
			CatalogPath:  defaultCatalogPath,
			ProxyFile:    defaultProxyFile,
		},
		Proxy: Proxy{
			Enabled:        true,
			TestOnStartup:  true,
			MaxToTest:      defaultMaxToTest,
			FallbackBudget: defaultFallbackBudget,
			ProbeURL:       defaultProbeURL,
			ProbeTimeout:   defaultProbeTimeout,
			ProbeDelayMS:   defaultProbeDelayMS,
		},
		Download: Download{
			ConnectTimeout:   defaultConnectTimeout,
			ReadTimeout:      defaultReadTimeout,
			TransportRetries: defaultTransportRetries,
			TransportBackoff: defaultTransportBackoff,
			MaxProxyAttempts: defaultMaxProxyAttempts,
			MaxAppRetries:    defaultMaxAppRetries,
			AppBackoff:       defaultAppBackoff,
			UserAgent:        defaultUserAgent,
		},
		Transcription: Transcription{
			Binary:   defaultWhisperBinary,
			Model:    defaultWhisperModel,
			Language: defaultWhisperLanguage,
			Timeout:  defaultWhisperTimeout,
		},
		Summarization: Summarization{
			TranscriptLimit: defaultTranscriptLimit,
			Primary: Provider{
				Name:         defaultPrimaryName,
				BaseURL:      defaultPrimaryBaseURL,
				Model:        defaultPrimaryModel,
				MaxTokens:    defaultPrimaryMaxTokens,
				Temperature:  defaultPrimaryTemp,
				Timeout:      defaultProviderTimeout,
				SystemPrompt: defaultPrimarySystem,
			},
			Fallback: Provider{
				Name:         defaultFallbackName,
				BaseURL:      defaultFallbackBaseURL,
				Model:        defaultFallbackModel,
				MaxTokens:    defaultFallbackTokens,
				Timeout:      defaultProviderTimeout,
				SystemPrompt: defaultFallbackSystem,
			},
		},
		Publish: Publish{
			APIBaseURL:  defaultTelegramBaseURL,
			FooterLabel: defaultFooterLabel,
			FooterURL:   defaultFooterURL,
			Timeout:     defaultPublishTimeout,
		},
		Schedule: Schedule{
			FetchCron:   defaultFetchCron,
			ProcessCron: defaultProcessCron,
			RunOnStart:  true,
		},
		Workflow: Workflow{
			ClaimLeaseMinutes: defaultClaimLeaseMinutes,
		},
		Feeds: Feeds{
			DelaySeconds: defaultFeedDelaySeconds,
			EntriesLimit: defaultFeedEntriesLimit,
			Timeout:      defaultFeedTimeout,
			UserAgent:    defaultUserAgent,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
