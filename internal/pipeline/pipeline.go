package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"podigest/internal/config"
	"podigest/internal/download"
	"podigest/internal/episodes"
	"podigest/internal/feeds"
	"podigest/internal/fetch"
	"podigest/internal/lifecycle"
	"podigest/internal/llm"
	"podigest/internal/logging"
	"podigest/internal/proxypool"
	"podigest/internal/publish"
	"podigest/internal/scheduler"
	"podigest/internal/summarize"
	"podigest/internal/transcribe"
)

// Option overrides a collaborator built from configuration.
type Option func(*overrides)

type overrides struct {
	prober      proxypool.Prober
	transcriber lifecycle.Transcriber
	summarizer  lifecycle.Summarizer
	publisher   publish.Publisher
	feedOpts    []feeds.Option
}

// WithProber replaces the HTTP relay prober.
func WithProber(prober proxypool.Prober) Option {
	return func(o *overrides) { o.prober = prober }
}

// WithTranscriber replaces the whisper service.
func WithTranscriber(t lifecycle.Transcriber) Option {
	return func(o *overrides) { o.transcriber = t }
}

// WithSummarizer replaces the provider chain.
func WithSummarizer(s lifecycle.Summarizer) Option {
	return func(o *overrides) { o.summarizer = s }
}

// WithPublisher replaces the Telegram publisher.
func WithPublisher(p publish.Publisher) Option {
	return func(o *overrides) { o.publisher = p }
}

// WithFeedOption passes an option through to the feed discoverer.
func WithFeedOption(opt feeds.Option) Option {
	return func(o *overrides) { o.feedOpts = append(o.feedOpts, opt) }
}

// Pipeline holds every long-lived collaborator of the daemon and the CLI.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger

	Store      *episodes.Store
	Pool       *proxypool.Pool
	Downloader *download.Orchestrator
	Runner     *lifecycle.Runner
	Discoverer *feeds.Discoverer
}

// New opens the episode store and wires the download, lifecycle and feed
// components from cfg. The relay pool is nil when proxies are disabled or the
// proxy list is missing.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	var o overrides
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	store, err := episodes.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open episode store: %w", err)
	}

	p := &Pipeline{cfg: cfg, logger: logging.NewComponentLogger(logger, "pipeline"), Store: store}
	p.Pool = buildPool(cfg, o.prober, logger, p.logger)

	fetchOpts := []fetch.Option{
		fetch.WithUserAgent(cfg.Download.UserAgent),
		fetch.WithBackoff(time.Duration(cfg.Download.TransportBackoff) * time.Second),
		fetch.WithLogger(logger),
	}
	// A nil *Pool stored in the interface would look non-nil to the fetcher.
	var reporter download.FailureReporter
	if p.Pool != nil {
		fetchOpts = append(fetchOpts, fetch.WithProxySource(p.Pool))
		reporter = p.Pool
	}
	p.Downloader = download.New(fetch.New(fetchOpts...), reporter, download.Settings{
		Dir:              cfg.Paths.EpisodesDir,
		ConnectTimeout:   cfg.ConnectTimeout(),
		ReadTimeout:      cfg.ReadTimeout(),
		TransportRetries: cfg.Download.TransportRetries,
		CycleBackoff:     time.Duration(cfg.Download.AppBackoff) * time.Second,
	}, download.WithLogger(logger))

	transcriber := o.transcriber
	if transcriber == nil {
		transcriber = transcribe.NewService(transcribe.Config{
			Binary:   cfg.Transcription.Binary,
			Model:    cfg.Transcription.Model,
			Language: cfg.Transcription.Language,
			Timeout:  time.Duration(cfg.Transcription.Timeout) * time.Second,
		}, logger)
	}
	summarizer := o.summarizer
	if summarizer == nil {
		summarizer = summarize.NewChain(cfg.Summarization.TranscriptLimit, logger,
			providerFor(cfg.Summarization.Primary),
			providerFor(cfg.Summarization.Fallback),
		)
	}
	publisher := o.publisher
	if publisher == nil {
		publisher = publish.NewService(cfg, logger)
	}

	p.Runner = lifecycle.NewRunner(lifecycle.Dependencies{
		Store:       store,
		Downloader:  p.Downloader,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Publisher:   publisher,
	}, lifecycle.Settings{
		MaxProxyAttempts: cfg.Download.MaxProxyAttempts,
		MaxAppRetries:    cfg.Download.MaxAppRetries,
		KeepAudio:        cfg.Download.KeepAudio,
	}, logger)

	p.Discoverer = feeds.NewDiscoverer(store, feeds.Settings{
		EntriesLimit: cfg.Feeds.EntriesLimit,
		Delay:        time.Duration(cfg.Feeds.DelaySeconds) * time.Second,
		Timeout:      time.Duration(cfg.Feeds.Timeout) * time.Second,
		UserAgent:    cfg.Feeds.UserAgent,
	}, logger, o.feedOpts...)

	return p, nil
}

func buildPool(cfg *config.Config, prober proxypool.Prober, logger, local *slog.Logger) *proxypool.Pool {
	if !cfg.Proxy.Enabled {
		local.Info("proxy pool disabled; downloads go direct")
		return nil
	}
	candidates, err := proxypool.LoadFile(cfg.Paths.ProxyFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.WarnWithContext(local, "proxy list not found; downloads go direct", "proxy_list_missing",
				logging.String("path", cfg.Paths.ProxyFile),
				logging.String(logging.FieldErrorHint, "create the proxy list or set proxy.enabled = false"),
				logging.String(logging.FieldImpact, "relays are not used"),
			)
		} else {
			logging.WarnWithContext(local, "proxy list unreadable; downloads go direct", "proxy_list_unreadable",
				logging.String("path", cfg.Paths.ProxyFile),
				logging.Error(err),
				logging.String(logging.FieldImpact, "relays are not used"),
			)
		}
		return nil
	}
	if prober == nil {
		prober = proxypool.HTTPProber{
			URL:       cfg.Proxy.ProbeURL,
			Timeout:   time.Duration(cfg.Proxy.ProbeTimeout) * time.Second,
			UserAgent: cfg.Download.UserAgent,
		}
	}
	local.Info("proxy list loaded", logging.Int("candidates", len(candidates)))
	return proxypool.New(candidates, prober,
		proxypool.WithTestDelay(cfg.ProbeDelay()),
		proxypool.WithFallbackBudget(cfg.Proxy.FallbackBudget),
		proxypool.WithLogger(logger),
	)
}

func providerFor(p config.Provider) summarize.Provider {
	var temperature *float64
	if p.Temperature > 0 {
		t := p.Temperature
		temperature = &t
	}
	return summarize.Provider{
		Client: llm.NewClient(llm.Config{
			Name:        p.Name,
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			MaxTokens:   p.MaxTokens,
			Temperature: temperature,
			Timeout:     time.Duration(p.Timeout) * time.Second,
		}),
		SystemPrompt: p.SystemPrompt,
	}
}

// Close releases the episode store.
func (p *Pipeline) Close() error {
	if p == nil || p.Store == nil {
		return nil
	}
	return p.Store.Close()
}

// WarmUp probes relays at startup when enabled. It is a no-op without a pool.
func (p *Pipeline) WarmUp(ctx context.Context) {
	if p.Pool == nil || !p.cfg.Proxy.TestOnStartup {
		return
	}
	p.logger.Info("testing proxies on startup",
		logging.Int("candidates", p.Pool.Len()),
		logging.Int("max_to_test", p.cfg.Proxy.MaxToTest),
	)
	p.Pool.WarmUp(ctx, p.cfg.Proxy.MaxToTest)
}

// Fetch loads the podcast catalog and polls every feed once.
func (p *Pipeline) Fetch(ctx context.Context) (feeds.Report, error) {
	podcasts, err := feeds.LoadCatalog(p.cfg.Paths.CatalogPath)
	if err != nil {
		return feeds.Report{}, err
	}
	return p.Discoverer.Run(ctx, podcasts)
}

// ProcessOne claims and processes one eligible episode.
func (p *Pipeline) ProcessOne(ctx context.Context) (lifecycle.Outcome, error) {
	return p.Runner.ProcessNext(ctx)
}

// Jobs returns the scheduled fetch and process jobs. Episode failures are
// logged by the lifecycle, so the process job only fails on store errors.
func (p *Pipeline) Jobs() []scheduler.Job {
	return []scheduler.Job{
		{
			Name: "fetch",
			Spec: p.cfg.Schedule.FetchCron,
			Run: func(ctx context.Context) error {
				_, err := p.Fetch(ctx)
				return err
			},
		},
		{
			Name: "process",
			Spec: p.cfg.Schedule.ProcessCron,
			Run: func(ctx context.Context) error {
				_, err := p.ProcessOne(ctx)
				if errors.Is(err, lifecycle.ErrNoEligible) {
					return nil
				}
				return err
			},
		},
	}
}

// SchedulerOptions assembles the daemon scheduler configuration.
func (p *Pipeline) SchedulerOptions() scheduler.Options {
	return scheduler.Options{
		LockPath:   p.cfg.LockPath(),
		Jobs:       p.Jobs(),
		RunOnStart: p.cfg.Schedule.RunOnStart,
		WarmUp:     p.WarmUp,
	}
}
