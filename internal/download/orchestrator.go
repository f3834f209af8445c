package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"podigest/internal/fetch"
	"podigest/internal/logging"
	"podigest/internal/services"
)

const defaultCycleBackoff = 10 * time.Second

// ErrExhausted reports that every relay attempt in every retry cycle failed.
var ErrExhausted = errors.New("download exhausted")

// ExhaustedError carries the details of an exhausted download.
type ExhaustedError struct {
	URL      string
	Attempts int
	Cycles   int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempt(s) in %d cycle(s): %v", ErrExhausted, e.URL, e.Attempts, e.Cycles, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Last}
}

// Fetcher performs one download attempt.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Result, error)
}

// FailureReporter retires a relay that broke a download.
type FailureReporter interface {
	ReportFailure(address string)
}

// Settings carries the parameters of every fetch issued by the orchestrator.
type Settings struct {
	Dir              string
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	TransportRetries int
	CycleBackoff     time.Duration
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper overrides the pause between retry cycles.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logging.NewComponentLogger(logger, "download") }
}

// Orchestrator combines relay rotation with application-level retry cycles.
type Orchestrator struct {
	fetcher  Fetcher
	reporter FailureReporter
	settings Settings
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger
}

// New constructs an Orchestrator. reporter may be nil when downloads never use relays.
func New(fetcher Fetcher, reporter FailureReporter, settings Settings, opts ...Option) *Orchestrator {
	if settings.CycleBackoff <= 0 {
		settings.CycleBackoff = defaultCycleBackoff
	}
	o := &Orchestrator{
		fetcher:  fetcher,
		reporter: reporter,
		settings: settings,
		sleep:    services.Sleep,
		logger:   logging.NewComponentLogger(nil, "download"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Download fetches url into the deterministic path for label. It issues at
// most maxProxyAttempts*maxAppRetries fetch calls, pausing CycleBackoff*n after
// cycle n (never after the last). Transient failures retire the relay that was
// used and move to the next attempt; anything else aborts immediately.
// Partial files are removed after each failed attempt.
func (o *Orchestrator) Download(ctx context.Context, url, label string, maxProxyAttempts, maxAppRetries int) (string, error) {
	if maxProxyAttempts < 1 {
		maxProxyAttempts = 1
	}
	if maxAppRetries < 1 {
		maxAppRetries = 1
	}

	dest, err := Path(o.settings.Dir, label, url)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(o.settings.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	logger := logging.WithContext(ctx, o.logger)
	req := fetch.Request{
		URL:              url,
		Destination:      dest,
		ConnectTimeout:   o.settings.ConnectTimeout,
		ReadTimeout:      o.settings.ReadTimeout,
		TransportRetries: o.settings.TransportRetries,
	}

	var last error
	calls := 0
	for cycle := 1; cycle <= maxAppRetries; cycle++ {
		for attempt := 1; attempt <= maxProxyAttempts; attempt++ {
			calls++
			result, err := o.fetcher.Fetch(ctx, req)
			if err == nil {
				logger.Info("audio downloaded",
					logging.String("path", result.Path),
					logging.Int64("bytes", result.Bytes),
					logging.String(logging.FieldProxy, result.Proxy),
					logging.Int("cycle", cycle),
					logging.Int("attempt", attempt),
				)
				return result.Path, nil
			}
			last = err
			removePartial(logger, dest)

			kind := fetch.KindOf(err)
			if !kind.Transient() {
				logger.Warn("download aborted",
					logging.String("kind", string(kind)),
					logging.Error(err),
					logging.String(logging.FieldEventType, "download_aborted"),
					logging.String(logging.FieldErrorHint, "the resource or request is broken; relays cannot help"),
				)
				return "", err
			}

			proxy := failedProxy(err)
			if proxy != "" && o.reporter != nil {
				o.reporter.ReportFailure(proxy)
			}
			logger.Info("download attempt failed",
				logging.String("kind", string(kind)),
				logging.String(logging.FieldProxy, proxy),
				logging.Int("cycle", cycle),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
		}

		if cycle < maxAppRetries {
			wait := o.settings.CycleBackoff * time.Duration(cycle)
			logger.Info("download cycle exhausted; backing off",
				logging.Int("cycle", cycle),
				logging.Duration("wait", wait),
			)
			if err := o.sleep(ctx, wait); err != nil {
				return "", err
			}
		}
	}

	return "", &ExhaustedError{URL: url, Attempts: calls, Cycles: maxAppRetries, Last: last}
}

func failedProxy(err error) string {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return fe.Proxy
	}
	return ""
}

func removePartial(logger *slog.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "partial download not removed", "partial_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale partial file stays on disk until the next attempt overwrites it"),
		)
	}
}
