package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podigest/internal/logging"
	"podigest/internal/proxypool"
	"podigest/internal/services"
)

const (
	chunkSize             = 8 << 10
	defaultBackoff        = time.Second
	defaultConnectTimeout = 15 * time.Second
	defaultUserAgent      = "Mozilla/5.0"
	drainLimit            = 64 << 10
)

// ProxySource hands out a relay for one call. A false result means go direct.
type ProxySource interface {
	Acquire(ctx context.Context) (string, bool)
}

// TransportFactory builds the transport used for one Fetch call.
type TransportFactory func(proxy string, connectTimeout, headerTimeout time.Duration) (*http.Transport, error)

// Request describes one download attempt.
type Request struct {
	URL              string
	Destination      string
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	TransportRetries int
}

// Result describes a completed download.
type Result struct {
	Path     string
	Bytes    int64
	Proxy    string
	Attempts int
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithProxySource routes downloads through relays from src. Nil means always direct.
func WithProxySource(src ProxySource) Option {
	return func(f *Fetcher) { f.proxies = src }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(agent string) Option {
	return func(f *Fetcher) {
		if strings.TrimSpace(agent) != "" {
			f.userAgent = agent
		}
	}
}

// WithBackoff sets the base of the linear transport retry backoff.
func WithBackoff(base time.Duration) Option {
	return func(f *Fetcher) {
		if base >= 0 {
			f.backoff = base
		}
	}
}

// WithSleeper overrides how the fetcher waits between transport retries.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithTransportFactory overrides how per-call transports are built.
func WithTransportFactory(factory TransportFactory) Option {
	return func(f *Fetcher) {
		if factory != nil {
			f.newTransport = factory
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logging.NewComponentLogger(logger, "fetch") }
}

// Fetcher executes streamed downloads.
type Fetcher struct {
	proxies      ProxySource
	userAgent    string
	backoff      time.Duration
	sleep        func(context.Context, time.Duration) error
	newTransport TransportFactory
	logger       *slog.Logger
}

// New constructs a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:    defaultUserAgent,
		backoff:      defaultBackoff,
		sleep:        services.Sleep,
		newTransport: proxypool.NewTransport,
		logger:       logging.NewComponentLogger(nil, "fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads req.URL into req.Destination. It acquires at most one relay,
// retries retryable HTTP statuses up to req.TransportRetries times, and
// releases every connection before returning. A partially written
// destination may remain after a failure.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	result := Result{Path: req.Destination}
	if f.proxies != nil {
		if addr, ok := f.proxies.Acquire(ctx); ok {
			result.Proxy = addr
		}
	}
	fail := func(kind Kind, status int, err error) (Result, error) {
		return result, &Error{Kind: kind, URL: req.URL, Proxy: result.Proxy, StatusCode: status, Attempts: result.Attempts, Err: err}
	}

	connectTimeout := req.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	transport, err := f.newTransport(result.Proxy, connectTimeout, req.ReadTimeout)
	if err != nil {
		if result.Proxy != "" {
			return fail(KindProxy, 0, err)
		}
		return fail(KindUnexpected, 0, err)
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	logger := logging.WithContext(ctx, f.logger)
	for {
		result.Attempts++
		written, status, kind, err := f.once(ctx, client, req)
		if err == nil {
			result.Bytes = written
			logger.Debug("download complete",
				logging.String("url", req.URL),
				logging.String(logging.FieldProxy, result.Proxy),
				logging.Int64("bytes", written),
				logging.Int("attempts", result.Attempts),
			)
			return result, nil
		}
		retries := result.Attempts - 1
		if kind == KindHTTPStatus && retryableStatus(status) && retries < req.TransportRetries {
			wait := f.backoff * time.Duration(retries+1)
			logger.Info("retrying after transient status",
				logging.String("url", req.URL),
				logging.Int("status", status),
				logging.Int("retry", retries+1),
				logging.Duration("wait", wait),
			)
			if serr := f.sleep(ctx, wait); serr != nil {
				return fail(KindUnexpected, status, serr)
			}
			continue
		}
		return fail(kind, status, err)
	}
}

func (f *Fetcher) once(ctx context.Context, client *http.Client, req Request) (int64, int, Kind, error) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, 0, KindUnexpected, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "audio/*, */*")

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, 0, classify(ctx, attemptCtx, err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))
		return 0, resp.StatusCode, KindHTTPStatus, fmt.Errorf("unexpected status %s", resp.Status)
	}

	written, kind, err := stream(ctx, attemptCtx, cancel, resp.Body, req)
	return written, resp.StatusCode, kind, err
}

func stream(parent, attemptCtx context.Context, cancel context.CancelCauseFunc, body io.Reader, req Request) (int64, Kind, error) {
	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return 0, KindUnexpected, fmt.Errorf("create destination directory: %w", err)
	}
	file, err := os.Create(req.Destination)
	if err != nil {
		return 0, KindUnexpected, fmt.Errorf("create destination: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			_ = file.Close()
		}
	}()

	var watchdog *time.Timer
	if req.ReadTimeout > 0 {
		watchdog = time.AfterFunc(req.ReadTimeout, func() { cancel(errIdleTimeout) })
		defer watchdog.Stop()
	}

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if watchdog != nil {
				watchdog.Reset(req.ReadTimeout)
			}
			if _, werr := file.Write(buf[:n]); werr != nil {
				return written, KindUnexpected, fmt.Errorf("write destination: %w", werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return written, classify(parent, attemptCtx, rerr), rerr
		}
	}

	closed = true
	if err := file.Close(); err != nil {
		return written, KindUnexpected, fmt.Errorf("close destination: %w", err)
	}
	return written, "", nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
