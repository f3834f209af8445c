package proxypool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultProbeURL echoes the caller's address and is cheap to hit.
	DefaultProbeURL     = "http://httpbin.org/ip"
	defaultProbeTimeout = 10 * time.Second
	defaultProbeAgent   = "Mozilla/5.0"
)

// ErrUnhealthy marks a relay that answered the probe with an unexpected status.
var ErrUnhealthy = errors.New("proxy unhealthy")

// HTTPProber issues one GET through the relay and expects 200 OK.
type HTTPProber struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
}

// Probe implements Prober.
func (p HTTPProber) Probe(ctx context.Context, address string) error {
	target := strings.TrimSpace(p.URL)
	if target == "" {
		target = DefaultProbeURL
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	agent := p.UserAgent
	if agent == "" {
		agent = defaultProbeAgent
	}

	transport, err := NewTransport(address, timeout, timeout)
	if err != nil {
		return err
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("User-Agent", agent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe via %s: %w", address, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: probe via %s returned %d", ErrUnhealthy, address, resp.StatusCode)
	}
	return nil
}
