package proxypool

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ParseAddress converts a proxy list entry into a proxy URL.
// Bare host:port entries are treated as HTTP proxies.
func ParseAddress(address string) (*url.URL, error) {
	raw := strings.TrimSpace(address)
	if raw == "" {
		return nil, errors.New("empty proxy address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse proxy address %q: %w", address, err)
	}
	switch parsed.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("proxy address %q: unsupported scheme %q", address, parsed.Scheme)
	}
	if parsed.Hostname() == "" || parsed.Port() == "" {
		return nil, fmt.Errorf("proxy address %q: host and port required", address)
	}
	return parsed, nil
}

// NewTransport builds a dedicated transport for one download or probe. An
// empty address dials the target directly. connectTimeout bounds dialing and
// the TLS handshake; headerTimeout bounds the wait for response headers.
func NewTransport(address string, connectTimeout, headerTimeout time.Duration) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: time.Second,
		IdleConnTimeout:       30 * time.Second,
		MaxIdleConns:          4,
		ForceAttemptHTTP2:     true,
	}
	if strings.TrimSpace(address) == "" {
		return transport, nil
	}

	proxyURL, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		socks, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("create socks5 dialer for %s: %w", proxyURL.Host, err)
		}
		contextDialer, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", proxyURL.Host)
		}
		transport.DialContext = contextDialer.DialContext
	default:
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return transport, nil
}
