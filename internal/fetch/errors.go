package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Kind classifies a failed download attempt.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection_error"
	KindHTTPStatus Kind = "http_status_error"
	KindProxy      Kind = "proxy_error"
	KindUnexpected Kind = "unexpected"
)

// Transient reports whether another relay may succeed where this attempt failed.
func (k Kind) Transient() bool {
	switch k {
	case KindTimeout, KindConnection, KindProxy:
		return true
	default:
		return false
	}
}

// Error describes a failed Fetch call.
type Error struct {
	Kind       Kind
	URL        string
	Proxy      string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *Error) Error() string {
	via := "direct"
	if e.Proxy != "" {
		via = "via " + e.Proxy
	}
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s (%s): %s: status %d after %d attempt(s)", e.URL, via, e.Kind, e.StatusCode, e.Attempts)
	}
	if e.Err == nil {
		return fmt.Sprintf("fetch %s (%s): %s", e.URL, via, e.Kind)
	}
	return fmt.Sprintf("fetch %s (%s): %s: %v", e.URL, via, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure should be absorbed by relay rotation.
func (e *Error) Transient() bool { return e.Kind.Transient() }

// KindOf extracts the Kind of err. Errors that did not come from Fetch are unexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnexpected
}

var errIdleTimeout = errors.New("no data received within read timeout")

// classify maps a transport error to a Kind. parent is the caller's context;
// attempt is the per-attempt context carrying the idle watchdog cause.
func classify(parent, attempt context.Context, err error) Kind {
	if errors.Is(context.Cause(attempt), errIdleTimeout) {
		return KindTimeout
	}
	if parent.Err() != nil {
		return KindUnexpected
	}
	if isProxyError(err) {
		return KindProxy
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if isConnectionError(err) {
		return KindConnection
	}
	return KindUnexpected
}

func isProxyError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && (opErr.Op == "proxyconnect" || strings.HasPrefix(opErr.Op, "socks")) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "proxyconnect") || strings.Contains(msg, "socks connect")
}

func isConnectionError(err error) bool {
	var (
		opErr   *net.OpError
		dnsErr  *net.DNSError
		tlsErr  tls.RecordHeaderError
		certErr *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr), errors.As(err, &tlsErr), errors.As(err, &certErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return true
	}
	return false
}
