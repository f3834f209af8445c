package proxypool_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"podigest/internal/proxypool"
)

func proxyAddress(server *httptest.Server) string {
	return strings.TrimPrefix(server.URL, "http://")
}

func TestHTTPProberAcceptsOK(t *testing.T) {
	var gotAgent, gotURL string
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		gotURL = r.URL.String()
		_, _ = w.Write([]byte(`{"origin":"203.0.113.9"}`))
	}))
	defer relay.Close()

	prober := proxypool.HTTPProber{URL: "http://probe.test/ip", Timeout: 2 * time.Second}
	if err := prober.Probe(context.Background(), proxyAddress(relay)); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if gotAgent != "Mozilla/5.0" {
		t.Fatalf("unexpected user agent %q", gotAgent)
	}
	if gotURL != "http://probe.test/ip" {
		t.Fatalf("expected absolute proxy request URL, got %q", gotURL)
	}
}

func TestHTTPProberRejectsNonOK(t *testing.T) {
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer relay.Close()

	prober := proxypool.HTTPProber{URL: "http://probe.test/ip", Timeout: 2 * time.Second}
	err := prober.Probe(context.Background(), proxyAddress(relay))
	if !errors.Is(err, proxypool.ErrUnhealthy) {
		t.Fatalf("expected ErrUnhealthy, got %v", err)
	}
}

func TestHTTPProberFailsOnUnreachableRelay(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	prober := proxypool.HTTPProber{URL: "http://probe.test/ip", Timeout: time.Second}
	if err := prober.Probe(context.Background(), addr); err == nil {
		t.Fatal("expected error for closed relay")
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		in      string
		scheme  string
		host    string
		wantErr bool
	}{
		{in: "1.2.3.4:8080", scheme: "http", host: "1.2.3.4:8080"},
		{in: "https://relay.example:443", scheme: "https", host: "relay.example:443"},
		{in: "socks5://user:pw@10.0.0.1:1080", scheme: "socks5", host: "10.0.0.1:1080"},
		{in: "", wantErr: true},
		{in: "ftp://1.2.3.4:21", wantErr: true},
		{in: "1.2.3.4", wantErr: true},
	}
	for _, tt := range tests {
		got, err := proxypool.ParseAddress(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseAddress(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", tt.in, err)
		}
		if got.Scheme != tt.scheme || got.Host != tt.host {
			t.Fatalf("ParseAddress(%q) = %s://%s", tt.in, got.Scheme, got.Host)
		}
	}
}

func TestNewTransportRoutesByScheme(t *testing.T) {
	direct, err := proxypool.NewTransport("", time.Second, time.Second)
	if err != nil {
		t.Fatalf("direct transport: %v", err)
	}
	if direct.Proxy != nil {
		t.Fatal("expected direct transport without proxy func")
	}

	httpTransport, err := proxypool.NewTransport("1.2.3.4:8080", time.Second, time.Second)
	if err != nil {
		t.Fatalf("http transport: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, "https://feeds.example/audio.mp3", nil)
	proxyURL, err := httpTransport.Proxy(req)
	if err != nil || proxyURL == nil || proxyURL.Host != "1.2.3.4:8080" {
		t.Fatalf("unexpected proxy url %v err=%v", proxyURL, err)
	}

	socks, err := proxypool.NewTransport("socks5://10.0.0.1:1080", time.Second, time.Second)
	if err != nil {
		t.Fatalf("socks transport: %v", err)
	}
	if socks.Proxy != nil {
		t.Fatal("expected socks transport to tunnel through its dialer")
	}
	if socks.DialContext == nil {
		t.Fatal("expected socks dialer")
	}

	if _, err := proxypool.NewTransport("gopher://x:1", time.Second, time.Second); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}
