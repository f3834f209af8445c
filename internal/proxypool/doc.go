// Package proxypool tracks candidate relay addresses and their health.
//
// A Pool is loaded once from a newline-delimited list and classifies each
// candidate as untested, working or failed. WarmUp probes untested candidates
// sequentially with a pause between probes, Acquire hands out a random working
// relay (running one fallback warm-up when none is known), and ReportFailure
// retires a relay for the rest of the process lifetime. Classification never
// expires.
//
// The package also builds the per-attempt HTTP transports that route traffic
// through a relay, covering plain host:port entries, http(s):// proxies and
// socks5:// relays.
package proxypool
