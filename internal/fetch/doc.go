// Package fetch performs one streamed download attempt through an optional relay.
//
// Fetcher acquires at most one relay per call, streams the response body to
// disk in fixed-size chunks, and retries 429/500/502/503/504 responses with a
// linear backoff. Every failure is returned as an *Error whose Kind tells the
// caller whether rotating to another relay can help.
package fetch
