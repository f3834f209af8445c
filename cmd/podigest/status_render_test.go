package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"podigest/internal/episodes"
	"podigest/internal/lifecycle"
	"podigest/internal/proxypool"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Published", statusOK, "3", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Published:", "[OK] 3")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Failing", statusWarn, "2", true)
	if !strings.HasPrefix(got, ansiYellow) {
		t.Fatalf("expected yellow prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatsLinesFlagCappedEpisodes(t *testing.T) {
	lines := statsLines(episodes.Stats{Total: 4, Published: 1, Pending: 3, Failing: 2, Exhausted: 1}, false)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "== Episodes ==") {
		t.Fatalf("expected section header, got %q", joined)
	}
	if !strings.Contains(joined, "[ERROR] 1 (reset with `podigest episodes retry`)") {
		t.Fatalf("expected capped line, got %q", joined)
	}

	lines = statsLines(episodes.Stats{Total: 1, Published: 1}, false)
	if strings.Contains(strings.Join(lines, "\n"), "Attempts capped") {
		t.Fatalf("did not expect capped line without exhausted episodes")
	}
}

func TestOutcomeLinesShowReason(t *testing.T) {
	lines := outcomeLines(lifecycle.Outcome{
		EpisodeID: 7,
		Title:     "Generics",
		State:     lifecycle.StateFailed,
		Reason:    lifecycle.ReasonDownloadExhausted,
		Err:       errors.New("all relays failed"),
	}, false)
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"Episode 7", "failed (download_exhausted)", "all relays failed"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestProxyRowsMarkUntested(t *testing.T) {
	rows := proxyRows([]proxypool.Record{{Address: "socks5://10.0.0.1:1080", Health: proxypool.HealthUntested}})
	if len(rows) != 1 || rows[0][2] != "-" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}
