package main

import (
	"context"
	"strings"
	"testing"

	"podigest/internal/episodes"
	"podigest/internal/testsupport"
)

func TestEpisodesListStatsAndRetry(t *testing.T) {
	env := setupCLITestEnv(t)
	var failing *episodes.Episode
	env.seed(t, func(store *episodes.Store) {
		ctx := context.Background()
		published := testsupport.SaveEpisode(t, store, "gotime", "Generics", "https://cdn.test/a.mp3")
		failing = testsupport.SaveEpisode(t, store, "gotime", "Fuzzing", "https://cdn.test/b.mp3")
		testsupport.SaveEpisode(t, store, "changelog", "Modules", "https://cdn.test/c.mp3")
		if err := store.MarkPublished(ctx, published.ID); err != nil {
			t.Fatalf("MarkPublished: %v", err)
		}
		if err := store.RecordFailure(ctx, failing.ID, "", "download_exhausted"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	})

	out, _, err := runCLI(t, []string{"episodes", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("episodes list: %v", err)
	}
	requireContains(t, out, "Generics")
	requireContains(t, out, "download_exhausted")

	out, _, err = runCLI(t, []string{"episodes", "list", "--pending"}, env.configPath)
	if err != nil {
		t.Fatalf("episodes list --pending: %v", err)
	}
	requireContains(t, out, "Modules")
	if strings.Contains(out, "Generics") {
		t.Fatalf("pending list should not include published episodes:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"episodes", "stats"}, env.configPath)
	if err != nil {
		t.Fatalf("episodes stats: %v", err)
	}
	requireContains(t, out, "Total:")
	requireContains(t, out, "[OK] 1")
	requireContains(t, out, "[WARN] 1")

	out, _, err = runCLI(t, []string{"episodes", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("episodes retry: %v", err)
	}
	requireContains(t, out, "Reset 1 episode(s)")

	if _, _, err := runCLI(t, []string{"episodes", "retry", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to be rejected")
	}
}

func TestEpisodesListEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"episodes", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("episodes list: %v", err)
	}
	requireContains(t, out, "No episodes")
}
