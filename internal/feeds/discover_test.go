package feeds_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"podigest/internal/episodes"
	"podigest/internal/feeds"
	"podigest/internal/logging"
	"podigest/internal/testsupport"
)

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
<title>Go Time</title>
%s
</channel>
</rss>`

func rssItem(title, enclosure, duration string) string {
	var b strings.Builder
	b.WriteString("<item>")
	fmt.Fprintf(&b, "<title>%s</title>", title)
	if enclosure != "" {
		fmt.Fprintf(&b, `<enclosure url="%s" length="1000" type="audio/mpeg"/>`, enclosure)
	}
	if duration != "" {
		fmt.Fprintf(&b, "<itunes:duration>%s</itunes:duration>", duration)
	}
	b.WriteString("</item>")
	return b.String()
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func TestDiscovererSavesNewEpisodesOnce(t *testing.T) {
	items := rssItem("Generics in practice", "https://cdn.test/generics.mp3", "01:02:03") +
		rssItem("No audio here", "", "") +
		rssItem("Fuzzing", "https://cdn.test/fuzzing.mp3", "")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("expected a user agent header")
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, feedTemplate, items)
	}))
	defer server.Close()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	d := feeds.NewDiscoverer(store, feeds.Settings{EntriesLimit: 10}, logging.NewNop(), feeds.WithSleeper(noSleep))
	podcasts := []feeds.Podcast{{ID: "gotime", Name: "Go Time", RSS: server.URL, Category: "Tech"}}

	report, err := d.Run(context.Background(), podcasts)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.New != 2 || report.NoAudio != 1 || report.Entries != 3 || report.FeedErrors != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	list, err := store.List(context.Background(), episodes.ListOptions{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 stored episodes, got %d", len(list))
	}
	first := list[0]
	if first.Title != "Generics in practice" || first.AudioURL != "https://cdn.test/generics.mp3" ||
		first.Duration != "01:02:03" || first.Category != "Tech" || first.PodcastName != "Go Time" {
		t.Fatalf("unexpected stored episode %#v", first)
	}

	again, err := d.Run(context.Background(), podcasts)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if again.New != 0 {
		t.Fatalf("expected no new episodes on second pass, got %d", again.New)
	}
}

func TestDiscovererHonoursEntriesLimit(t *testing.T) {
	var items strings.Builder
	for i := range 5 {
		items.WriteString(rssItem(fmt.Sprintf("Episode %d", i), fmt.Sprintf("https://cdn.test/%d.mp3", i), ""))
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, feedTemplate, items.String())
	}))
	defer server.Close()

	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	d := feeds.NewDiscoverer(store, feeds.Settings{EntriesLimit: 2}, logging.NewNop(), feeds.WithSleeper(noSleep))
	report, err := d.Run(context.Background(), []feeds.Podcast{{ID: "gotime", RSS: server.URL}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.New != 2 {
		t.Fatalf("expected 2 new episodes, got %+v", report)
	}
}

func TestDiscovererSkipsBrokenFeedsAndPausesBetweenFeeds(t *testing.T) {
	var hits atomic.Int32
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer broken.Close()
	flaky := atomic.Int32{}
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if flaky.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, feedTemplate, rssItem("Recovered", "https://cdn.test/r.mp3", ""))
	}))
	defer healthy.Close()

	var pauses []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	d := feeds.NewDiscoverer(store, feeds.Settings{Delay: 3 * time.Second}, logging.NewNop(), feeds.WithSleeper(sleep))

	report, err := d.Run(context.Background(), []feeds.Podcast{
		{ID: "broken", RSS: broken.URL},
		{ID: "healthy", RSS: healthy.URL},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.FeedErrors != 1 || report.New != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if hits.Load() != 1 {
		t.Fatalf("404 must not be retried, got %d requests", hits.Load())
	}
	// One pause between the feeds, one before retrying the 503.
	if len(pauses) != 2 || pauses[0] != 3*time.Second || pauses[1] != time.Second {
		t.Fatalf("unexpected pauses %v", pauses)
	}
}

func TestDiscovererStopsOnCancellation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := feeds.NewDiscoverer(store, feeds.Settings{}, logging.NewNop())
	_, err := d.Run(ctx, []feeds.Podcast{{ID: "a", RSS: "http://127.0.0.1:1/feed"}, {ID: "b", RSS: "http://127.0.0.1:1/feed"}})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
