package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"podigest/internal/feeds"
	"podigest/internal/lifecycle"
	"podigest/internal/logging"
	"podigest/internal/pipeline"
	"podigest/internal/proxypool"
	"podigest/internal/publish"
	"podigest/internal/testsupport"
)

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "transcript of " + string(data), nil
}

type fakeSummarizer struct{}

func (fakeSummarizer) Summarize(_ context.Context, transcript, title string) (string, error) {
	return title + ": " + transcript, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	digests []publish.Digest
}

func (p *recordingPublisher) Publish(_ context.Context, d publish.Digest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.digests = append(p.digests, d)
	return nil
}

func newPodcastServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Go Time</title>
<item><title>Generics</title><enclosure url="%s/generics.mp3" length="9" type="audio/mpeg"/></item>
</channel></rss>`, server.URL)
	})
	mux.HandleFunc("/generics.mp3", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 audio"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeCatalog(t *testing.T, path, rss string) {
	t.Helper()
	body := fmt.Sprintf(`{"tech": {"gotime": {"name": "Go Time", "rss": %q}}}`, rss)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
}

func TestFetchThenProcessPublishesDigest(t *testing.T) {
	server := newPodcastServer(t)
	cfg := testsupport.NewConfig(t)
	cfg.Feeds.DelaySeconds = 0
	writeCatalog(t, cfg.Paths.CatalogPath, server.URL+"/feed.xml")

	publisher := &recordingPublisher{}
	var pauses []time.Duration
	p, err := pipeline.New(cfg, logging.NewNop(),
		pipeline.WithFeedOption(feeds.WithSleeper(func(_ context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return nil
		})),
		pipeline.WithTranscriber(fakeTranscriber{}),
		pipeline.WithSummarizer(fakeSummarizer{}),
		pipeline.WithPublisher(publisher),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	if p.Pool != nil {
		t.Fatal("expected no relay pool when proxies are disabled")
	}

	report, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if report.New != 1 {
		t.Fatalf("expected one new episode, got %+v", report)
	}
	if len(pauses) != 0 {
		t.Fatalf("expected no pause for a single feed, got %v", pauses)
	}

	outcome, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if !outcome.Published() {
		t.Fatalf("expected publication, got %+v", outcome)
	}
	if len(publisher.digests) != 1 {
		t.Fatalf("expected one digest, got %d", len(publisher.digests))
	}
	d := publisher.digests[0]
	if d.Category != "Tech" || d.PodcastName != "Go Time" || d.Summary != "Generics: transcript of ID3 audio" {
		t.Fatalf("unexpected digest %+v", d)
	}
	if _, err := os.Stat(outcome.AudioPath); !os.IsNotExist(err) {
		t.Fatalf("expected audio to be removed after publication, stat err=%v", err)
	}

	stats, err := p.Store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Published != 1 || stats.Pending != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if _, err := p.ProcessOne(context.Background()); !errors.Is(err, lifecycle.ErrNoEligible) {
		t.Fatalf("expected ErrNoEligible, got %v", err)
	}
}

func TestDeadRelaysFallBackToDirectDownload(t *testing.T) {
	server := newPodcastServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithProxies("socks5://127.0.0.1:1", "http://127.0.0.1:2"))
	cfg.Proxy.ProbeDelayMS = 0
	cfg.Proxy.TestOnStartup = true
	cfg.Download.KeepAudio = true

	var probes int
	var mu sync.Mutex
	prober := proxypool.ProberFunc(func(context.Context, string) error {
		mu.Lock()
		probes++
		mu.Unlock()
		return proxypool.ErrUnhealthy
	})
	p, err := pipeline.New(cfg, logging.NewNop(),
		pipeline.WithProber(prober),
		pipeline.WithTranscriber(fakeTranscriber{}),
		pipeline.WithSummarizer(fakeSummarizer{}),
		pipeline.WithPublisher(&recordingPublisher{}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	if p.Pool == nil || p.Pool.Len() != 2 {
		t.Fatalf("expected pool with two candidates, got %+v", p.Pool)
	}

	p.WarmUp(context.Background())
	if len(p.Pool.Failed()) != 2 || len(p.Pool.Working()) != 0 {
		t.Fatalf("expected both relays failed, working=%v failed=%v", p.Pool.Working(), p.Pool.Failed())
	}

	testsupport.SaveEpisode(t, p.Store, "gotime", "Direct", server.URL+"/generics.mp3")
	outcome, err := p.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}
	if !outcome.Published() {
		t.Fatalf("expected publication via direct download, got %+v", outcome)
	}
	if _, err := os.Stat(outcome.AudioPath); err != nil {
		t.Fatalf("expected kept audio: %v", err)
	}
	if probes != 2 {
		t.Fatalf("expected failed relays never to be reprobed, got %d probes", probes)
	}
}

func TestMissingProxyListDisablesPool(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Proxy.Enabled = true
	p, err := pipeline.New(cfg, logging.NewNop(), pipeline.WithPublisher(&recordingPublisher{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()
	if p.Pool != nil {
		t.Fatal("expected nil pool when the proxy list is missing")
	}
	p.WarmUp(context.Background())
}

func TestJobsFollowSchedule(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	p, err := pipeline.New(cfg, logging.NewNop(), pipeline.WithPublisher(&recordingPublisher{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	opts := p.SchedulerOptions()
	if opts.LockPath != cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", opts.LockPath)
	}
	if len(opts.Jobs) != 2 || opts.Jobs[0].Name != "fetch" || opts.Jobs[1].Name != "process" {
		t.Fatalf("unexpected jobs %+v", opts.Jobs)
	}
	if opts.Jobs[0].Spec != cfg.Schedule.FetchCron || opts.Jobs[1].Spec != cfg.Schedule.ProcessCron {
		t.Fatalf("unexpected specs %+v", opts.Jobs)
	}
	if err := opts.Jobs[1].Run(context.Background()); err != nil {
		t.Fatalf("process job with empty store should succeed, got %v", err)
	}
	if err := opts.Jobs[0].Run(context.Background()); err == nil {
		t.Fatal("fetch job should fail without a catalog")
	}
}
