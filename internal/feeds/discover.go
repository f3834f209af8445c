package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"podigest/internal/episodes"
	"podigest/internal/logging"
	"podigest/internal/services"
)

const (
	defaultEntriesLimit = 10
	defaultDelay        = 3 * time.Second
	defaultTimeout      = 15 * time.Second
	defaultUserAgent    = "Mozilla/5.0"
	feedRetries         = 3
	maxFeedBytes        = 32 << 20
	untitled            = "No title"
)

// ErrFeedStatus reports a feed that answered with a non-2xx status.
var ErrFeedStatus = errors.New("feed returned unexpected status")

// Saver stores a discovered episode and reports whether it was new.
type Saver interface {
	Save(ctx context.Context, ep episodes.NewEpisode) (bool, error)
}

// Settings controls polling pace and limits.
type Settings struct {
	EntriesLimit int
	Delay        time.Duration
	Timeout      time.Duration
	UserAgent    string
}

// Report summarizes one discovery pass.
type Report struct {
	Feeds      int
	FeedErrors int
	Entries    int
	New        int
	NoAudio    int
}

// Option customizes a Discoverer.
type Option func(*Discoverer)

// WithHTTPClient overrides the HTTP client used for feed requests.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Discoverer) {
		if client != nil {
			d.client = client
		}
	}
}

// WithSleeper overrides the pause between feeds and between feed retries.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(d *Discoverer) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// Discoverer polls podcast feeds and stores new entries.
type Discoverer struct {
	store    Saver
	settings Settings
	client   *http.Client
	sleep    func(context.Context, time.Duration) error
	logger   *slog.Logger
}

// NewDiscoverer constructs a Discoverer.
func NewDiscoverer(store Saver, settings Settings, logger *slog.Logger, opts ...Option) *Discoverer {
	if settings.EntriesLimit <= 0 {
		settings.EntriesLimit = defaultEntriesLimit
	}
	if settings.Delay < 0 {
		settings.Delay = defaultDelay
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	if strings.TrimSpace(settings.UserAgent) == "" {
		settings.UserAgent = defaultUserAgent
	}
	d := &Discoverer{
		store:    store,
		settings: settings,
		client:   &http.Client{Timeout: settings.Timeout},
		sleep:    services.Sleep,
		logger:   logging.NewComponentLogger(logger, "feeds"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls every podcast once. Feed failures are logged and counted; only
// cancellation and store failures abort the pass.
func (d *Discoverer) Run(ctx context.Context, podcasts []Podcast) (Report, error) {
	var report Report
	logger := logging.WithContext(ctx, d.logger)
	for i, podcast := range podcasts {
		if i > 0 {
			if err := d.sleep(ctx, d.settings.Delay); err != nil {
				return report, err
			}
		}
		report.Feeds++

		feed, err := d.fetch(ctx, podcast.RSS)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.FeedErrors++
			logging.WarnWithContext(logger, "feed skipped", "feed_error",
				logging.String("podcast", podcast.ID),
				logging.String("rss", podcast.RSS),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the rss url in the catalog"),
				logging.String(logging.FieldImpact, "no new episodes from this podcast this run"),
			)
			continue
		}
		if len(feed.Items) == 0 {
			logger.Info("feed has no entries", logging.String("podcast", podcast.ID))
			continue
		}

		added := 0
		for _, item := range limitItems(feed.Items, d.settings.EntriesLimit) {
			report.Entries++
			ep := toEpisode(podcast, item)
			if ep.AudioURL == "" {
				report.NoAudio++
				logger.Debug("entry without audio skipped",
					logging.String("podcast", podcast.ID),
					logging.String("title", ep.Title),
				)
				continue
			}
			inserted, err := d.store.Save(ctx, ep)
			if err != nil {
				return report, fmt.Errorf("save %s/%s: %w", podcast.ID, ep.Title, err)
			}
			if inserted {
				added++
				report.New++
				logger.Debug("episode discovered",
					logging.String("podcast", podcast.ID),
					logging.String("title", ep.Title),
				)
			}
		}
		logger.Info("feed polled",
			logging.String("podcast", podcast.ID),
			logging.Int("entries", len(feed.Items)),
			logging.Int("new", added),
		)
	}

	logger.Info("feed discovery finished",
		logging.Int("feeds", report.Feeds),
		logging.Int("feed_errors", report.FeedErrors),
		logging.Int("new_episodes", report.New),
		logging.String(logging.FieldEventType, "feeds_polled"),
	)
	return report, nil
}

// fetch downloads and parses one feed, retrying transient statuses.
func (d *Discoverer) fetch(ctx context.Context, rss string) (*gofeed.Feed, error) {
	var lastErr error
	for attempt := 0; attempt <= feedRetries; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, time.Duration(attempt)*time.Second); err != nil {
				return nil, err
			}
		}
		feed, retry, err := d.fetchOnce(ctx, rss)
		if err == nil {
			return feed, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (d *Discoverer) fetchOnce(ctx context.Context, rss string) (*gofeed.Feed, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rss, nil)
	if err != nil {
		return nil, false, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", d.settings.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, application/atom+xml, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, retryableStatus(resp.StatusCode), fmt.Errorf("%w: %s", ErrFeedStatus, resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, false, fmt.Errorf("parse feed: %w", err)
	}
	return feed, false, nil
}

func limitItems(items []*gofeed.Item, limit int) []*gofeed.Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func toEpisode(podcast Podcast, item *gofeed.Item) episodes.NewEpisode {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitled
	}
	ep := episodes.NewEpisode{
		PodcastID:   podcast.ID,
		PodcastName: podcast.Name,
		Title:       title,
		Category:    podcast.Category,
		AudioURL:    audioURL(item),
	}
	if item.ITunesExt != nil {
		ep.Duration = strings.TrimSpace(item.ITunesExt.Duration)
	}
	return ep
}

// audioURL prefers the first enclosure, then any link that looks like audio.
func audioURL(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc != nil && strings.TrimSpace(enc.URL) != "" {
			return strings.TrimSpace(enc.URL)
		}
	}
	links := append([]string{item.Link}, item.Links...)
	for _, link := range links {
		if looksLikeAudio(link) {
			return strings.TrimSpace(link)
		}
	}
	return ""
}

func looksLikeAudio(link string) bool {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(path.Ext(parsed.Path)) {
	case ".mp3", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".flac":
		return true
	default:
		return false
	}
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
