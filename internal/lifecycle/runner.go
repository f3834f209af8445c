package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"podigest/internal/download"
	"podigest/internal/episodes"
	"podigest/internal/fetch"
	"podigest/internal/logging"
	"podigest/internal/publish"
	"podigest/internal/services"
)

// ErrNoEligible reports that no episode is waiting for processing.
var ErrNoEligible = errors.New("no eligible episode")

// Store is the slice of episode persistence the lifecycle needs.
type Store interface {
	Claim(ctx context.Context) (*episodes.Episode, error)
	MarkPublished(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, token, reason string) error
	Release(ctx context.Context, id int64, token string) error
}

// Downloader fetches episode audio to a local path.
type Downloader interface {
	Download(ctx context.Context, url, label string, maxProxyAttempts, maxAppRetries int) (string, error)
}

// Transcriber turns local audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Summarizer produces a digest, trying its providers in order.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, title string) (string, error)
}

// Dependencies bundles the collaborators of a Runner.
type Dependencies struct {
	Store       Store
	Downloader  Downloader
	Transcriber Transcriber
	Summarizer  Summarizer
	Publisher   publish.Publisher
}

// Settings carries the download budgets and housekeeping switches.
type Settings struct {
	MaxProxyAttempts int
	MaxAppRetries    int
	KeepAudio        bool
}

// Outcome describes how one episode left the lifecycle.
type Outcome struct {
	EpisodeID  int64
	Title      string
	State      State
	Reason     Reason
	Err        error
	AudioPath  string
	Transcript int
	Summary    string
	Elapsed    time.Duration
}

// Published reports whether the episode reached StatePublished.
func (o Outcome) Published() bool { return o.State == StatePublished }

// Runner executes the episode lifecycle.
type Runner struct {
	deps     Dependencies
	settings Settings
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// Option customizes a Runner.
type Option func(*Runner)

// WithSleeper replaces the pause between attempts to record a publication.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

const (
	recordAttempts = 3
	recordPause    = 2 * time.Second
)

// NewRunner constructs a Runner.
func NewRunner(deps Dependencies, settings Settings, logger *slog.Logger, opts ...Option) *Runner {
	if settings.MaxProxyAttempts < 1 {
		settings.MaxProxyAttempts = 1
	}
	if settings.MaxAppRetries < 1 {
		settings.MaxAppRetries = 1
	}
	r := &Runner{
		deps:     deps,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "lifecycle"),
		now:      time.Now,
		sleep:    services.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ProcessNext claims one eligible episode and processes it. It returns
// ErrNoEligible when nothing is waiting. Only claim failures are returned as
// errors; episode failures are reported through the Outcome.
func (r *Runner) ProcessNext(ctx context.Context) (Outcome, error) {
	ep, err := r.deps.Store.Claim(ctx)
	if err != nil {
		return Outcome{}, services.Wrap(services.ErrTransient, "selecting", "claim", "", err)
	}
	if ep == nil {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "no unpublished episodes available", "no_eligible_episode",
			logging.String(logging.FieldErrorHint, "run the feed fetch job or reset capped episodes"),
			logging.String(logging.FieldImpact, "nothing published this run"),
		)
		return Outcome{State: StateUnprocessed}, ErrNoEligible
	}
	return r.Process(ctx, ep), nil
}

// Process runs ep through the state machine. The episode must already be
// claimed by the caller. Panics inside collaborators are recovered and
// reported as ReasonUnexpected.
func (r *Runner) Process(ctx context.Context, ep *episodes.Episode) (outcome Outcome) {
	started := r.now()
	outcome = Outcome{EpisodeID: ep.ID, Title: ep.Title, State: StateUnprocessed}
	ctx = services.WithEpisodeID(ctx, ep.ID)
	m := &machine{state: StateUnprocessed}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = r.fail(ctx, ep, m, outcome, ReasonUnexpected, fmt.Errorf("panic: %v", rec))
		}
		if outcome.AudioPath != "" && !r.settings.KeepAudio {
			r.removeAudio(ctx, outcome.AudioPath)
		}
		outcome.Elapsed = r.now().Sub(started)
	}()

	logger := logging.WithContext(ctx, r.logger)
	logger.Info("processing episode",
		logging.String("title", ep.Title),
		logging.String("podcast", ep.PodcastName),
		logging.String("category", ep.Category),
		logging.String("duration", ep.Duration),
		logging.Int("previous_attempts", ep.Attempts),
		logging.String(logging.FieldEventType, "episode_start"),
	)

	if err := validateRecord(ep); err != nil {
		return r.fail(ctx, ep, m, outcome, ReasonInvalidRecord, err)
	}

	// Downloading
	if err := r.enter(ctx, m, StateDownloading); err != nil {
		return r.fail(ctx, ep, m, outcome, ReasonUnexpected, err)
	}
	path, err := r.deps.Downloader.Download(r.stageCtx(ctx, m), ep.AudioURL, ep.Label(), r.settings.MaxProxyAttempts, r.settings.MaxAppRetries)
	if err != nil {
		if ctx.Err() != nil {
			return r.interrupt(ctx, ep, m, outcome, err)
		}
		return r.fail(ctx, ep, m, outcome, downloadReason(err), err)
	}
	outcome.AudioPath = path

	// Transcribing
	if err := r.enter(ctx, m, StateTranscribing); err != nil {
		return r.fail(ctx, ep, m, outcome, ReasonUnexpected, err)
	}
	transcript, err := r.deps.Transcriber.Transcribe(r.stageCtx(ctx, m), path)
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = errors.New("empty transcript")
	}
	if err != nil {
		if ctx.Err() != nil {
			return r.interrupt(ctx, ep, m, outcome, err)
		}
		return r.fail(ctx, ep, m, outcome, ReasonTranscriptionFailed, err)
	}
	outcome.Transcript = len([]rune(transcript))

	// Summarizing
	if err := r.enter(ctx, m, StateSummarizing); err != nil {
		return r.fail(ctx, ep, m, outcome, ReasonUnexpected, err)
	}
	summary, err := r.deps.Summarizer.Summarize(r.stageCtx(ctx, m), transcript, ep.Title)
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("empty summary")
	}
	if err != nil {
		if ctx.Err() != nil {
			return r.interrupt(ctx, ep, m, outcome, err)
		}
		return r.fail(ctx, ep, m, outcome, ReasonSummarizationFailed, err)
	}
	outcome.Summary = summary

	// Publishing; the store flag is only set once the digest went out.
	if r.deps.Publisher != nil {
		err := r.deps.Publisher.Publish(r.stageCtx(ctx, m), publish.Digest{
			EpisodeID:   ep.ID,
			Title:       ep.Title,
			PodcastName: ep.PodcastName,
			Category:    ep.Category,
			Summary:     summary,
		})
		if err != nil {
			if ctx.Err() != nil {
				return r.interrupt(ctx, ep, m, outcome, err)
			}
			return r.fail(ctx, ep, m, outcome, ReasonPublicationFailed, err)
		}
	}
	if err := r.recordPublished(ctx, ep.ID); err != nil {
		return r.fail(ctx, ep, m, outcome, ReasonPublishedUnrecorded, fmt.Errorf("mark published: %w", err))
	}
	if err := m.advance(StatePublished); err != nil {
		return r.fail(ctx, ep, m, outcome, ReasonUnexpected, err)
	}
	outcome.State = StatePublished

	logger.Info("episode published",
		logging.String("title", ep.Title),
		logging.Int("transcript_chars", outcome.Transcript),
		logging.Int("summary_chars", len([]rune(summary))),
		logging.Duration("elapsed", r.now().Sub(started)),
		logging.String(logging.FieldEventType, "episode_published"),
	)
	return outcome
}

func (r *Runner) enter(ctx context.Context, m *machine, next State) error {
	if err := m.advance(next); err != nil {
		return err
	}
	logging.WithContext(r.stageCtx(ctx, m), r.logger).Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
	)
	return nil
}

func (r *Runner) stageCtx(ctx context.Context, m *machine) context.Context {
	return services.WithStage(ctx, string(m.state))
}

// fail moves the machine to StateFailed, records the reason, and emits the
// single terminal log line for the episode.
func (r *Runner) fail(ctx context.Context, ep *episodes.Episode, m *machine, outcome Outcome, reason Reason, cause error) Outcome {
	from := m.state
	if !from.Terminal() {
		m.state = StateFailed
	}
	outcome.State = StateFailed
	outcome.Reason = reason
	outcome.Err = cause

	logger := logging.WithContext(services.WithStage(ctx, string(from)), r.logger)
	logging.ErrorWithContext(logger, "episode failed", "episode_failed",
		logging.String("title", ep.Title),
		logging.String(logging.FieldReason, string(reason)),
		logging.Int("attempt", ep.Attempts+1),
		logging.Bool("retryable", services.Retryable(cause)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, hintFor(reason)),
	)

	// Bookkeeping must land even when the run is shutting down.
	storeCtx := context.WithoutCancel(ctx)
	if err := r.deps.Store.RecordFailure(storeCtx, ep.ID, ep.ClaimToken, string(reason)); err != nil {
		r.logStoreError(logger, "failed to record episode failure", err)
	}
	return outcome
}

// interrupt releases the claim without counting an attempt when the run
// itself was cancelled.
func (r *Runner) interrupt(ctx context.Context, ep *episodes.Episode, m *machine, outcome Outcome, cause error) Outcome {
	logger := logging.WithContext(r.stageCtx(ctx, m), r.logger)
	logger.Warn("episode interrupted; claim released",
		logging.String("title", ep.Title),
		logging.Error(cause),
		logging.String(logging.FieldEventType, "episode_interrupted"),
	)
	if err := r.deps.Store.Release(context.WithoutCancel(ctx), ep.ID, ep.ClaimToken); err != nil {
		r.logStoreError(logger, "failed to release claim", err)
	}
	m.state = StateFailed
	outcome.State = StateFailed
	outcome.Reason = ReasonUnexpected
	outcome.Err = cause
	return outcome
}

// logStoreError downgrades a lost claim to a warning; the newer run owns the
// episode and records its own outcome.
func (r *Runner) logStoreError(logger *slog.Logger, msg string, err error) {
	if errors.Is(err, episodes.ErrClaimLost) {
		logging.WarnWithContext(logger, "episode claimed by another run; outcome not recorded", "claim_lost",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the newer run decides this episode's state"),
		)
		return
	}
	logger.Error(msg, logging.Error(err))
}

// recordPublished marks the episode published after its digest went out. The
// write ignores cancellation of ctx and is retried recordAttempts times.
func (r *Runner) recordPublished(ctx context.Context, id int64) error {
	storeCtx := context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		if err = r.deps.Store.MarkPublished(storeCtx, id); err == nil {
			return nil
		}
		if attempt < recordAttempts {
			logging.WithContext(ctx, r.logger).Warn("recording publication failed; retrying",
				logging.Int("attempt", attempt),
				logging.Error(err),
				logging.String(logging.FieldEventType, "publish_record_retry"),
			)
			_ = r.sleep(storeCtx, recordPause)
		}
	}
	return err
}

func (r *Runner) removeAudio(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "downloaded audio not removed", "audio_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "audio stays on disk until removed manually"),
		)
	}
}

func validateRecord(ep *episodes.Episode) error {
	raw := strings.TrimSpace(ep.AudioURL)
	if raw == "" {
		return errors.New("episode has no audio url")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse audio url: %w", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("audio url %q is not an http(s) url", raw)
	}
	return nil
}

// downloadReason separates "every relay and retry failed" from "the resource
// itself is broken".
func downloadReason(err error) Reason {
	if errors.Is(err, download.ErrExhausted) {
		return ReasonDownloadExhausted
	}
	var fe *fetch.Error
	if errors.As(err, &fe) {
		return ReasonDownloadRejected
	}
	return ReasonUnexpected
}

func hintFor(reason Reason) string {
	switch reason {
	case ReasonDownloadExhausted:
		return "relays or the audio host are unreachable; the episode is retried next run"
	case ReasonDownloadRejected:
		return "the audio url answered with an error status; check the feed entry"
	case ReasonTranscriptionFailed:
		return "check the whisper binary and model"
	case ReasonSummarizationFailed:
		return "check the summarization provider tokens and quota"
	case ReasonPublicationFailed:
		return "check the telegram bot token and chat id"
	case ReasonPublishedUnrecorded:
		return "the digest was posted but the store write failed; repair the database or it will be posted again"
	case ReasonInvalidRecord:
		return "the stored episode has no usable audio url"
	default:
		return "check logs for details"
	}
}
