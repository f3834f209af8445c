package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"podigest/internal/config"
	"podigest/internal/logging"
	"podigest/internal/services"
)

const (
	// MaxMessageLength is Telegram's limit on visible message characters.
	MaxMessageLength = 4096
	parseModeHTML    = "HTML"
	maxRetryAfter    = 30 * time.Second
)

// Digest is one summarized episode ready for publication.
type Digest struct {
	EpisodeID   int64
	Title       string
	PodcastName string
	Category    string
	Summary     string
}

// Publisher sends digests to their audience.
type Publisher interface {
	Publish(ctx context.Context, digest Digest) error
}

// APIError reports a Bot API rejection.
type APIError struct {
	StatusCode  int
	ErrorCode   int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram sendMessage: http %d: %s", e.StatusCode, e.Description)
}

// Option customizes the Telegram publisher.
type Option func(*Telegram)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(t *Telegram) {
		if client != nil {
			t.client = client
		}
	}
}

// WithSleeper overrides how the publisher waits before retrying a rate-limited send.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(t *Telegram) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// NewService builds a Telegram publisher when credentials are configured,
// otherwise a no-op publisher that only logs.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) Publisher {
	logger = logging.NewComponentLogger(logger, "publish")
	if !cfg.Publish.Configured() {
		return noopPublisher{logger: logger}
	}
	timeout := time.Duration(cfg.Publish.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	t := &Telegram{
		baseURL:     strings.TrimRight(cfg.Publish.APIBaseURL, "/"),
		token:       cfg.Publish.TelegramToken,
		chatID:      cfg.Publish.ChatID,
		footerLabel: cfg.Publish.FooterLabel,
		footerURL:   cfg.Publish.FooterURL,
		client:      &http.Client{Timeout: timeout},
		sleep:       services.Sleep,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Telegram publishes digests through the Bot API.
type Telegram struct {
	baseURL     string
	token       string
	chatID      string
	footerLabel string
	footerURL   string
	client      *http.Client
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Publish sends the digest. A rate-limited send is retried once after the
// delay Telegram asks for.
func (t *Telegram) Publish(ctx context.Context, digest Digest) error {
	summary := strings.TrimSpace(digest.Summary)
	if summary == "" {
		return errors.New("publish: empty summary")
	}
	text := FormatMessage(summary, t.footerLabel, t.footerURL)

	err := t.send(ctx, text)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests && apiErr.RetryAfter > 0 {
		wait := min(apiErr.RetryAfter, maxRetryAfter)
		logging.WithContext(ctx, t.logger).Info("telegram rate limited; retrying", logging.Duration("wait", wait))
		if serr := t.sleep(ctx, wait); serr != nil {
			return serr
		}
		err = t.send(ctx, text)
	}
	if err != nil {
		return err
	}
	logging.WithContext(ctx, t.logger).Info("digest published",
		logging.String("title", digest.Title),
		logging.String("chat_id", t.chatID),
	)
	return nil
}

func (t *Telegram) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text, ParseMode: parseModeHTML})
	if err != nil {
		return fmt.Errorf("encode telegram request: %w", err)
	}
	endpoint := t.baseURL + "/bot" + t.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL embeds the bot token; keep it out of logs.
		return fmt.Errorf("send telegram message: %w", redact(err, t.token))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed sendMessageResponse
	_ = json.Unmarshal(raw, &parsed)
	if resp.StatusCode >= 300 || !parsed.OK {
		apiErr := &APIError{StatusCode: resp.StatusCode, ErrorCode: parsed.ErrorCode, Description: strings.TrimSpace(parsed.Description)}
		if apiErr.Description == "" {
			apiErr.Description = strings.TrimSpace(string(raw))
		}
		if parsed.Parameters != nil && parsed.Parameters.RetryAfter > 0 {
			apiErr.RetryAfter = time.Duration(parsed.Parameters.RetryAfter) * time.Second
		}
		return apiErr
	}
	return nil
}

// FormatMessage escapes summary for HTML parse mode, cuts it so the visible
// text fits MaxMessageLength, and appends the footer link.
func FormatMessage(summary, footerLabel, footerURL string) string {
	footerLabel = strings.TrimSpace(footerLabel)
	footerURL = strings.TrimSpace(footerURL)

	var footer string
	budget := MaxMessageLength
	if footerLabel != "" && footerURL != "" {
		footer = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(footerURL), html.EscapeString(footerLabel))
		budget -= len([]rune(footerLabel)) + 2
	}

	runes := []rune(strings.TrimSpace(summary))
	if len(runes) > budget {
		runes = append(runes[:budget-1], '…')
	}
	text := html.EscapeString(string(runes))
	if footer != "" {
		text += "\n\n" + footer
	}
	return text
}

func redact(err error, secret string) error {
	if secret == "" {
		return err
	}
	msg := strings.ReplaceAll(err.Error(), secret, "<redacted>")
	return errors.New(msg)
}


type noopPublisher struct {
	logger *slog.Logger
}

func (n noopPublisher) Publish(ctx context.Context, digest Digest) error {
	logging.WarnWithContext(logging.WithContext(ctx, n.logger), "telegram not configured; digest not sent", "publish_skipped",
		logging.String("title", digest.Title),
		logging.Int("characters", len([]rune(digest.Summary))),
		logging.String(logging.FieldErrorHint, "set BOT_TOKEN and CHAT_ID or publish.telegram_token and publish.chat_id"),
		logging.String(logging.FieldImpact, "the episode is marked published without a channel post"),
	)
	return nil
}
