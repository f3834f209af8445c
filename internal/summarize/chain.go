package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"podigest/internal/logging"
	"podigest/internal/services"
)

// ErrNoProvider reports a chain without any configured provider.
var ErrNoProvider = errors.New("no summarization provider configured")

// ErrNoSummary reports that every configured provider failed.
var ErrNoSummary = errors.New("no provider produced a summary")

// Completer is one chat completion backend.
type Completer interface {
	Name() string
	Configured() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider pairs a backend with the system prompt it is called with.
type Provider struct {
	Client       Completer
	SystemPrompt string
}

// Chain asks providers in order until one returns a non-empty digest.
type Chain struct {
	providers       []Provider
	transcriptLimit int
	logger          *slog.Logger
}

// NewChain constructs a Chain. Providers are tried in the given order.
func NewChain(transcriptLimit int, logger *slog.Logger, providers ...Provider) *Chain {
	if transcriptLimit <= 0 {
		transcriptLimit = DefaultTranscriptLimit
	}
	return &Chain{
		providers:       providers,
		transcriptLimit: transcriptLimit,
		logger:          logging.NewComponentLogger(logger, "summarize"),
	}
}

// Summarize returns the digest for the episode. Unconfigured providers are skipped.
func (c *Chain) Summarize(ctx context.Context, transcript, title string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", services.Wrap(services.ErrValidation, "summarizing", "prompt", "transcript is empty", nil)
	}
	prompt := BuildPrompt(title, transcript, c.transcriptLimit)
	logger := logging.WithContext(ctx, c.logger)

	var (
		tried   int
		lastErr error
	)
	for _, provider := range c.providers {
		if provider.Client == nil || !provider.Client.Configured() {
			continue
		}
		tried++
		name := provider.Client.Name()
		summary, err := provider.Client.Complete(ctx, provider.SystemPrompt, prompt)
		if err == nil {
			if summary = strings.TrimSpace(summary); summary != "" {
				logger.Info("summary generated",
					logging.String("provider", name),
					logging.Int("characters", len([]rune(summary))),
				)
				return summary, nil
			}
			err = errors.New("empty reply")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		lastErr = fmt.Errorf("%s: %w", name, err)
		logging.WarnWithContext(logger, "summary provider failed", "summary_provider_failed",
			logging.String("provider", name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the provider token and quota"),
			logging.String(logging.FieldImpact, "the next provider is tried"),
		)
	}

	if tried == 0 {
		return "", services.Wrap(services.ErrConfiguration, "summarizing", "providers", "", ErrNoProvider)
	}
	return "", services.Wrap(services.ErrTransient, "summarizing", "providers", "", errors.Join(ErrNoSummary, lastErr))
}
