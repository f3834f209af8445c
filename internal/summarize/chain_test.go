package summarize_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"podigest/internal/services"
	"podigest/internal/summarize"
)

type fakeCompleter struct {
	name       string
	configured bool
	reply      string
	err        error
	calls      int
	system     string
	user       string
}

func (f *fakeCompleter) Name() string     { return f.name }
func (f *fakeCompleter) Configured() bool { return f.configured }
func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.system = systemPrompt
	f.user = userPrompt
	return f.reply, f.err
}

func TestChainUsesPrimaryFirst(t *testing.T) {
	primary := &fakeCompleter{name: "groq", configured: true, reply: " digest "}
	fallback := &fakeCompleter{name: "huggingface", configured: true, reply: "other"}
	chain := summarize.NewChain(0, nil,
		summarize.Provider{Client: primary, SystemPrompt: "primary system"},
		summarize.Provider{Client: fallback, SystemPrompt: "fallback system"},
	)

	got, err := chain.Summarize(context.Background(), "we talk about Go", "Episode 1")
	if err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if got != "digest" {
		t.Fatalf("unexpected summary %q", got)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not be called when primary succeeds")
	}
	if primary.system != "primary system" || !strings.Contains(primary.user, "Эпизод: Episode 1") || !strings.Contains(primary.user, "we talk about Go") {
		t.Fatalf("unexpected prompts: %q / %q", primary.system, primary.user)
	}
}

func TestChainFallsBackOnErrorOrEmptyReply(t *testing.T) {
	for name, primary := range map[string]*fakeCompleter{
		"error": {name: "groq", configured: true, err: errors.New("http 500")},
		"empty": {name: "groq", configured: true, reply: "   "},
	} {
		fallback := &fakeCompleter{name: "huggingface", configured: true, reply: "fallback digest"}
		chain := summarize.NewChain(0, nil,
			summarize.Provider{Client: primary},
			summarize.Provider{Client: fallback, SystemPrompt: "fallback system"},
		)
		got, err := chain.Summarize(context.Background(), "transcript", "Title")
		if err != nil {
			t.Fatalf("%s: Summarize returned error: %v", name, err)
		}
		if got != "fallback digest" || fallback.system != "fallback system" {
			t.Fatalf("%s: unexpected fallback result %q (%q)", name, got, fallback.system)
		}
	}
}

func TestChainSkipsUnconfiguredProviders(t *testing.T) {
	primary := &fakeCompleter{name: "groq"}
	fallback := &fakeCompleter{name: "huggingface", configured: true, reply: "ok"}
	chain := summarize.NewChain(0, nil, summarize.Provider{Client: primary}, summarize.Provider{Client: fallback})

	if _, err := chain.Summarize(context.Background(), "transcript", "Title"); err != nil {
		t.Fatalf("Summarize returned error: %v", err)
	}
	if primary.calls != 0 {
		t.Fatal("unconfigured provider must be skipped")
	}
}

func TestChainFailsWhenAllProvidersFail(t *testing.T) {
	chain := summarize.NewChain(0, nil,
		summarize.Provider{Client: &fakeCompleter{name: "groq", configured: true, err: errors.New("quota")}},
		summarize.Provider{Client: &fakeCompleter{name: "huggingface", configured: true}},
	)
	_, err := chain.Summarize(context.Background(), "transcript", "Title")
	if !errors.Is(err, summarize.ErrNoSummary) {
		t.Fatalf("expected ErrNoSummary, got %v", err)
	}

	none := summarize.NewChain(0, nil, summarize.Provider{Client: &fakeCompleter{name: "groq"}})
	_, err = none.Summarize(context.Background(), "transcript", "Title")
	if !errors.Is(err, summarize.ErrNoProvider) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestChainRejectsEmptyTranscript(t *testing.T) {
	chain := summarize.NewChain(0, nil, summarize.Provider{Client: &fakeCompleter{name: "groq", configured: true, reply: "x"}})
	if _, err := chain.Summarize(context.Background(), "  ", "Title"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBuildPromptTruncatesTranscript(t *testing.T) {
	transcript := strings.Repeat("я", 9000)
	prompt := summarize.BuildPrompt("Title", transcript, summarize.DefaultTranscriptLimit)
	if strings.Contains(prompt, strings.Repeat("я", 8001)) {
		t.Fatal("expected transcript truncated to 8000 characters")
	}
	if !strings.Contains(prompt, strings.Repeat("я", 8000)) {
		t.Fatal("expected 8000 characters of transcript")
	}
	if !strings.HasPrefix(prompt, "Ты — редактор подкаст-дайджестов на русском языке.") {
		t.Fatalf("unexpected prompt header %q", prompt[:80])
	}
	if !strings.HasSuffix(prompt, "Формат ответа должен быть удобен для публикации в Telegram.") {
		t.Fatal("unexpected prompt footer")
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	if got := summarize.Truncate("привет", 3); got != "при" || !utf8.ValidString(got) {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := summarize.Truncate("short", 0); got != "short" {
		t.Fatalf("non-positive limit must keep text, got %q", got)
	}
}
