package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podigest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are blank and the relay pool is disabled unless an option turns
// it on.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.EpisodesDir = filepath.Join(base, "data", "episodes")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "data", "podcasts.db")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "podcasts.json")
	cfgVal.Paths.ProxyFile = filepath.Join(base, "proxies.txt")
	cfgVal.Proxy.Enabled = false
	cfgVal.Proxy.TestOnStartup = false
	cfgVal.Summarization.Primary.APIKey = ""
	cfgVal.Summarization.Fallback.APIKey = ""
	cfgVal.Publish.TelegramToken = ""
	cfgVal.Publish.ChatID = ""
	cfgVal.Schedule.RunOnStart = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithProxies writes the given relay addresses to the proxy file and enables the pool.
func WithProxies(addresses ...string) ConfigOption {
	return func(b *configBuilder) {
		content := strings.Join(addresses, "\n") + "\n"
		if err := os.WriteFile(b.cfg.Paths.ProxyFile, []byte(content), 0o644); err != nil {
			b.t.Fatalf("write proxy file: %v", err)
		}
		b.cfg.Proxy.Enabled = true
	}
}

// WithMaxEpisodeAttempts caps how often a failing episode is retried.
func WithMaxEpisodeAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.MaxEpisodeAttempts = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, whisper is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"whisper"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
