package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"podigest/internal/config"
	"podigest/internal/episodes"
	"podigest/internal/testsupport"
)

var configEnvKeys = []string{
	"GROQ_TOKEN", "HF_TOKEN", "BOT_TOKEN", "CHAT_ID", "LOG_LEVEL",
	"USE_PROXY", "TEST_PROXIES_ON_STARTUP", "MAX_PROXIES_TO_TEST", "PROXY_FILE",
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	cfg.Feeds.DelaySeconds = 0
	cfg.Proxy.ProbeDelayMS = 0
	cfg.Proxy.ProbeTimeout = 2
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(base, "config.toml"),
		baseDir:    base,
	}
	env.writeConfig(t)
	return env
}

func (e *cliTestEnv) writeConfig(t *testing.T) {
	t.Helper()
	data, err := toml.Marshal(e.cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(e.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// seed stores episodes and closes the store so the CLI can open it.
func (e *cliTestEnv) seed(t *testing.T, fn func(*episodes.Store)) {
	t.Helper()
	store, err := episodes.Open(e.cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	fn(store)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
