package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, logger, err := setup(&cliFlags{logLevel: "info"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.Equal(t, "gemini", cfg.Model.Provider)
	assert.True(t, cfg.NATS.Embedded)
}

func TestSetup_NATSURLFlagOverride(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, _, err := setup(&cliFlags{logLevel: "info", natsURL: "nats://remote:4222"})
	require.NoError(t, err)

	assert.Equal(t, "nats://remote:4222", cfg.NATS.URL)
	assert.False(t, cfg.NATS.Embedded)
}

func TestSetup_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
model:
  provider: openai
  name: llama3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, _, err := setup(&cliFlags{logLevel: "debug", configPath: path})
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "llama3", cfg.Model.Name)
}

func TestSetup_InvalidConfigFails(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	// Default gemini provider with no key anywhere
	_, _, err := setup(&cliFlags{logLevel: "info"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-10", truncate("exactly-10", 10))
	assert.Equal(t, "this is...", truncate("this is far too long", 10))
}
