package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the loader reads so tests are not
// affected by the surrounding environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY",
		"PARLEY_MODEL", "PARLEY_SYSTEM_PROMPT", "PARLEY_DATA_DIR",
		"PARLEY_LOG_FILE", "PARLEY_LOG_LEVEL", "PARLEY_MAX_TOKENS",
		"PARLEY_DB_URL", "PARLEY_DB_NAMESPACE", "PARLEY_DB_DATABASE",
		"PARLEY_DB_USER", "PARLEY_DB_PASS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.HasAPIKey())
	assert.False(t, cfg.HasArchive())
	assert.Equal(t, filepath.Join(cfg.DataDir, "conversations"), cfg.ConversationsDir())
}

func TestFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, `
model: claude-opus-4-1
max_tokens: 1024
system_prompt: be terse
log_level: debug
db:
  url: ws://localhost:8000/rpc
  namespace: myns
`)

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude-opus-4-1", cfg.Model)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, "be terse", cfg.SystemPrompt)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.HasArchive())
	assert.Equal(t, "myns", cfg.DBNamespace)
	assert.Equal(t, "chat", cfg.DBDatabase, "unset file values keep their defaults")
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "model: from-file\nmax_tokens: 1024\n")

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("PARLEY_MODEL", "from-env")
	t.Setenv("PARLEY_MAX_TOKENS", "2048")

	cfg, err := load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Model)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.True(t, cfg.HasAPIKey())
}

func TestMissingFileIsNotAnError(t *testing.T) {
	clearEnv(t)

	cfg, err := load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Model)
}

func TestMalformedFileFails(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "model: [unclosed\n")

	_, err := load(path)
	assert.Error(t, err)
}

func TestInvalidMaxTokensEnvIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARLEY_MAX_TOKENS", "not-a-number")

	cfg, err := load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}
