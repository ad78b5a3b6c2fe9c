// Package config loads parley configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModel is used when neither the config file nor the environment
// names a model.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultMaxTokens bounds the length of a single generated reply.
const DefaultMaxTokens = 4096

// Config holds all configuration values.
type Config struct {
	// Anthropic API
	APIKey    string
	Model     string
	MaxTokens int

	// Applied to every conversation that has no prompt of its own.
	SystemPrompt string

	// Storage
	DataDir string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Optional SurrealDB archive. Empty URL disables the archive commands.
	DBURL       string
	DBNamespace string
	DBDatabase  string
	DBUser      string
	DBPass      string
}

// fileConfig is the YAML shape of ~/.config/parley/config.yaml.
// Every field is optional; zero values fall through to the defaults.
type fileConfig struct {
	Model        string `yaml:"model"`
	MaxTokens    int    `yaml:"max_tokens"`
	SystemPrompt string `yaml:"system_prompt"`
	DataDir      string `yaml:"data_dir"`
	LogFile      string `yaml:"log_file"`
	LogLevel     string `yaml:"log_level"`

	DB struct {
		URL       string `yaml:"url"`
		Namespace string `yaml:"namespace"`
		Database  string `yaml:"database"`
		User      string `yaml:"user"`
		Pass      string `yaml:"pass"`
	} `yaml:"db"`
}

// Load reads configuration with precedence: defaults, then the config file,
// then environment variables. A missing config file is not an error.
func Load() (Config, error) {
	return load(defaultConfigPath())
}

func load(path string) (Config, error) {
	cfg := Config{
		Model:       DefaultModel,
		MaxTokens:   DefaultMaxTokens,
		DataDir:     defaultDataDir(),
		LogFile:     defaultLogFile(),
		LogLevel:    slog.LevelInfo,
		DBNamespace: "parley",
		DBDatabase:  "chat",
		DBUser:      "root",
		DBPass:      "root",
	}

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	return cfg, nil
}

// applyFile overlays values from the YAML config file, if it exists.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Model != "" {
		cfg.Model = fc.Model
	}
	if fc.MaxTokens > 0 {
		cfg.MaxTokens = fc.MaxTokens
	}
	if fc.SystemPrompt != "" {
		cfg.SystemPrompt = fc.SystemPrompt
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = parseLogLevel(fc.LogLevel)
	}
	if fc.DB.URL != "" {
		cfg.DBURL = fc.DB.URL
	}
	if fc.DB.Namespace != "" {
		cfg.DBNamespace = fc.DB.Namespace
	}
	if fc.DB.Database != "" {
		cfg.DBDatabase = fc.DB.Database
	}
	if fc.DB.User != "" {
		cfg.DBUser = fc.DB.User
	}
	if fc.DB.Pass != "" {
		cfg.DBPass = fc.DB.Pass
	}

	return nil
}

// applyEnv overlays environment variables on top of file values.
func applyEnv(cfg *Config) {
	cfg.APIKey = getEnv("ANTHROPIC_API_KEY", cfg.APIKey)
	cfg.Model = getEnv("PARLEY_MODEL", cfg.Model)
	cfg.SystemPrompt = getEnv("PARLEY_SYSTEM_PROMPT", cfg.SystemPrompt)
	cfg.DataDir = getEnv("PARLEY_DATA_DIR", cfg.DataDir)
	cfg.LogFile = getEnv("PARLEY_LOG_FILE", cfg.LogFile)

	if v := os.Getenv("PARLEY_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("PARLEY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	cfg.DBURL = getEnv("PARLEY_DB_URL", cfg.DBURL)
	cfg.DBNamespace = getEnv("PARLEY_DB_NAMESPACE", cfg.DBNamespace)
	cfg.DBDatabase = getEnv("PARLEY_DB_DATABASE", cfg.DBDatabase)
	cfg.DBUser = getEnv("PARLEY_DB_USER", cfg.DBUser)
	cfg.DBPass = getEnv("PARLEY_DB_PASS", cfg.DBPass)
}

// HasAPIKey reports whether sending is possible. Without a key the client
// runs in a degraded viewing/composing mode.
func (c Config) HasAPIKey() bool {
	return c.APIKey != ""
}

// HasArchive reports whether the SurrealDB archive is configured.
func (c Config) HasArchive() bool {
	return c.DBURL != ""
}

// ConversationsDir returns the directory holding per-conversation JSON files.
func (c Config) ConversationsDir() string {
	return filepath.Join(c.DataDir, "conversations")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "parley", "config.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "parley")
}

func defaultLogFile() string {
	cache, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "parley.log")
	}
	return filepath.Join(cache, "parley", "parley.log")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
