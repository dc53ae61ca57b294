// Package config loads easel's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/catwalk/pkg/catwalk"
	"gopkg.in/yaml.v3"

	"github.com/alexcabrera/easel/internal/model"
	"github.com/alexcabrera/easel/internal/paths"
)

const (
	PolicyReject    = "reject"
	PolicySupersede = "supersede"
)

var (
	ErrInvalidModelRef = errors.New("invalid model ref")
	ErrInvalidPolicy   = errors.New("invalid conflict policy")
	ErrInvalidRetry    = errors.New("invalid retry settings")
	ErrInvalidTimeout  = errors.New("invalid request timeout")
	ErrInvalidLog      = errors.New("invalid log settings")
	ErrInvalidHistory  = errors.New("invalid history settings")
)

// Config represents the CLI configuration for easel.
type Config struct {
	ImageModel     string           `yaml:"image_model"`
	ChatModel      string           `yaml:"chat_model"`
	GeminiAPIKey   string           `yaml:"gemini_api_key"`
	Provider       catwalk.Provider `yaml:"provider"`
	LogLevel       string           `yaml:"log_level"`
	LogFormat      string           `yaml:"log_format"`
	RequestTimeout time.Duration    `yaml:"request_timeout"`
	Retry          RetryConfig      `yaml:"retry"`
	ConflictPolicy string           `yaml:"conflict_policy"`
	History        HistoryConfig    `yaml:"history"`
	DBPath         string           `yaml:"db_path"`
}

// RetryConfig bounds automatic retries of transient model failures.
type RetryConfig struct {
	MaxRetries     uint64        `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

// HistoryConfig controls the run log.
type HistoryConfig struct {
	Enabled       bool  `yaml:"enabled"`
	RetentionDays int   `yaml:"retention_days"`
	MaxRuns       int64 `yaml:"max_runs"`
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		ImageModel:     "googleai/gemini-2.0-flash-preview-image-generation",
		ChatModel:      "googleai/gemini-2.5-flash",
		LogLevel:       "warn",
		LogFormat:      "text",
		RequestTimeout: 2 * time.Minute,
		Retry: RetryConfig{
			MaxRetries:     2,
			InitialBackoff: 500 * time.Millisecond,
		},
		ConflictPolicy: PolicyReject,
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
			MaxRuns:       1000,
		},
		DBPath: paths.DatabasePath(),
		Provider: catwalk.Provider{
			Name:        "openai",
			ID:          catwalk.InferenceProviderOpenAI,
			Type:        catwalk.TypeOpenAI,
			APIEndpoint: "https://api.openai.com/v1",
		},
	}
}

// Load reads configuration from the given path, falling back to defaults when missing.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = paths.DatabasePath()
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c Config) Validate() error {
	for _, ref := range []string{c.ImageModel, c.ChatModel} {
		if _, _, err := model.SplitRef(ref); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidModelRef, ref)
		}
	}

	switch c.ConflictPolicy {
	case PolicyReject, PolicySupersede:
	default:
		return fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidPolicy, c.ConflictPolicy, PolicyReject, PolicySupersede)
	}

	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.RequestTimeout)
	}

	if c.Retry.MaxRetries > 0 && c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("%w: initial_backoff must be positive", ErrInvalidRetry)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: level %q", ErrInvalidLog, c.LogLevel)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidLog, c.LogFormat)
	}

	if c.History.RetentionDays < 0 || c.History.MaxRuns < 0 {
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidHistory)
	}

	return nil
}

// GeminiKey resolves the Gemini API key from config, then GEMINI_API_KEY,
// GOOGLE_API_KEY, and finally stored credentials.
func (c Config) GeminiKey(creds *Credentials) string {
	if c.GeminiAPIKey != "" {
		return c.GeminiAPIKey
	}
	for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	if creds != nil {
		return creds.Lookup("google")
	}
	return ""
}

// ChatProvider returns the configured chat provider with its key filled in.
// Google providers share the Gemini key.
func (c Config) ChatProvider(creds *Credentials) catwalk.Provider {
	p := c.Provider
	if p.APIKey == "" && p.Type == catwalk.TypeGoogle {
		p.APIKey = c.GeminiKey(creds)
	}
	return p
}
