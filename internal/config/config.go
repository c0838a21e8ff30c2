// Package config provides configuration loading and validation for the
// screener service. The resulting Config is passed explicitly into pipeline
// and gate construction; nothing reads ambient process state mid-algorithm.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/media-screener/internal/llm"
)

// Config holds every tunable the service uses. All fields are optional in the
// JSON file; missing values keep their defaults.
type Config struct {
	// Server
	Port int `json:"port,omitempty"`

	// Stores and credentials
	DatabaseURL        string `json:"database_url,omitempty"`        // postgres:// URL or SQLite file path
	GeminiAPIKey       string `json:"gemini_api_key,omitempty"`      // analysis provider API key
	YouTubeCredentials string `json:"youtube_credentials,omitempty"` // path to OAuth credentials for publishing

	// Evaluation
	PrimaryModel   string   `json:"primary_model,omitempty"`
	FallbackModels []string `json:"fallback_models,omitempty"`
	ScoreThreshold float64  `json:"score_threshold"` // publish eligibility cutoff, 0-100

	// Ingest limits
	MaxUploadMB int `json:"max_upload_mb,omitempty"`

	// Stage deadlines
	StagingTransferTimeoutSec int `json:"staging_transfer_timeout_sec,omitempty"`
	ReadinessTimeoutSec       int `json:"readiness_timeout_sec,omitempty"`
	PollIntervalMillis        int `json:"poll_interval_millis,omitempty"`
	EvaluationTimeoutSec      int `json:"evaluation_timeout_sec,omitempty"`
}

// Default returns the fully-populated default configuration.
func Default() Config {
	return Config{
		Port:                      8080,
		PrimaryModel:              llm.DefaultPrimaryModel,
		FallbackModels:            llm.DefaultFallbackModels,
		ScoreThreshold:            10,
		MaxUploadMB:               500,
		StagingTransferTimeoutSec: 600,
		ReadinessTimeoutSec:       45,
		PollIntervalMillis:        1200,
		EvaluationTimeoutSec:      480,
	}
}

// Load reads a JSON config file over the defaults. Fields present in the file
// override defaults, including explicit zero values; absent fields keep their
// defaults. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return cfg, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 1 and 65535")
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 100 {
		return fmt.Errorf("config error: 'score_threshold' must be between 0 and 100")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("config error: 'max_upload_mb' must be positive")
	}
	if c.StagingTransferTimeoutSec <= 0 || c.ReadinessTimeoutSec <= 0 || c.EvaluationTimeoutSec <= 0 {
		return fmt.Errorf("config error: stage timeouts must be positive")
	}
	if c.PollIntervalMillis <= 0 {
		return fmt.Errorf("config error: 'poll_interval_millis' must be positive")
	}
	if len(c.Candidates()) == 0 {
		return fmt.Errorf("config error: at least one model candidate is required")
	}
	return nil
}

// Candidates returns the ordered, deduplicated model candidate list.
func (c *Config) Candidates() []string {
	return llm.Candidates(c.PrimaryModel, c.FallbackModels...)
}

// MaxUploadBytes returns the ingest size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// StagingTransferTimeout is the deadline for the staging upload.
func (c *Config) StagingTransferTimeout() time.Duration {
	return time.Duration(c.StagingTransferTimeoutSec) * time.Second
}

// ReadinessTimeout is the deadline for a staged file to become active.
func (c *Config) ReadinessTimeout() time.Duration {
	return time.Duration(c.ReadinessTimeoutSec) * time.Second
}

// PollInterval is the fixed readiness polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

// EvaluationTimeout is the deadline for one full evaluation invocation.
func (c *Config) EvaluationTimeout() time.Duration {
	return time.Duration(c.EvaluationTimeoutSec) * time.Second
}
