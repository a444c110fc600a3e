package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shpitdev/playlistrank/pkg/errs"
	"github.com/shpitdev/playlistrank/pkg/pipeline/schema"
	"github.com/shpitdev/playlistrank/pkg/youtube"
)

const (
	DefaultPlaylistID = "PL4bD_p5B-nBnHmJCqkdhve5TAoop6I57P"
	DefaultMaxResults = 50

	// ConfigPathEnv names an optional YAML config file.
	ConfigPathEnv = "PLAYLISTRANK_CONFIG"
)

// Pipeline holds the enrichment worker pool settings.
type Pipeline struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`
}

// Config is the process-wide configuration of one run. It is built once at startup
// and passed down explicitly.
type Config struct {
	// APIKey is only read from the environment, never from the config file.
	APIKey string `yaml:"-"`

	PlaylistID    string   `yaml:"playlist_id"`
	MaxResults    int      `yaml:"max_results"`
	DisplayLimit  int      `yaml:"display_limit"`
	Format        string   `yaml:"format"`
	BaseURL       string   `yaml:"base_url"`
	DefaultCAPath string   `yaml:"default_ca_path"`
	Pipeline      Pipeline `yaml:"pipeline"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PlaylistID:   DefaultPlaylistID,
		MaxResults:   DefaultMaxResults,
		DisplayLimit: 0,
		Format:       string(schema.FormatMarkdown),
		BaseURL:      youtube.DefaultBaseURL,
		Pipeline: Pipeline{
			Workers:        10,
			MaxRetries:     0,
			RequestTimeout: 30 * time.Second,
			RateLimitRPS:   0,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and the environment,
// in that order of precedence. A .env file in the working directory is loaded
// into the environment first when present.
//
// path may be empty; PLAYLISTRANK_CONFIG is consulted then. Load does not
// validate; call Validate once flags have been applied.
func Load(path string) (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if strings.TrimSpace(path) != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports a missing API key as errs.ErrConfigMissing and bad values as
// errs.ErrValidation.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: %s (or %s) is required", errs.ErrConfigMissing, APIKeyEnv, LegacyAPIKeyEnv)
	}
	if strings.TrimSpace(c.PlaylistID) == "" {
		return errs.Validation("playlist id is required")
	}
	if c.MaxResults < 0 {
		return errs.Validation("max results must be >= 0 (got %d)", c.MaxResults)
	}
	if c.DisplayLimit < 0 {
		return errs.Validation("display limit must be >= 0 (got %d)", c.DisplayLimit)
	}
	if _, ok := schema.NormalizeFormat(c.Format); !ok {
		return errs.Validation("unknown output format %q", c.Format)
	}
	if c.Pipeline.Workers < 0 {
		return errs.Validation("workers must be >= 0 (got %d)", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxRetries < 0 {
		return errs.Validation("max retries must be >= 0 (got %d)", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.RateLimitRPS < 0 {
		return errs.Validation("rate limit must be >= 0 (got %g)", c.Pipeline.RateLimitRPS)
	}
	return nil
}

// OutputFormat returns the normalized output format. Call Validate first.
func (c Config) OutputFormat() schema.Format {
	f, _ := schema.NormalizeFormat(c.Format)
	return f
}
