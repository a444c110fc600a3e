package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	APIKeyEnv = "YOUTUBE_API_KEY"
	// LegacyAPIKeyEnv is the variable name earlier versions of the tool read.
	LegacyAPIKeyEnv = "DEVELOPER_KEY"
)

// LoadDotEnv loads files (default ".env") into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(APIKeyEnv)); v != "" {
		cfg.APIKey = v
	} else if v := strings.TrimSpace(getenv(LegacyAPIKeyEnv)); v != "" {
		cfg.APIKey = v
	}

	envString(getenv, "PLAYLIST_ID", &cfg.PlaylistID)
	envString(getenv, "OUTPUT_FORMAT", &cfg.Format)
	envString(getenv, "YOUTUBE_BASE_URL", &cfg.BaseURL)
	envString(getenv, "DEFAULT_CA_PATH", &cfg.DefaultCAPath)

	if err := envInt(getenv, "MAX_RESULTS", &cfg.MaxResults); err != nil {
		return err
	}
	if err := envInt(getenv, "DISPLAY_LIMIT", &cfg.DisplayLimit); err != nil {
		return err
	}
	if err := envInt(getenv, "WORKERS", &cfg.Pipeline.Workers); err != nil {
		return err
	}
	if err := envInt(getenv, "MAX_RETRIES", &cfg.Pipeline.MaxRetries); err != nil {
		return err
	}
	if err := envDuration(getenv, "REQUEST_TIMEOUT", &cfg.Pipeline.RequestTimeout); err != nil {
		return err
	}
	if err := envFloat(getenv, "RATE_LIMIT_RPS", &cfg.Pipeline.RateLimitRPS); err != nil {
		return err
	}
	return nil
}

func envString(getenv func(string) string, varName string, dst *string) {
	if v := strings.TrimSpace(getenv(varName)); v != "" {
		*dst = v
	}
}

func envInt(getenv func(string) string, varName string, dst *int) error {
	v := strings.TrimSpace(getenv(varName))
	if v == "" {
		return nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	*dst = out
	return nil
}

func envFloat(getenv func(string) string, varName string, dst *float64) error {
	v := strings.TrimSpace(getenv(varName))
	if v == "" {
		return nil
	}
	out, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	*dst = out
	return nil
}

func envDuration(getenv func(string) string, varName string, dst *time.Duration) error {
	v := strings.TrimSpace(getenv(varName))
	if v == "" {
		return nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	*dst = out
	return nil
}
