package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the file keep
// their current values; unknown keys are an error.
//
// Example (YAML):
//
//	playlist_id: PL4bD_p5B-nBnHmJCqkdhve5TAoop6I57P
//	max_results: 100
//	display_limit: 10
//	format: markdown
//	pipeline:
//	  workers: 16
//	  request_timeout: 10s
func LoadFile(path string, cfg *Config) error {
	path = strings.TrimSpace(path)
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config YAML %s: %w", path, err)
	}
	return nil
}
