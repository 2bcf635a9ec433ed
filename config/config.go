// Package config provides configuration loading and management for kbgov.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete kbgov configuration.
type Config struct {
	Corpus CorpusConfig `yaml:"corpus"`
	NATS   NATSConfig   `yaml:"nats"`
	Watch  WatchConfig  `yaml:"watch"`
	Ingest IngestConfig `yaml:"ingest"`
}

// CorpusConfig configures the knowledge base location.
type CorpusConfig struct {
	// Root is the corpus root directory (current directory if empty).
	Root string `yaml:"root"`
	// Patterns are the glob patterns that select documents.
	Patterns []string `yaml:"patterns"`
}

// NATSConfig configures event publishing.
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled).
	URL string `yaml:"url"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	// Debounce is how long to wait for more changes before evaluating.
	Debounce time.Duration `yaml:"debounce"`
	// MetricsAddr is the listen address for the metrics endpoint
	// (empty = metrics endpoint disabled).
	MetricsAddr string `yaml:"metrics_addr"`
}

// IngestConfig configures web ingestion.
type IngestConfig struct {
	// Timeout is the maximum time to wait for a page fetch.
	Timeout time.Duration `yaml:"timeout"`
	// MaxBodySize is the maximum page size in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Root:     "",
			Patterns: []string{"**/*.md"},
		},
		NATS: NATSConfig{
			URL: "",
		},
		Watch: WatchConfig{
			Debounce:    500 * time.Millisecond,
			MetricsAddr: "",
		},
		Ingest: IngestConfig{
			Timeout:     30 * time.Second,
			MaxBodySize: 10 << 20,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Corpus.Patterns) == 0 {
		return fmt.Errorf("corpus.patterns must not be empty")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if c.Ingest.MaxBodySize <= 0 {
		return fmt.Errorf("ingest.max_body_size must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one (other takes precedence
// for non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Corpus.Root != "" {
		c.Corpus.Root = other.Corpus.Root
	}
	if len(other.Corpus.Patterns) > 0 {
		c.Corpus.Patterns = other.Corpus.Patterns
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}

	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if other.Watch.MetricsAddr != "" {
		c.Watch.MetricsAddr = other.Watch.MetricsAddr
	}

	if other.Ingest.Timeout != 0 {
		c.Ingest.Timeout = other.Ingest.Timeout
	}
	if other.Ingest.MaxBodySize != 0 {
		c.Ingest.MaxBodySize = other.Ingest.MaxBodySize
	}
}
