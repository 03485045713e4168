// Package config provides configuration loading and management for semcnl.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
)

// Config represents the complete semcnl configuration
type Config struct {
	// User owns the registry every parse pass writes to.
	User    string        `yaml:"user"`
	Store   StoreConfig   `yaml:"store"`
	NATS    NATSConfig    `yaml:"nats"`
	Parser  ParserConfig  `yaml:"parser"`
	Publish PublishConfig `yaml:"publish"`
	Export  ExportConfig  `yaml:"export"`
}

// StoreConfig selects where node registries persist
type StoreConfig struct {
	// Backend is one of memory, sqlite or nats
	Backend string `yaml:"backend"`
	// Path is the SQLite database file
	Path string `yaml:"path"`
	// Bucket is the JetStream KV bucket
	Bucket string `yaml:"bucket"`
}

// NATSConfig configures the NATS connection
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use embedded NATS
	Embedded bool `yaml:"embedded"`
}

// ParserConfig configures parse passes
type ParserConfig struct {
	Strict     bool   `yaml:"strict"`
	SchemaPath string `yaml:"schema"`
}

// PublishConfig configures triple publishing of composed graphs
type PublishConfig struct {
	Enabled bool   `yaml:"enabled"`
	Subject string `yaml:"subject"`
}

// ExportConfig configures RDF export
type ExportConfig struct {
	Format  string `yaml:"format"`
	Profile string `yaml:"profile"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		User: "local",
		Store: StoreConfig{
			Backend: BackendMemory,
			Path:    "semcnl.db",
			Bucket:  "SEMCNL_REGISTRY",
		},
		NATS: NATSConfig{
			Embedded: true,
		},
		Publish: PublishConfig{
			Subject: "graph.ingest.entity",
		},
		Export: ExportConfig{
			Format:  "turtle",
			Profile: "minimal",
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.User == "" {
		return fmt.Errorf("user is required")
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite backend")
		}
	case BackendNATS:
		if c.Store.Bucket == "" {
			return fmt.Errorf("store.bucket is required for the nats backend")
		}
		if c.NATS.URL == "" && !c.NATS.Embedded {
			return fmt.Errorf("nats.url is required unless nats.embedded is set")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, sqlite, nats; got %q", c.Store.Backend)
	}
	if c.Publish.Enabled && c.Publish.Subject == "" {
		return fmt.Errorf("publish.subject is required when publishing is enabled")
	}
	return nil
}

// NeedsNATS reports whether the configuration needs a NATS connection.
func (c *Config) NeedsNATS() bool {
	return c.Store.Backend == BackendNATS || c.Publish.Enabled
}

// LoadFromFile loads configuration from a YAML file
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

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values). Booleans only ever switch on.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.User != "" {
		c.User = other.User
	}

	if other.Store.Backend != "" {
		c.Store.Backend = other.Store.Backend
	}
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}
	if other.Store.Bucket != "" {
		c.Store.Bucket = other.Store.Bucket
	}

	// An explicit server replaces the embedded one.
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	if other.Parser.Strict {
		c.Parser.Strict = true
	}
	if other.Parser.SchemaPath != "" {
		c.Parser.SchemaPath = other.Parser.SchemaPath
	}

	if other.Publish.Enabled {
		c.Publish.Enabled = true
	}
	if other.Publish.Subject != "" {
		c.Publish.Subject = other.Publish.Subject
	}

	if other.Export.Format != "" {
		c.Export.Format = other.Export.Format
	}
	if other.Export.Profile != "" {
		c.Export.Profile = other.Export.Profile
	}
}
