// Package config provides configuration loading for the policy server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend types for the coordination service holding the policy document.
const (
	// BackendTypeConfigMap stores the document in a Kubernetes ConfigMap.
	BackendTypeConfigMap = "configmap"

	// BackendTypeMemory keeps the document in process memory. Single-node
	// and test deployments only.
	BackendTypeMemory = "memory"
)

// Defaults applied when the corresponding field is unset.
const (
	DefaultAddress        = ":8080"
	DefaultNamespace      = "default"
	DefaultMaxAttempts    = 20
	DefaultInitialBackoff = 10 * time.Millisecond
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Store     StoreConfig     `yaml:"store"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// ServerConfig defines the HTTP server settings
type ServerConfig struct {
	// Address is the listen address, host:port
	Address string `yaml:"address"`
}

// BackendConfig selects and configures the coordination-service backend
type BackendConfig struct {
	// Type is one of "configmap" or "memory"
	Type string `yaml:"type"`

	// ConfigMap configures the configmap backend; required for that type
	ConfigMap *ConfigMapBackendConfig `yaml:"configmap,omitempty"`
}

// ConfigMapBackendConfig defines the Kubernetes ConfigMap holding the document
type ConfigMapBackendConfig struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace,omitempty"`
	Key       string `yaml:"key,omitempty"`
}

// StoreConfig tunes the optimistic-concurrency update loop
type StoreConfig struct {
	// MaxAttempts bounds CAS attempts per update before giving up
	MaxAttempts uint `yaml:"maxAttempts,omitempty"`

	// InitialBackoff is the first retry delay after a conflict, as a
	// Go duration string (e.g. "10ms")
	InitialBackoff string `yaml:"initialBackoff,omitempty"`
}

// InitialBackoffDuration returns the parsed retry delay. Validate has
// already checked that the value parses.
func (s *StoreConfig) InitialBackoffDuration() time.Duration {
	d, err := time.ParseDuration(s.InitialBackoff)
	if err != nil {
		return DefaultInitialBackoff
	}
	return d
}

// TelemetryConfig configures metric export
type TelemetryConfig struct {
	// Endpoint is the OTLP HTTP endpoint; empty disables export
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// LoadConfig loads, defaults and validates configuration
func LoadConfig(opts ...Option) (*Config, error) {
	loader := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loader); err != nil {
			return nil, err
		}
	}
	if loader.path == "" {
		return nil, fmt.Errorf("no configuration source provided")
	}

	data, err := os.ReadFile(loader.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Backend.Type == "" {
		c.Backend.Type = BackendTypeConfigMap
	}
	if c.Backend.ConfigMap != nil && c.Backend.ConfigMap.Namespace == "" {
		c.Backend.ConfigMap.Namespace = DefaultNamespace
	}
	if c.Store.MaxAttempts == 0 {
		c.Store.MaxAttempts = DefaultMaxAttempts
	}
	if c.Store.InitialBackoff == "" {
		c.Store.InitialBackoff = DefaultInitialBackoff.String()
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendTypeConfigMap:
		if c.Backend.ConfigMap == nil {
			return fmt.Errorf("configmap configuration is required for backend type %s", BackendTypeConfigMap)
		}
		if c.Backend.ConfigMap.Name == "" {
			return fmt.Errorf("configmap name cannot be empty")
		}
	case BackendTypeMemory:
		// Nothing to configure.
	default:
		return fmt.Errorf("unknown backend type: %s", c.Backend.Type)
	}

	if _, err := time.ParseDuration(c.Store.InitialBackoff); err != nil {
		return fmt.Errorf("invalid store.initialBackoff: %w", err)
	}
	return nil
}
