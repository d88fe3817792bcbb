// Package config loads and validates the inflight agent configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
)

// Config represents the agent configuration
type Config struct {
	// Registry identity; generated when empty.
	Registry string `yaml:"registry,omitempty"`
	// Namespace qualifies non-absolute counter names and prefixes
	// Prometheus metric names.
	Namespace string         `yaml:"namespace"`
	Counters  []CounterSpec  `yaml:"counters,omitempty"`
	HTTP      HTTPConfig     `yaml:"http"`
	Snapshot  SnapshotConfig `yaml:"snapshot"`
	NATS      NATSConfig     `yaml:"nats"`
}

// CounterSpec declares a counter registered at startup, before any
// counted invocation runs.
type CounterSpec struct {
	Name     string `yaml:"name"`
	Absolute bool   `yaml:"absolute,omitempty"`
}

// HTTPConfig represents the HTTP endpoint configuration
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// SnapshotConfig controls periodic persistence of counter values
type SnapshotConfig struct {
	Enabled bool `yaml:"enabled"`
	// Interval is a Go duration string, e.g. "30s" or "1m".
	Interval string `yaml:"interval"`
	// Store is the SQLite path; ":memory:" keeps snapshots in-process.
	Store string `yaml:"store"`
}

// IntervalDuration returns the parsed snapshot interval. Validate
// guarantees it parses; a zero value is returned otherwise.
func (s SnapshotConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return 0
	}
	return d
}

// NATSConfig controls optional snapshot publishing
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env files if present; existing environment wins.
	if err := godotenv.Load(".env", ".env.local"); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, ierrors.ConfigNotFound(configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CategoryConfig, ierrors.SeverityFatal, "failed to read config file").
			WithContext("path", configPath)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, ierrors.Wrap(err, ierrors.CategoryConfig, ierrors.SeverityFatal, "failed to unmarshal config").
			WithContext("path", configPath)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "inflight"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":9090"
	}
	if c.Snapshot.Interval == "" {
		c.Snapshot.Interval = "1m"
	}
	if c.Snapshot.Store == "" {
		c.Snapshot.Store = "inflight.db"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = "inflight.snapshots"
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Snapshot.Enabled {
		d, err := time.ParseDuration(c.Snapshot.Interval)
		if err != nil {
			return ierrors.ValidationFailed("snapshot.interval", "must be a valid duration").
				WithContext("value", c.Snapshot.Interval)
		}
		if d < time.Second {
			return ierrors.ValidationFailed("snapshot.interval", "must be at least one second")
		}
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return ierrors.ConfigRequired("nats.url")
	}
	seen := make(map[string]struct{}, len(c.Counters))
	for _, spec := range c.Counters {
		if spec.Name == "" {
			return ierrors.ValidationFailed("counters.name", "must not be empty")
		}
		if _, dup := seen[spec.Name]; dup {
			return ierrors.ValidationFailed("counters.name", "duplicate counter name").
				WithContext("counter", spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}
	return nil
}

const starterConfig = `# inflight agent configuration
namespace: inflight

# Counters registered at startup. Non-absolute names are qualified with
# the namespace.
counters:
  - name: countedMethod
    absolute: true

http:
  listen: ":9090"

snapshot:
  enabled: true
  interval: 1m
  store: inflight.db

nats:
  enabled: false
  # url: nats://localhost:4222
  subject: inflight.snapshots
`

// Init writes a commented starter configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ierrors.New(ierrors.CategoryConfig, ierrors.SeverityFatal, "configuration file already exists").
			WithContext("path", configPath)
	}
	if err := os.WriteFile(configPath, []byte(starterConfig), 0o644); err != nil {
		return ierrors.Wrap(err, ierrors.CategoryConfig, ierrors.SeverityFatal, "failed to write config file").
			WithContext("path", configPath)
	}
	return nil
}
