package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/fixity/internal/models"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	defaultConcurrency = 5
	defaultQueueSize   = 1024
	defaultTimeout     = 60
	defaultLogMessage  = "Adding missing checksum to datastream"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Fedora   FedoraConfig   `toml:"fedora"`
	Audit    AuditConfig    `toml:"audit"`
	Database DatabaseConfig `toml:"database"`
}

// FedoraConfig contains the repository connection settings.
type FedoraConfig struct {
	BaseURL           string  `toml:"base_url"`
	Username          string  `toml:"username"`
	Password          string  `toml:"password"`
	Token             string  `toml:"token"`
	Timeout           int     `toml:"timeout"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// AuditConfig contains pipeline settings shared by validate and repair runs.
type AuditConfig struct {
	Concurrency  int    `toml:"concurrency"`
	QueueSize    int    `toml:"queue_size"`
	ChecksumType string `toml:"checksum_type"`
	ContentModel string `toml:"content_model"`
	LogMessage   string `toml:"log_message"`
}

// DatabaseConfig contains run store connection settings. An empty path disables the store.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	config.applyDefaults()
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyDefaults()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Audit.Concurrency == 0 {
		c.Audit.Concurrency = defaultConcurrency
	}
	if c.Audit.QueueSize == 0 {
		c.Audit.QueueSize = defaultQueueSize
	}
	if c.Audit.ChecksumType == "" {
		c.Audit.ChecksumType = models.ChecksumSHA1
	}
	if c.Audit.LogMessage == "" {
		c.Audit.LogMessage = defaultLogMessage
	}
	if c.Fedora.Timeout == 0 {
		c.Fedora.Timeout = defaultTimeout
	}
}

// Validate checks the settings a run depends on before any remote work starts.
func (c *Config) Validate() error {
	raw := strings.TrimSpace(c.Fedora.BaseURL)
	if raw == "" {
		return fmt.Errorf("%w: fedora.base_url is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: fedora.base_url: %v", ErrInvalidConfig, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: fedora.base_url must be an absolute http(s) URL, got %q", ErrInvalidConfig, raw)
	}
	if c.Fedora.Timeout < 0 {
		return fmt.Errorf("%w: fedora.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Fedora.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: fedora.requests_per_second must not be negative", ErrInvalidConfig)
	}
	if c.Audit.Concurrency < 1 {
		return fmt.Errorf("%w: audit.concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.Audit.QueueSize < 1 {
		return fmt.Errorf("%w: audit.queue_size must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// RequestTimeout returns the per-request timeout for repository calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Fedora.Timeout) * time.Second
}
