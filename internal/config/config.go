// Package config provides configuration loading and management for the plugin updater.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/plugin-updater/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of every environment variable read by the updater
	EnvPrefix = "PLUGIN_UPDATER"

	// DefaultConnectTimeout bounds the TCP connect to the catalog
	DefaultConnectTimeout = 5 * time.Second

	// DefaultDownloadTimeout bounds the whole Download phase
	DefaultDownloadTimeout = 10 * time.Minute

	// DefaultUpdateFolder is where staged artifacts are written when not configured
	DefaultUpdateFolder = "plugins/update"

	// MinScheduleInterval is the shortest allowed periodic check interval
	MinScheduleInterval = time.Minute

	appName = "plugin-updater"
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

		// Resolve symlinks; this also cleans the path
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Updater holds the catalog connection and the global switches
	Updater UpdaterConfig `yaml:"updater"`

	// StateDir is where the last snapshot of every component is persisted.
	// Defaults to $XDG_STATE_HOME/plugin-updater.
	StateDir string `yaml:"stateDir,omitempty"`

	// UpdateFolder is where downloaded artifacts are staged
	UpdateFolder string `yaml:"updateFolder,omitempty"`

	// Components lists the plugins kept up to date
	Components []ComponentConfig `yaml:"components"`

	// Telemetry configures tracing and metrics
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// UpdaterConfig defines the catalog connection
type UpdaterConfig struct {
	// Endpoint is the catalog files endpoint; empty uses the public ServerMods API
	Endpoint string `yaml:"endpoint,omitempty"`

	// APIKey is sent with every catalog request
	APIKey string `yaml:"apiKey,omitempty"`

	// APIKeyFile is the path to a file containing the API key.
	// It takes precedence over APIKey.
	APIKeyFile string `yaml:"apiKeyFile,omitempty"`

	// Disabled turns every update run into a DISABLED no-op
	Disabled bool `yaml:"disabled,omitempty"`

	// ConnectTimeout bounds the TCP connect (e.g. "5s")
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`

	// DownloadTimeout bounds the Download phase (e.g. "10m")
	DownloadTimeout string `yaml:"downloadTimeout,omitempty"`
}

// ComponentConfig defines one plugin to keep up to date
type ComponentConfig struct {
	// Name identifies the component in the registry, the API and the state dir
	Name string `yaml:"name"`

	// ResourceID is the catalog project id
	ResourceID string `yaml:"resourceId"`

	// CurrentVersion is the running version of the plugin
	CurrentVersion string `yaml:"currentVersion"`

	// Schedule enables periodic background runs
	Schedule *ScheduleConfig `yaml:"schedule,omitempty"`
}

// ScheduleConfig defines periodic background runs for a component
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
	Check    bool   `yaml:"check,omitempty"`
	Download bool   `yaml:"download,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetStateDir returns the state directory, using the XDG state home if not specified
func (c *Config) GetStateDir() string {
	if c.StateDir == "" {
		return filepath.Join(xdg.StateHome, appName)
	}
	return c.StateDir
}

// GetUpdateFolder returns the update folder, using DefaultUpdateFolder if not specified
func (c *Config) GetUpdateFolder() string {
	if c.UpdateFolder == "" {
		return DefaultUpdateFolder
	}
	return c.UpdateFolder
}

// Component returns the component with the given name
func (c *Config) Component(name string) (*ComponentConfig, bool) {
	for i := range c.Components {
		if c.Components[i].Name == name {
			return &c.Components[i], true
		}
	}
	return nil, false
}

// GetConnectTimeout returns the connect timeout, using DefaultConnectTimeout if not specified
func (u *UpdaterConfig) GetConnectTimeout() time.Duration {
	return parseDurationOr(u.ConnectTimeout, DefaultConnectTimeout)
}

// GetDownloadTimeout returns the download timeout, using DefaultDownloadTimeout if not specified
func (u *UpdaterConfig) GetDownloadTimeout() time.Duration {
	return parseDurationOr(u.DownloadTimeout, DefaultDownloadTimeout)
}

// GetAPIKey returns the API key using the following priority:
// 1. Read from APIKeyFile if specified
// 2. The inline APIKey
//
// The key from file will have leading/trailing whitespace trimmed.
func (u *UpdaterConfig) GetAPIKey() (string, error) {
	if u.APIKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(u.APIKeyFile))
		if err != nil {
			return "", fmt.Errorf("failed to read api key from file %s: %w", u.APIKeyFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return u.APIKey, nil
}

// GetInterval returns the parsed schedule interval.
// Validation guarantees it parses for loaded configs.
func (s *ScheduleConfig) GetInterval() time.Duration {
	return parseDurationOr(s.Interval, 0)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Updater.validate(); err != nil {
		return err
	}

	if len(c.Components) == 0 {
		return fmt.Errorf("at least one component must be configured")
	}

	names := make(map[string]bool)
	for i := range c.Components {
		comp := &c.Components[i]
		if comp.Name == "" {
			return fmt.Errorf("component[%d]: name is required", i)
		}
		if names[comp.Name] {
			return fmt.Errorf("component[%d]: duplicate component name '%s'", i, comp.Name)
		}
		names[comp.Name] = true

		if err := comp.validate(i); err != nil {
			return err
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (u *UpdaterConfig) validate() error {
	for field, value := range map[string]string{
		"updater.connectTimeout":  u.ConnectTimeout,
		"updater.downloadTimeout": u.DownloadTimeout,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '5s', '10m'): %w", field, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", field, value)
		}
	}
	return nil
}

func (comp *ComponentConfig) validate(index int) error {
	prefix := fmt.Sprintf("component[%d] (%s)", index, comp.Name)

	if strings.ContainsAny(comp.Name, `/\`) || comp.Name == "." || comp.Name == ".." {
		return fmt.Errorf("%s: name must not contain path separators", prefix)
	}

	if !ValidResourceID(comp.ResourceID) {
		return fmt.Errorf("%s: resourceId must be a positive integer, got %q", prefix, comp.ResourceID)
	}

	if comp.CurrentVersion == "" {
		return fmt.Errorf("%s: currentVersion is required", prefix)
	}

	if comp.Schedule != nil {
		if comp.Schedule.Interval == "" {
			return fmt.Errorf("%s: schedule.interval is required", prefix)
		}
		interval, err := time.ParseDuration(comp.Schedule.Interval)
		if err != nil {
			return fmt.Errorf("%s: schedule.interval must be a valid duration (e.g., '30m', '1h'): %w", prefix, err)
		}
		if interval < MinScheduleInterval {
			return fmt.Errorf("%s: schedule.interval must be at least %s", prefix, MinScheduleInterval)
		}
	}

	return nil
}

// ValidResourceID reports whether id is a positive base-10 integer
func ValidResourceID(id string) bool {
	n, err := strconv.ParseUint(id, 10, 64)
	return err == nil && n > 0
}
