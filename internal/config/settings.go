package config

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
)

const (
	envKeyAPIKey   = "api_key"
	envKeyDisabled = "disabled"
)

// Settings are the per-run switches of the updater
type Settings struct {
	APIKey   string
	Disabled bool
}

// SettingsProvider supplies Settings. It is consulted once for every update run,
// so edits to the backing store apply to the next run without a restart.
//
//go:generate mockgen -destination=mocks/mock_settings.go -package=mocks github.com/stacklok/plugin-updater/internal/config SettingsProvider
type SettingsProvider interface {
	Settings(ctx context.Context) (Settings, error)
}

// StaticSettings is a SettingsProvider returning fixed values
type StaticSettings Settings

// Settings implements SettingsProvider
func (s StaticSettings) Settings(context.Context) (Settings, error) {
	return Settings(s), nil
}

// FileSettingsProvider re-reads the configuration file on every call.
// PLUGIN_UPDATER_API_KEY and PLUGIN_UPDATER_DISABLED override the file.
type FileSettingsProvider struct {
	path string
	env  *viper.Viper
}

// NewFileSettingsProvider creates a provider backed by the config file at path
func NewFileSettingsProvider(path string) *FileSettingsProvider {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	// BindEnv only fails when called without a key
	_ = v.BindEnv(envKeyAPIKey)
	_ = v.BindEnv(envKeyDisabled)

	return &FileSettingsProvider{
		path: path,
		env:  v,
	}
}

// Settings implements SettingsProvider
func (p *FileSettingsProvider) Settings(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}

	cfg, err := LoadConfig(WithConfigPath(p.path))
	if err != nil {
		return Settings{}, fmt.Errorf("failed to reload settings: %w", err)
	}

	apiKey, err := cfg.Updater.GetAPIKey()
	if err != nil {
		return Settings{}, err
	}

	settings := Settings{
		APIKey:   apiKey,
		Disabled: cfg.Updater.Disabled,
	}

	if p.env.IsSet(envKeyAPIKey) {
		settings.APIKey = p.env.GetString(envKeyAPIKey)
	}
	if p.env.IsSet(envKeyDisabled) {
		settings.Disabled = p.env.GetBool(envKeyDisabled)
	}

	return settings, nil
}
