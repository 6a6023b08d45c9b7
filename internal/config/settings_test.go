package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const settingsYAML = `updater:
  apiKey: from-file
  disabled: true
components:
  - {name: a, resourceId: "1", currentVersion: "1"}`

func TestStaticSettings(t *testing.T) {
	t.Parallel()

	provider := StaticSettings{APIKey: "key", Disabled: true}
	settings, err := provider.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{APIKey: "key", Disabled: true}, settings)
}

func TestFileSettingsProvider(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, settingsYAML)
	provider := NewFileSettingsProvider(path)

	settings, err := provider.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{APIKey: "from-file", Disabled: true}, settings)
}

func TestFileSettingsProviderRereadsFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, settingsYAML)
	provider := NewFileSettingsProvider(path)

	_, err := provider.Settings(context.Background())
	require.NoError(t, err)

	require.NoError(t, writeFile(path, `updater:
  apiKey: rotated
components:
  - {name: a, resourceId: "1", currentVersion: "1"}`))

	settings, err := provider.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{APIKey: "rotated"}, settings)
}

func TestFileSettingsProviderErrors(t *testing.T) {
	t.Parallel()

	provider := NewFileSettingsProvider(writeConfig(t, "components: ["))
	_, err := provider.Settings(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to reload settings")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewFileSettingsProvider(writeConfig(t, settingsYAML)).Settings(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

//nolint:paralleltest // t.Setenv is incompatible with t.Parallel
func TestFileSettingsProviderEnvOverrides(t *testing.T) {
	t.Setenv("PLUGIN_UPDATER_API_KEY", "from-env")
	t.Setenv("PLUGIN_UPDATER_DISABLED", "false")

	provider := NewFileSettingsProvider(writeConfig(t, settingsYAML))

	settings, err := provider.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Settings{APIKey: "from-env", Disabled: false}, settings)
}
