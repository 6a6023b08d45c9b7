package versions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReleaseName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		title       string
		expected    string
		expectError bool
	}{
		{name: "plain title", title: "MyPlugin v1.2.3", expected: "1.2.3"},
		{name: "title with suffix", title: "MyPlugin v1.2.3 [beta]", expected: "1.2.3"},
		{name: "title with spaces", title: "My Great Plugin v2.0", expected: "2.0"},
		{name: "pre-release version", title: "MyPlugin v3.0.0-RC1", expected: "3.0.0-RC1"},
		{name: "no separator", title: "MyPlugin-Beta", expectError: true},
		{name: "separator appears twice", title: "My vPlugin v1.0", expectError: true},
		{name: "nothing after separator", title: "MyPlugin v", expectError: true},
		{name: "only whitespace after separator", title: "MyPlugin v   ", expectError: true},
		{name: "empty title", title: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			version, err := ParseReleaseName(tt.title)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNoVersion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, version)
		})
	}
}

func TestParseReleaseName_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, version := range []string{"0.0.1", "1.2.3", "10.20.30", "4.0.0-beta.2", "2024.1"} {
		parsed, err := ParseReleaseName("SomePlugin v" + version)
		require.NoError(t, err)
		assert.Equal(t, version, parsed)
	}
}

func TestHasSpecialTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version  string
		expected bool
	}{
		{"1.0.0", false},
		{"1.0.0-DEV", true},
		{"1.0.0-dev", true},
		{"2.1-PRE3", true},
		{"3.0-SNAPSHOT", true},
		{"1.0.0-beta", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, HasSpecialTag(tt.version))
		})
	}
}
