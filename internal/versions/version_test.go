package versions

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	vcs := []debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-03-04T05:06:07+02:00"},
	}

	tests := []struct {
		name      string
		version   string
		commit    string
		buildDate string
		settings  []debug.BuildSetting
		want      VersionInfo
	}{
		{
			name:      "release build ignores vcs stamp",
			version:   "1.4.0",
			commit:    "abcdef1234567890",
			buildDate: "2025-01-02T03:04:05Z",
			settings:  vcs,
			want:      VersionInfo{Version: "1.4.0", Commit: "abcdef1234567890", BuildDate: "2025-01-02 03:04:05 UTC"},
		},
		{
			name:      "dev build uses vcs stamp",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			settings:  vcs,
			want:      VersionInfo{Version: "dev-01234567", Commit: "0123456789abcdef", BuildDate: "2026-03-04 03:06:07 UTC"},
		},
		{
			name:      "dev build with linker commit",
			version:   "dev",
			commit:    "fedcba9876543210",
			buildDate: unknownStr,
			settings:  vcs,
			want:      VersionInfo{Version: "dev-fedcba98", Commit: "fedcba9876543210", BuildDate: "2026-03-04 03:06:07 UTC"},
		},
		{
			name:      "dev build without vcs",
			version:   "dev",
			commit:    unknownStr,
			buildDate: unknownStr,
			want:      VersionInfo{Version: "dev", Commit: unknownStr, BuildDate: unknownStr},
		},
		{
			name:      "unparseable build date is kept",
			version:   "1.4.0",
			commit:    "abc",
			buildDate: "yesterday",
			want:      VersionInfo{Version: "1.4.0", Commit: "abc", BuildDate: "yesterday"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := resolve(tt.version, tt.commit, tt.buildDate, tt.settings)
			assert.Equal(t, tt.want.Version, got.Version)
			assert.Equal(t, tt.want.Commit, got.Commit)
			assert.Equal(t, tt.want.BuildDate, got.BuildDate)
			assert.NotEmpty(t, got.GoVersion)
			assert.Contains(t, got.Platform, "/")
		})
	}
}

func TestVersionInfo_String(t *testing.T) {
	t.Parallel()

	info := VersionInfo{Version: "1.4.0", Commit: "abc", BuildDate: "today", GoVersion: "go1.25.2", Platform: "linux/amd64"}
	assert.Equal(t, "plugin-updater 1.4.0 (commit abc, built today, go1.25.2, linux/amd64)", info.String())
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	ua := UserAgent()
	assert.True(t, strings.HasPrefix(ua, "plugin-updater/"))
	assert.Contains(t, ua, GetVersionInfo().Platform)
}
