// Package versions provides version parsing and comparison for plugin releases,
// plus the build information of the updater itself.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknownStr = "unknown"

// Build information, set with -ldflags "-X .../internal/versions.Version=..."
var (
	Version   = "dev"
	Commit    = unknownStr
	BuildDate = unknownStr
)

// VersionInfo describes the running updater binary
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// String renders the info on one line
func (v VersionInfo) String() string {
	return fmt.Sprintf("plugin-updater %s (commit %s, built %s, %s, %s)",
		v.Version, v.Commit, v.BuildDate, v.GoVersion, v.Platform)
}

// GetVersionInfo returns the build information. Development builds fall back to
// the VCS stamp the Go toolchain embeds.
func GetVersionInfo() VersionInfo {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	return resolve(Version, Commit, BuildDate, settings)
}

// UserAgent returns the User-Agent sent to the release catalog
func UserAgent() string {
	info := GetVersionInfo()
	return fmt.Sprintf("plugin-updater/%s (%s)", info.Version, info.Platform)
}

func resolve(version, commit, buildDate string, settings []debug.BuildSetting) VersionInfo {
	if version == "dev" {
		for _, s := range settings {
			switch {
			case s.Key == "vcs.revision" && commit == unknownStr:
				commit = s.Value
			case s.Key == "vcs.time" && buildDate == unknownStr:
				buildDate = s.Value
			}
		}
		if commit != unknownStr {
			version = fmt.Sprintf("dev-%.8s", commit)
		}
	}

	if t, err := time.Parse(time.RFC3339, buildDate); err == nil {
		buildDate = t.UTC().Format(time.DateTime + " MST")
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
