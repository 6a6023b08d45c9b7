package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// It uses semantic versioning for comparison when both strings are valid semver,
// and falls back to lexicographic string comparison otherwise.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)

	if errNew != nil || errOld != nil {
		// Fallback to string comparison if semver parsing fails
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}

// SameVersion reports whether two version strings name the same release.
// "1.2" and "1.2.0" are the same when both parse as semver; anything else is
// compared case-insensitively.
func SameVersion(a, b string) bool {
	aSemver, errA := semver.NewVersion(a)
	bSemver, errB := semver.NewVersion(b)

	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}

	return aSemver.Equal(bSemver)
}
