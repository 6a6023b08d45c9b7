package versions

import (
	"errors"
	"fmt"
	"strings"
)

// releaseSeparator splits a catalog release title from its version
const releaseSeparator = " v"

// ErrNoVersion is returned when a release title does not carry a version
var ErrNoVersion = errors.New("release name has no version")

// specialTags mark pre-release builds of the running component; such builds are never updated
var specialTags = []string{"-DEV", "-PRE", "-SNAPSHOT"}

// ParseReleaseName extracts the version from a catalog release title of the form
// "<title> v<version> [suffix]". The title must split into exactly two parts
// around " v"; the version is the first word of the second part.
func ParseReleaseName(name string) (string, error) {
	parts := strings.Split(name, releaseSeparator)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: %q", ErrNoVersion, name)
	}

	fields := strings.Fields(parts[1])
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNoVersion, name)
	}

	return fields[0], nil
}

// HasSpecialTag reports whether the version is a development or pre-release build
func HasSpecialTag(version string) bool {
	upper := strings.ToUpper(version)
	for _, tag := range specialTags {
		if strings.Contains(upper, tag) {
			return true
		}
	}
	return false
}
