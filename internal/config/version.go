package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is the canonical FlipSync version, the single source of truth
// for all version references.
const Version = "1.0.0"

// GetVersion returns the current version
func GetVersion() string {
	return Version
}

// ValidateVersion checks that a version string is a full semantic version.
// A leading "v" is accepted; partial versions like "1.0" are not.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if _, err := semver.StrictNewVersion(strings.TrimPrefix(version, "v")); err != nil {
		return fmt.Errorf("version %q is not a valid semantic version: %w", version, err)
	}
	return nil
}

// CompareVersions compares two version strings.
// Returns: -1 if a < b, 0 if a == b, 1 if a > b
func CompareVersions(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", a)
	}
	vb, err := semver.NewVersion(b)
	if err != nil {
		return 0, fmt.Errorf("invalid version: %s", b)
	}
	return va.Compare(vb), nil
}
