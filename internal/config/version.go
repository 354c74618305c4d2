package config

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is the canonical version of AutoFinance
// This should be the single source of truth for all version references
const Version = "1.0.0"

// GetVersion returns the current version
func GetVersion() string {
	return Version
}

// ValidateVersion checks that a version string is valid semver
func ValidateVersion(version string) error {
	if _, err := semver.NewVersion(version); err != nil {
		return fmt.Errorf("invalid app version %q: %w", version, err)
	}
	return nil
}

// VersionAtLeast reports whether version satisfies the given minimum.
// Used by peers to reject incompatible builds during initialize.
func VersionAtLeast(version, minimum string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("invalid version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(">= " + minimum)
	if err != nil {
		return false, fmt.Errorf("invalid minimum version %q: %w", minimum, err)
	}
	return constraint.Check(v), nil
}
