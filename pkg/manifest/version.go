// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrInvalidVersion is the sentinel wrapped by InvalidVersionError.
var ErrInvalidVersion = errors.New("invalid version")

// InvalidVersionError reports a version that is not full semver.
type InvalidVersionError struct {
	Value string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q: want MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]", e.Value)
}

// Unwrap returns ErrInvalidVersion for errors.Is() compatibility.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// NormalizeVersion validates v as a full semantic version and returns it
// without a leading "v", the form package manifests use. Shorthands such as
// "1.2" that semver would otherwise accept are rejected.
func NormalizeVersion(v string) (string, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", &InvalidVersionError{Value: v}
	}
	prefixed := trimmed
	if !strings.HasPrefix(prefixed, "v") {
		prefixed = "v" + prefixed
	}
	if !semver.IsValid(prefixed) {
		return "", &InvalidVersionError{Value: v}
	}
	// Canonical drops build metadata and fills missing components.
	withoutBuild, _, _ := strings.Cut(prefixed, "+")
	if semver.Canonical(prefixed) != withoutBuild {
		return "", &InvalidVersionError{Value: v}
	}
	return strings.TrimPrefix(prefixed, "v"), nil
}

// TagFor returns the release tag for version, e.g. "v1.2.3".
func TagFor(prefix, version string) string {
	return prefix + strings.TrimPrefix(version, "v")
}
