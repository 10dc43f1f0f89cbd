// SPDX-License-Identifier: MPL-2.0

package platform

import "github.com/nativedist/nativedist/pkg/target"

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// goosNames maps runtime.GOOS values to catalog OS identifiers where they differ.
var goosNames = map[string]target.OS{
	Windows: target.OSWindows,
	Darwin:  target.OSDarwin,
	Linux:   target.OSLinux,
}

// goarchNames maps runtime.GOARCH values to catalog architecture identifiers.
// Unlisted values pass through unchanged and will not resolve to a target.
var goarchNames = map[string]target.Arch{
	"amd64": target.ArchX64,
	"arm64": target.ArchARM64,
	"386":   "ia32",
	"arm":   "arm",
}

// OSFromGOOS converts a runtime.GOOS value to a catalog OS identifier.
func OSFromGOOS(goos string) target.OS {
	if os, ok := goosNames[goos]; ok {
		return os
	}
	return target.OS(goos)
}

// ArchFromGOARCH converts a runtime.GOARCH value to a catalog Arch identifier.
func ArchFromGOARCH(goarch string) target.Arch {
	if arch, ok := goarchNames[goarch]; ok {
		return arch
	}
	return target.Arch(goarch)
}
