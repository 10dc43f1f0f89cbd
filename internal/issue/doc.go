// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// remediation hints. The Issue catalog holds longer Markdown guidance for the
// failure classes a user can act on (unsupported platform, checksum mismatch,
// missing toolchain and so on), rendered to the terminal with glamour.
package issue
