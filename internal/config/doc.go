// SPDX-License-Identifier: MPL-2.0

// Package config loads the project configuration from nativedist.cue at the
// project root. The file is validated against an embedded CUE schema and
// merged over built-in defaults with Viper; constraints CUE cannot express
// (catalog membership, reserved module names) are checked in Go afterwards.
package config
