// SPDX-License-Identifier: MPL-2.0

// Package platform identifies the machine the process runs on.
//
// It translates Go's runtime.GOOS/runtime.GOARCH into the Node.js-style
// identifiers used by the target catalog and, on Linux only, probes which C
// library the system uses (glibc or musl). The probe reads marker files under a
// configurable root directory so tests never depend on the real filesystem.
package platform
