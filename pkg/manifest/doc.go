// SPDX-License-Identifier: MPL-2.0

// Package manifest reads, stamps and writes the package.json-shaped
// manifests that describe per-target and meta packages.
//
// Templates may contain // and /* */ comments and trailing commas; they are
// validated against an embedded JSON Schema before use. Fields this package
// does not model are preserved verbatim on write.
package manifest
