// SPDX-License-Identifier: MPL-2.0

// Package target is the catalog of platforms the native module is prebuilt for.
//
// Every supported (operating system, CPU architecture, C library) combination is
// one ID constant with a row in a fixed table. Canonical names, artifact file
// names and compiler triples are derived from that table once, so callers never
// build platform strings by hand. Host resolution (Resolve) is an exact lookup
// keyed by HostTuple: a combination without a row is an unsupported platform.
package target
