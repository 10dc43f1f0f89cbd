// SPDX-License-Identifier: MPL-2.0

// Package toolchain compiles the native module for one target.
//
// A Toolchain turns a Request (target, crate root, feature flags) into the path
// of the produced shared library. HostToolchain executes a command template on
// the host; ContainerToolchain runs the same template inside a Docker/Podman
// image, retrying engine-level transient failures. Command and artifact
// templates are expanded with shell semantics, so "$TRIPLE" and
// "$FEATURE_FLAGS" split into argv the way a POSIX shell would.
package toolchain
