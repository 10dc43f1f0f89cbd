// SPDX-License-Identifier: MPL-2.0

// Package container provides a small abstraction over container engine CLIs
// (Docker/Podman) for running one-shot build commands.
//
// Engine selection uses NewEngine(EngineType) with automatic fallback if the
// preferred engine is unavailable, or AutoDetectEngine() for preference-less
// detection (Podman is tried first). Both engines embed BaseCLIEngine, which
// builds the CLI arguments and executes them through an injectable
// ExecCommandFunc.
package container
