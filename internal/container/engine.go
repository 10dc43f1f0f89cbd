// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

// ErrEngineUnavailable is the sentinel wrapped by EngineNotAvailableError.
var ErrEngineUnavailable = errors.New("container engine not available")

type (
	// Engine defines the container operations a build needs.
	Engine interface {
		// Name returns the engine name (docker or podman)
		Name() string
		// Available checks if the engine is installed and its daemon responds
		Available() bool
		// Version returns the engine version
		Version(ctx context.Context) (string, error)
		// Run runs a command in a fresh container
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// ImageExists checks if an image is present locally
		ImageExists(ctx context.Context, image string) (bool, error)
	}

	// RunOptions contains options for running a container.
	RunOptions struct {
		// Image is the image to run
		Image string
		// Platform pins the image platform, e.g. "linux/arm64" (optional)
		Platform string
		// Command is the argv to run inside the container
		Command []string
		// WorkDir is the working directory inside the container
		WorkDir string
		// Env contains environment variables
		Env map[string]string
		// Volumes are bind mounts
		Volumes []VolumeMount
		// Remove automatically removes the container after exit
		Remove bool
		// Stdout is where to write standard output
		Stdout io.Writer
		// Stderr is where to write standard error
		Stderr io.Writer
	}

	// RunResult contains the result of running a container.
	RunResult struct {
		// ExitCode is the exit code of the containerized command
		ExitCode int
		// Error is set when the engine itself could not be executed
		Error error
	}

	// EngineType identifies the container engine type.
	EngineType string

	// EngineNotAvailableError is returned when no usable container engine exists.
	EngineNotAvailableError struct {
		Engine string
		Reason string
	}
)

func (e *EngineNotAvailableError) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// Unwrap returns ErrEngineUnavailable for errors.Is() compatibility.
func (e *EngineNotAvailableError) Unwrap() error { return ErrEngineUnavailable }

// ParseEngineType validates a configured engine name.
// The empty string means "auto".
func ParseEngineType(s string) (EngineType, error) {
	switch EngineType(s) {
	case EngineTypePodman, EngineTypeDocker, "":
		return EngineType(s), nil
	default:
		return "", fmt.Errorf("unknown container engine type %q (valid: podman, docker)", s)
	}
}

// NewEngine creates a container engine based on preference, falling back to
// the other engine when the preferred one is unavailable. An empty type
// auto-detects.
func NewEngine(preferredType EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	var first, second Engine
	switch preferredType {
	case "":
		return AutoDetectEngine(opts...)
	case EngineTypePodman:
		first, second = NewPodmanEngine(opts...), NewDockerEngine(opts...)
	case EngineTypeDocker:
		first, second = NewDockerEngine(opts...), NewPodmanEngine(opts...)
	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}

	if first.Available() {
		return first, nil
	}
	if second.Available() {
		return second, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: string(preferredType),
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available", first.Name(), second.Name()),
	}
}

// AutoDetectEngine tries to find an available container engine.
func AutoDetectEngine(opts ...BaseCLIEngineOption) (Engine, error) {
	// Podman first: it works rootless without a daemon.
	if podman := NewPodmanEngine(opts...); podman.Available() {
		return podman, nil
	}
	if docker := NewDockerEngine(opts...); docker.Available() {
		return docker, nil
	}
	return nil, &EngineNotAvailableError{
		Engine: "any",
		Reason: "no container engine (podman or docker) is available on this system",
	}
}
