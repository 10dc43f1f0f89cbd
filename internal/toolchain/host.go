// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"mvdan.cc/sh/v3/shell"
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// HostToolchain runs the compiler directly on the build machine.
	HostToolchain struct {
		options
		execCommand ExecCommandFunc
		lookPath    func(file string) (string, error)
		stat        func(name string) (os.FileInfo, error)
	}
)

// NewHost creates a host toolchain.
func NewHost(opts ...Option) *HostToolchain {
	return &HostToolchain{
		options:     newOptions(opts),
		execCommand: exec.CommandContext,
		lookPath:    exec.LookPath,
		stat:        os.Stat,
	}
}

// Name returns "host".
func (h *HostToolchain) Name() string { return "host" }

// Compile runs the command template in req.Root and returns the artifact path.
func (h *HostToolchain) Compile(ctx context.Context, req Request) (string, error) {
	name := req.Target.CanonicalName
	env := h.envFunc(req.Vars())

	argv, err := ExpandCommand(h.command, env)
	if err != nil {
		return "", &FailureError{Toolchain: h.Name(), Target: name, Err: err}
	}

	bin, err := h.lookPath(argv[0])
	if err != nil {
		return "", &UnavailableError{Toolchain: h.Name(), Target: name, Reason: argv[0] + " not found in PATH", Err: err}
	}

	cmd := h.execCommand(ctx, bin, argv[1:]...)
	cmd.Dir = req.Root
	cmd.Env = append(cmd.Environ(), h.env...)
	cmd.Stdout = req.Stdout
	stderr, tail := stderrWithTail(req.Stderr)
	cmd.Stderr = stderr

	h.logger.Debug("compiling", "target", name, "argv", argv, "dir", req.Root)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("compile %s: %w", name, ctxErr)
		}
		fe := &FailureError{Toolchain: h.Name(), Target: name, Output: tail.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fe.ExitCode = exitErr.ExitCode()
		}
		return "", fe
	}

	artifact, err := h.locateArtifact(req, env)
	if err != nil {
		return "", &FailureError{Toolchain: h.Name(), Target: name, Output: tail.String(), Err: err}
	}
	h.logger.Debug("compiled", "target", name, "artifact", artifact, "elapsed", time.Since(start))
	return artifact, nil
}

func (h *HostToolchain) locateArtifact(req Request, env func(string) string) (string, error) {
	return resolveArtifact(h.artifact, req.Root, env, h.stat)
}

// resolveArtifact expands the artifact template and checks the file exists.
func resolveArtifact(tmpl, root string, env func(string) string, stat func(string) (os.FileInfo, error)) (string, error) {
	rel, err := shell.Expand(tmpl, env)
	if err != nil {
		return "", fmt.Errorf("expand artifact path %q: %w", tmpl, err)
	}
	path := rel
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, rel)
	}
	info, err := stat(path)
	if err != nil {
		return "", fmt.Errorf("toolchain reported success but produced no artifact at %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("artifact path %s is a directory", path)
	}
	return path, nil
}
