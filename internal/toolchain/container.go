// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/nativedist/nativedist/internal/container"
	"github.com/nativedist/nativedist/internal/retry"
	"github.com/nativedist/nativedist/pkg/target"
)

// containerWorkDir is where the crate root is mounted inside the build container.
const containerWorkDir = "/src"

// ContainerToolchain runs the command template inside a container image that
// carries the cross compiler for the target.
type ContainerToolchain struct {
	options
	engine      container.Engine
	stat        func(name string) (os.FileInfo, error)
	versionOnce sync.Once
}

// NewContainer creates a container toolchain on the given engine.
func NewContainer(engine container.Engine, opts ...Option) *ContainerToolchain {
	return &ContainerToolchain{
		options: newOptions(opts),
		engine:  engine,
		stat:    os.Stat,
	}
}

// Name returns "container".
func (c *ContainerToolchain) Name() string { return "container" }

// ImageFor returns the image configured for t, or "" when none is.
func (c *ContainerToolchain) ImageFor(t target.Target) string {
	if image, ok := c.targetImages[t.ID]; ok {
		return image
	}
	return c.image
}

// Compile runs the build in a fresh container with req.Root mounted at /src.
// Engine-level transient failures are retried; a compiler failure is not.
func (c *ContainerToolchain) Compile(ctx context.Context, req Request) (string, error) {
	name := req.Target.CanonicalName

	if c.engine == nil || !c.engine.Available() {
		return "", &UnavailableError{Toolchain: c.Name(), Target: name, Reason: "no container engine (podman or docker) is available", Err: container.ErrEngineUnavailable}
	}
	c.versionOnce.Do(func() { c.logEngineVersion(ctx) })
	image := c.ImageFor(req.Target)
	if image == "" {
		return "", &UnavailableError{Toolchain: c.Name(), Target: name, Reason: "no container image configured"}
	}

	env := c.envFunc(req.Vars())
	argv, err := ExpandCommand(c.command, env)
	if err != nil {
		return "", &FailureError{Toolchain: c.Name(), Target: name, Err: err}
	}

	if ok, _ := c.engine.ImageExists(ctx, image); !ok {
		c.logger.Info("image not present locally, the engine will pull it", "image", image, "engine", c.engine.Name())
	}

	stderr, tail := stderrWithTail(req.Stderr)
	opts := container.RunOptions{
		Image:   image,
		Command: argv,
		WorkDir: containerWorkDir,
		Env:     envMap(c.env),
		Volumes: []container.VolumeMount{{HostPath: req.Root, ContainerPath: containerWorkDir}},
		Remove:  true,
		Stdout:  req.Stdout,
		Stderr:  stderr,
	}

	err = retry.WithBackoff(ctx, c.attempts, c.backoff, func(attempt int) (bool, error) {
		if attempt > 0 {
			c.logger.Warn("retrying container build", "target", name, "attempt", attempt+1)
		}
		res, err := c.engine.Run(ctx, opts)
		if err != nil {
			if errors.Is(err, container.ErrEngineUnavailable) {
				return false, &UnavailableError{Toolchain: c.Name(), Target: name, Reason: "container engine disappeared", Err: err}
			}
			return container.IsTransientError(err), &FailureError{Toolchain: c.Name(), Target: name, Err: err}
		}
		if res.Error != nil {
			return container.IsTransientError(res.Error), &UnavailableError{Toolchain: c.Name(), Target: name, Reason: c.engine.Name() + " could not be started", Err: res.Error}
		}
		if res.ExitCode != 0 {
			return container.IsTransientExitCode(res.ExitCode), &FailureError{
				Toolchain: c.Name(), Target: name, ExitCode: res.ExitCode, Output: tail.String(),
			}
		}
		return false, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("compile %s: %w", name, ctxErr)
		}
		return "", err
	}

	artifact, err := resolveArtifact(c.artifact, req.Root, env, c.stat)
	if err != nil {
		return "", &FailureError{Toolchain: c.Name(), Target: name, Output: tail.String(), Err: err}
	}
	return artifact, nil
}

func (c *ContainerToolchain) logEngineVersion(ctx context.Context) {
	v, err := c.engine.Version(ctx)
	if err != nil {
		c.logger.Debug("container engine version unknown", "engine", c.engine.Name(), "err", err)
		return
	}
	c.logger.Debug("container engine", "engine", c.engine.Name(), "version", v)
}

func envMap(env []string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	m := make(map[string]string, len(env))
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		m[k] = v
	}
	return m
}

// Router dispatches each target to its own toolchain, falling back to Default.
type Router struct {
	Default  Toolchain
	ByTarget map[target.ID]Toolchain
}

// Name returns "router".
func (r Router) Name() string { return "router" }

// For returns the toolchain responsible for t, or nil.
func (r Router) For(t target.Target) Toolchain {
	if tc, ok := r.ByTarget[t.ID]; ok && tc != nil {
		return tc
	}
	return r.Default
}

// Compile delegates to the toolchain responsible for req.Target.
func (r Router) Compile(ctx context.Context, req Request) (string, error) {
	tc := r.For(req.Target)
	if tc == nil {
		return "", &UnavailableError{Toolchain: r.Name(), Target: req.Target.CanonicalName, Reason: "no toolchain configured"}
	}
	return tc.Compile(ctx, req)
}
