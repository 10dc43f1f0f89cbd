// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nativedist/nativedist/internal/toolchain"
	"github.com/nativedist/nativedist/pkg/target"
)

// DefaultStagingDir is the per-target staging tree, relative to the project root.
const DefaultStagingDir = "npm"

const (
	// FailFast cancels remaining targets after the first failure.
	FailFast Policy = iota
	// Aggregate runs every target and reports all failures.
	Aggregate
)

var (
	// ErrDuplicateTarget is returned when a target list names a target twice.
	ErrDuplicateTarget = errors.New("duplicate target")

	// errFailFast cancels the errgroup context; it never reaches callers.
	errFailFast = errors.New("fail-fast")
)

type (
	// Policy decides what a failure does to the remaining targets.
	Policy int

	// BuildOptions configures one matrix run.
	BuildOptions struct {
		// Root is the project (crate) root. Required; the working directory is never used.
		Root string
		// StagingDir is relative to Root. Defaults to DefaultStagingDir.
		StagingDir  string
		Module      string
		Features    []string
		Policy      Policy
		Parallelism int // <= 1 means sequential
		Stdout      io.Writer
		Stderr      io.Writer
	}

	// Option configures an Orchestrator.
	Option func(*Orchestrator)

	// Orchestrator runs a toolchain across targets.
	Orchestrator struct {
		toolchain toolchain.Toolchain
		logger    *log.Logger
		now       func() time.Time
	}
)

// ParsePolicy parses "fail-fast" or "aggregate".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "aggregate":
		return Aggregate, nil
	default:
		return FailFast, fmt.Errorf("unknown build policy %q (valid: fail-fast, aggregate)", s)
	}
}

func (p Policy) String() string {
	if p == Aggregate {
		return "aggregate"
	}
	return "fail-fast"
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator that compiles with tc.
func New(tc toolchain.Toolchain, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		toolchain: tc,
		logger:    log.New(io.Discard),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StagedArtifactPath returns where the artifact of t is staged.
func StagedArtifactPath(root, stagingDir, module string, t target.Target) string {
	return filepath.Join(StageDir(root, stagingDir, t), t.ArtifactFor(cmp.Or(module, target.DefaultModule)))
}

// StageDir returns the per-target staging directory.
func StageDir(root, stagingDir string, t target.Target) string {
	return filepath.Join(root, cmp.Or(stagingDir, DefaultStagingDir), t.CanonicalName)
}

// Build compiles every target and stages its artifact. Per-target failures
// are reported in the Report; the error return is reserved for invalid input.
func (o *Orchestrator) Build(ctx context.Context, targets []target.Target, opts BuildOptions) (*Report, error) {
	if opts.Root == "" {
		return nil, errors.New("build root must be set")
	}
	ordered := slices.Clone(targets)
	slices.SortFunc(ordered, func(a, b target.Target) int { return cmp.Compare(a.ID, b.ID) })
	for i := 1; i < len(ordered); i++ {
		if ordered[i].ID == ordered[i-1].ID {
			return nil, fmt.Errorf("%w: %s would be staged twice", ErrDuplicateTarget, ordered[i].CanonicalName)
		}
	}

	report := &Report{Results: make([]Result, len(ordered))}
	for i, t := range ordered {
		report.Results[i] = Result{Target: t, Status: StatusSkipped}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallelism, 1))

	for i, t := range ordered {
		if err := gctx.Err(); err != nil {
			report.Results[i].Err = err
			continue
		}
		g.Go(func() error {
			res := o.buildOne(gctx, t, opts)
			report.Results[i] = res
			if res.Status == StatusFailed && opts.Policy == FailFast {
				return errFailFast
			}
			return nil
		})
	}
	_ = g.Wait()

	o.logger.Info("build finished",
		"succeeded", len(report.Succeeded()),
		"failed", len(report.Failed()),
		"skipped", len(report.Skipped()),
		"policy", opts.Policy)
	return report, nil
}

func (o *Orchestrator) buildOne(ctx context.Context, t target.Target, opts BuildOptions) Result {
	res := Result{Target: t, Status: StatusSkipped}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := o.now()
	o.logger.Info("building", "target", t.CanonicalName, "triple", t.CompilerTriple, "toolchain", o.toolchain.Name())
	built, err := o.toolchain.Compile(ctx, toolchain.Request{
		Target:   t,
		Root:     opts.Root,
		Module:   opts.Module,
		Features: opts.Features,
		Stdout:   opts.Stdout,
		Stderr:   opts.Stderr,
	})
	if err == nil {
		res.ArtifactPath, err = stage(built, StagedArtifactPath(opts.Root, opts.StagingDir, opts.Module, t))
	}
	res.Duration = o.now().Sub(start)

	switch {
	case err == nil:
		res.Status = StatusSucceeded
		o.logger.Info("built", "target", t.CanonicalName, "artifact", res.ArtifactPath, "elapsed", res.Duration)
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		// Cancelled by a sibling failure or the caller; the target did not fail on its own.
		res.Err = err
		o.logger.Warn("cancelled", "target", t.CanonicalName)
	default:
		res.Status = StatusFailed
		res.Err = err
		o.logger.Error("build failed", "target", t.CanonicalName, "err", err)
	}
	return res
}

// stage copies src to dst through a temp file in dst's directory so a
// partially copied artifact never appears at dst.
func stage(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open built artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".stage-*")
	if err != nil {
		return "", fmt.Errorf("create staging temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close staging temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	return dst, nil
}
