// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/shell"

	"github.com/nativedist/nativedist/pkg/target"
)

const (
	// DefaultCommand builds a release cdylib for the requested triple.
	DefaultCommand = "cargo build --release --target $TRIPLE $FEATURE_FLAGS"

	// DefaultArtifact is where cargo leaves the shared library, relative to the crate root.
	DefaultArtifact = "target/$TRIPLE/release/$LIB_FILE"

	defaultAttempts = 3
	defaultBackoff  = 2 * time.Second

	// outputTailSize bounds how much compiler stderr a FailureError keeps.
	outputTailSize = 4 << 10
)

var (
	// ErrToolchainFailure means the toolchain ran and did not produce the artifact.
	ErrToolchainFailure = errors.New("toolchain failure")

	// ErrToolchainUnavailable means the toolchain could not be started at all:
	// missing binary, no container engine, or no image configured.
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
)

type (
	// Toolchain compiles the native module for a single target.
	Toolchain interface {
		Name() string
		// Compile builds req.Target and returns the absolute path of the produced library.
		Compile(ctx context.Context, req Request) (string, error)
	}

	// Request describes one compilation.
	Request struct {
		Target target.Target
		// Root is the crate root. Commands run with Root as their working directory.
		Root string
		// Module is the native module name; its crate library stem is derived from it.
		Module   string
		Features []string
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// FailureError reports a toolchain that ran and failed.
	FailureError struct {
		Toolchain string
		Target    string
		ExitCode  int
		Output    string // tail of the compiler's stderr
		Err       error
	}

	// UnavailableError reports a toolchain that could not be started.
	UnavailableError struct {
		Toolchain string
		Target    string
		Reason    string
		Err       error
	}

	// Option configures HostToolchain and ContainerToolchain.
	Option func(*options)

	options struct {
		command      string
		artifact     string
		env          []string
		logger       *log.Logger
		lookupEnv    func(string) (string, bool)
		image        string
		targetImages map[target.ID]string
		attempts     int
		backoff      time.Duration
	}
)

func (e *FailureError) Error() string {
	msg := fmt.Sprintf("%s toolchain failed for %s", e.Toolchain, e.Target)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrToolchainFailure and the underlying cause.
func (e *FailureError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolchainFailure}
	}
	return []error{ErrToolchainFailure, e.Err}
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("%s toolchain unavailable for %s: %s", e.Toolchain, e.Target, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrToolchainUnavailable and the underlying cause.
func (e *UnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrToolchainUnavailable}
	}
	return []error{ErrToolchainUnavailable, e.Err}
}

// WithCommand sets the command template.
func WithCommand(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.command = tmpl
		}
	}
}

// WithArtifactPath sets the artifact path template, relative to the crate root.
func WithArtifactPath(tmpl string) Option {
	return func(o *options) {
		if tmpl != "" {
			o.artifact = tmpl
		}
	}
}

// WithEnv adds KEY=VALUE pairs to the compiler's environment.
func WithEnv(env ...string) Option {
	return func(o *options) {
		o.env = append(o.env, env...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithImage sets the default container image.
func WithImage(image string) Option {
	return func(o *options) {
		o.image = image
	}
}

// WithTargetImage sets the container image for one target.
func WithTargetImage(id target.ID, image string) Option {
	return func(o *options) {
		if o.targetImages == nil {
			o.targetImages = make(map[target.ID]string)
		}
		o.targetImages[id] = image
	}
}

// WithRetry bounds container engine retries.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *options) {
		o.attempts = attempts
		o.backoff = backoff
	}
}

func newOptions(opts []Option) options {
	o := options{
		command:   DefaultCommand,
		artifact:  DefaultArtifact,
		logger:    log.New(io.Discard),
		lookupEnv: os.LookupEnv,
		attempts:  defaultAttempts,
		backoff:   defaultBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LibraryStem converts a module name into the crate's library stem
// (cargo replaces dashes with underscores).
func LibraryStem(module string) string {
	return strings.ReplaceAll(module, "-", "_")
}

// LibraryFile returns the file name cargo gives a cdylib on the target OS.
func LibraryFile(t target.Target, module string) string {
	stem := LibraryStem(module)
	switch t.OS {
	case target.OSDarwin:
		return "lib" + stem + ".dylib"
	case target.OSWindows:
		return stem + ".dll"
	default:
		return "lib" + stem + ".so"
	}
}

// Vars returns the variables available to command and artifact templates.
func (r Request) Vars() map[string]string {
	module := r.Module
	if module == "" {
		module = target.DefaultModule
	}
	var flags string
	if len(r.Features) > 0 {
		flags = "--features " + strings.Join(r.Features, ",")
	}
	return map[string]string{
		"TRIPLE":        r.Target.CompilerTriple,
		"TARGET":        r.Target.CanonicalName,
		"OS":            string(r.Target.OS),
		"ARCH":          string(r.Target.Arch),
		"LIBC":          string(r.Target.Libc),
		"MODULE":        module,
		"LIB":           LibraryStem(module),
		"LIB_FILE":      LibraryFile(r.Target, module),
		"ARTIFACT":      r.Target.ArtifactFor(module),
		"FEATURES":      strings.Join(r.Features, ","),
		"FEATURE_FLAGS": flags,
	}
}

// envFunc resolves template variables first, then the process environment.
func (o options) envFunc(vars map[string]string) func(string) string {
	return func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		v, _ := o.lookupEnv(name)
		return v
	}
}

// ExpandCommand expands a command template into argv.
func ExpandCommand(tmpl string, env func(string) string) ([]string, error) {
	argv, err := shell.Fields(tmpl, env)
	if err != nil {
		return nil, fmt.Errorf("expand command %q: %w", tmpl, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("command template %q expands to nothing", tmpl)
	}
	return argv, nil
}

// tailWriter keeps the last max bytes written to it.
type tailWriter struct {
	buf []byte
	max int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.max; over > 0 {
		w.buf = w.buf[over:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string { return string(w.buf) }

// stderrWithTail tees the caller's stderr into a bounded tail buffer.
func stderrWithTail(stderr io.Writer) (io.Writer, *tailWriter) {
	tail := &tailWriter{max: outputTailSize}
	if stderr == nil {
		return tail, tail
	}
	return io.MultiWriter(stderr, tail), tail
}
