// SPDX-License-Identifier: MPL-2.0

package toolchain

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nativedist/nativedist/internal/container"
	"github.com/nativedist/nativedist/pkg/target"
)

// fakeEngine scripts a sequence of container run outcomes.
type fakeEngine struct {
	available bool
	results   []*container.RunResult // consumed in order; last one repeats
	runErr    error
	onSuccess func(opts container.RunOptions)
	runs      []container.RunOptions
	versions  int
}

func (f *fakeEngine) Name() string { return "fake" }
func (f *fakeEngine) Available() bool { return f.available }
func (f *fakeEngine) Version(context.Context) (string, error) {
	f.versions++
	return "1.0", nil
}
func (f *fakeEngine) ImageExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	f.runs = append(f.runs, opts)
	if f.runErr != nil {
		return nil, f.runErr
	}
	res := &container.RunResult{}
	if len(f.results) > 0 {
		idx := min(len(f.runs)-1, len(f.results)-1)
		res = f.results[idx]
	}
	if res.ExitCode == 0 && res.Error == nil && f.onSuccess != nil {
		f.onSuccess(opts)
	}
	return res, nil
}

func writeArtifactUnder(root, rel string) func(container.RunOptions) {
	return func(container.RunOptions) {
		path := filepath.Join(root, rel)
		_ = os.MkdirAll(filepath.Dir(path), 0o755)
		_ = os.WriteFile(path, []byte("lib"), 0o644)
	}
}

func TestContainerCompile_Success(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	engine := &fakeEngine{
		available: true,
		onSuccess: writeArtifactUnder(root, "target/aarch64-unknown-linux-musl/release/libedr.so"),
	}
	tc := NewContainer(engine,
		WithImage("rust:1"),
		WithTargetImage(target.LinuxARM64Musl, "ghcr.io/rust-cross/rust-musl-cross:aarch64-musl"),
		WithEnv("CARGO_TERM_COLOR=never"),
	)

	got, err := tc.Compile(context.Background(), Request{Target: mustTarget(t, "linux-arm64-musl"), Root: root})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if got != filepath.Join(root, "target/aarch64-unknown-linux-musl/release/libedr.so") {
		t.Errorf("Compile() = %q", got)
	}

	run := engine.runs[0]
	if run.Image != "ghcr.io/rust-cross/rust-musl-cross:aarch64-musl" {
		t.Errorf("Image = %q, want per-target image", run.Image)
	}
	if run.WorkDir != "/src" || len(run.Volumes) != 1 || run.Volumes[0].HostPath != root {
		t.Errorf("mount/workdir = %+v / %q", run.Volumes, run.WorkDir)
	}
	if !slices.Equal(run.Command, []string{"cargo", "build", "--release", "--target", "aarch64-unknown-linux-musl"}) {
		t.Errorf("Command = %v", run.Command)
	}
	if run.Env["CARGO_TERM_COLOR"] != "never" || !run.Remove {
		t.Errorf("Env = %v, Remove = %v", run.Env, run.Remove)
	}
}

func TestContainerCompile_RetriesEngineFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	engine := &fakeEngine{
		available: true,
		results:   []*container.RunResult{{ExitCode: 125}, {ExitCode: 0}},
		onSuccess: writeArtifactUnder(root, "target/x86_64-unknown-linux-gnu/release/libedr.so"),
	}
	tc := NewContainer(engine, WithImage("rust:1"), WithRetry(3, time.Millisecond))

	if _, err := tc.Compile(context.Background(), Request{Target: mustTarget(t, "linux-x64-gnu"), Root: root}); err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(engine.runs) != 2 {
		t.Errorf("runs = %d, want 2", len(engine.runs))
	}
}

func TestContainerCompile_CompilerFailureNotRetried(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{available: true, results: []*container.RunResult{{ExitCode: 101}}}
	tc := NewContainer(engine, WithImage("rust:1"), WithRetry(3, time.Millisecond))

	_, err := tc.Compile(context.Background(), Request{Target: mustTarget(t, "linux-x64-gnu"), Root: t.TempDir()})
	var fe *FailureError
	if !errors.As(err, &fe) || fe.ExitCode != 101 {
		t.Fatalf("Compile() error = %v, want FailureError exit 101", err)
	}
	if len(engine.runs) != 1 {
		t.Errorf("runs = %d, want 1", len(engine.runs))
	}
}

func TestContainerCompile_Unavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tc   *ContainerToolchain
	}{
		{"no engine", NewContainer(nil, WithImage("rust:1"))},
		{"engine down", NewContainer(&fakeEngine{}, WithImage("rust:1"))},
		{"no image", NewContainer(&fakeEngine{available: true})},
		{"engine vanished", NewContainer(&fakeEngine{available: true, runErr: &container.EngineNotAvailableError{Engine: "docker"}}, WithImage("rust:1"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := tt.tc.Compile(context.Background(), Request{Target: mustTarget(t, "linux-x64-gnu"), Root: t.TempDir()})
			if !errors.Is(err, ErrToolchainUnavailable) {
				t.Errorf("Compile() error = %v, want ErrToolchainUnavailable", err)
			}
		})
	}
}

func TestRouter(t *testing.T) {
	t.Parallel()

	host := NewHost()
	ctr := NewContainer(nil)
	r := Router{Default: host, ByTarget: map[target.ID]Toolchain{target.LinuxARM64Musl: ctr}}

	if r.For(mustTarget(t, "linux-arm64-musl")) != Toolchain(ctr) {
		t.Error("override not used")
	}
	if r.For(mustTarget(t, "darwin-x64")) != Toolchain(host) {
		t.Error("default not used")
	}

	_, err := Router{}.Compile(context.Background(), Request{Target: mustTarget(t, "darwin-x64")})
	if !errors.Is(err, ErrToolchainUnavailable) {
		t.Errorf("empty Router error = %v", err)
	}
}

func TestContainerCompile_LogsEngineVersionOnce(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	engine := &fakeEngine{
		available: true,
		onSuccess: writeArtifactUnder(root, "target/x86_64-unknown-linux-musl/release/libedr.so"),
	}
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)
	tc := NewContainer(engine, WithImage("rust:1"), WithLogger(logger))

	req := Request{Target: mustTarget(t, "linux-x64-musl"), Root: root}
	for range 2 {
		if _, err := tc.Compile(context.Background(), req); err != nil {
			t.Fatalf("Compile() error = %v", err)
		}
	}
	if engine.versions != 1 {
		t.Errorf("Version() called %d times, want 1", engine.versions)
	}
	if !strings.Contains(buf.String(), "version=1.0") {
		t.Errorf("engine version not logged:\n%s", buf.String())
	}
}
