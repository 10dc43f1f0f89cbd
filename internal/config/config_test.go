// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nativedist/nativedist/internal/issue"
	"github.com/nativedist/nativedist/internal/testutil"
	"github.com/nativedist/nativedist/pkg/target"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	testutil.MustWriteFile(t, path, content)
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Parallel()

	loaded, err := Load(context.Background(), LoadOptions{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Path != "" {
		t.Errorf("Path = %q, want empty", loaded.Path)
	}
	cfg := loaded.Config
	want := DefaultConfig()
	if cfg.Module != want.Module || cfg.Build.Policy != "fail-fast" || cfg.Install.Timeout != want.Install.Timeout {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	targets, err := cfg.Targets()
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != len(target.All()) {
		t.Errorf("Targets() = %d entries, want the whole catalog", len(targets))
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeConfig(t, dir, `
module: "edr"
build: {
	targets: ["linux-x64-gnu", "darwin-arm64"]
	policy: "aggregate"
	parallel: 3
	env: ["RUSTFLAGS=-C target-cpu=native"]
	container: {
		enabled: true
		image: "ghcr.io/example/cross:latest"
		images: "linux-x64-musl": "ghcr.io/example/musl:latest"
		backoff: "500ms"
	}
}
install: {
	base_url: "https://example.com/releases"
	timeout: "2m"
	require_checksum: true
}
`)

	loaded, err := Load(context.Background(), LoadOptions{Root: dir})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Path != path {
		t.Errorf("Path = %q, want %q", loaded.Path, path)
	}
	cfg := loaded.Config
	if !slices.Equal(cfg.Build.Targets, []string{"linux-x64-gnu", "darwin-arm64"}) {
		t.Errorf("Build.Targets = %v", cfg.Build.Targets)
	}
	if cfg.Build.Policy != "aggregate" || cfg.Build.Parallel != 3 {
		t.Errorf("Build = %+v", cfg.Build)
	}
	if !slices.Equal(cfg.Build.Env, []string{"RUSTFLAGS=-C target-cpu=native"}) {
		t.Errorf("Build.Env = %v", cfg.Build.Env)
	}
	ct := cfg.Build.Container
	if !ct.Enabled || ct.Backoff != 500*time.Millisecond || ct.Images["linux-x64-musl"] != "ghcr.io/example/musl:latest" {
		t.Errorf("Build.Container = %+v", ct)
	}
	if ct.Attempts != DefaultConfig().Build.Container.Attempts {
		t.Errorf("unset container.attempts = %d, want default", ct.Attempts)
	}
	if cfg.Install.Timeout != 2*time.Minute || !cfg.Install.RequireChecksum {
		t.Errorf("Install = %+v", cfg.Install)
	}
	// Untouched sections keep their defaults.
	if cfg.Package.OutDir != DefaultConfig().Package.OutDir {
		t.Errorf("Package.OutDir = %q", cfg.Package.OutDir)
	}
}

func TestLoad_SchemaViolation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, `build: targets: ["freebsd-x64"]`)

	_, err := Load(context.Background(), LoadOptions{Root: dir})
	if err == nil {
		t.Fatal("Load() should reject a target outside the catalog")
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("error %T is not actionable", err)
	}
	if !strings.Contains(err.Error(), FileName) {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "absent.cue")
	if _, err := Load(context.Background(), LoadOptions{ConfigFilePath: missing}); err == nil {
		t.Fatal("Load() should fail for a missing explicit file")
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, LoadOptions{Root: t.TempDir()}); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := map[string]func(*Config){
		"reserved module":       func(c *Config) { c.Module = "con" },
		"unknown target":        func(c *Config) { c.Build.Targets = []string{"linux-x64"} },
		"duplicate target":      func(c *Config) { c.Build.Targets = []string{"win32-x64", "win32-x64"} },
		"unknown policy":        func(c *Config) { c.Build.Policy = "best-effort" },
		"zero parallel":         func(c *Config) { c.Build.Parallel = 0 },
		"bad env":               func(c *Config) { c.Build.Env = []string{"NOEQUALS"} },
		"escaping shared":       func(c *Config) { c.Package.Shared = []string{"../secret"} },
		"escaping installer":    func(c *Config) { c.Package.Installer = "/usr/lib/install.js" },
		"unknown engine":        func(c *Config) { c.Build.Container.Engine = "lxc" },
		"unknown image target":  func(c *Config) { c.Build.Container.Images = map[string]string{"sparc": "x"} },
		"container needs image": func(c *Config) { c.Build.Container.Enabled = true },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestValidate_PerTargetImages(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Build.Container.Enabled = true
	cfg.Build.Container.Targets = []string{"linux-x64-musl", "linux-arm64-musl"}
	cfg.Build.Container.Images = map[string]string{"linux-x64-musl": "musl-x64"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "linux-arm64-musl") {
		t.Errorf("Validate() = %v, want missing image for linux-arm64-musl", err)
	}

	cfg.Build.Container.Images["linux-arm64-musl"] = "musl-arm64"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	got, err := cfg.ContainerTargets()
	if err != nil || len(got) != 2 {
		t.Errorf("ContainerTargets() = %v, %v", got, err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	written, err := WriteDefault(dir)
	if err != nil || !written {
		t.Fatalf("WriteDefault() = %v, %v", written, err)
	}
	again, err := WriteDefault(dir)
	if err != nil || again {
		t.Errorf("second WriteDefault() = %v, %v; want no overwrite", again, err)
	}

	loaded, err := Load(context.Background(), LoadOptions{Root: dir})
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	want := DefaultConfig()
	got := loaded.Config
	if got.Scope != want.Scope || got.Install.Timeout != want.Install.Timeout ||
		got.Build.Container.Backoff != want.Build.Container.Backoff ||
		!slices.Equal(got.Package.Shared, want.Package.Shared) ||
		got.Package.Installer != want.Package.Installer {
		t.Errorf("round trip changed values: %+v", got)
	}
}

func TestProvider(t *testing.T) {
	t.Parallel()

	loaded, err := NewProvider().Load(context.Background(), LoadOptions{Root: t.TempDir()})
	if err != nil || loaded.Config == nil {
		t.Fatalf("Provider.Load() = %v, %v", loaded, err)
	}
}
