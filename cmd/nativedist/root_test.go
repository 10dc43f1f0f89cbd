// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nativedist/nativedist/internal/config"
	"github.com/nativedist/nativedist/internal/container"
	"github.com/nativedist/nativedist/internal/installer"
	"github.com/nativedist/nativedist/internal/issue"
	"github.com/nativedist/nativedist/internal/packager"
	"github.com/nativedist/nativedist/internal/toolchain"
	"github.com/nativedist/nativedist/pkg/manifest"
	"github.com/nativedist/nativedist/pkg/target"
	"github.com/nativedist/nativedist/pkg/types"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got := getVersionString(); got != "dev (built from source)" {
			t.Errorf("getVersionString() = %q", got)
		}
	})
}

func TestRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{}))
	want := []string{"build", "package", "package-meta", "release", "install", "targets", "resolve", "config", "explain"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"unsupported", &target.UnsupportedPlatformError{}, issue.UnsupportedPlatformId},
		{"download", &installer.DownloadError{URL: "u", Attempts: 4}, issue.DownloadFailedId},
		{"checksum", &installer.ChecksumError{Filename: "f"}, issue.ChecksumMismatchId},
		{"permission", &installer.PermissionError{Path: "p", Err: errors.New("EPERM")}, issue.PermissionDeniedId},
		{"engine", &toolchain.UnavailableError{Toolchain: "container", Err: &container.EngineNotAvailableError{Engine: "any"}}, issue.ContainerEngineNotFoundId},
		{"toolchain missing", &toolchain.UnavailableError{Toolchain: "host"}, issue.ToolchainNotFoundId},
		{"toolchain failed", &toolchain.FailureError{Toolchain: "host", ExitCode: 101}, issue.ToolchainFailedId},
		{"version", &packager.PackagingError{Package: "release", Err: &manifest.InvalidVersionError{Value: "x"}}, issue.InvalidVersionId},
		{"packaging", &packager.PackagingError{Package: "edr"}, issue.PackagingFailedId},
		{"config", &config.InvalidConfigError{}, issue.ConfigLoadFailedId},
		{"joined build errors", errors.Join(fmt.Errorf("linux-x64-gnu: %w", &toolchain.FailureError{})), issue.ToolchainFailedId},
		{"other", errors.New("boom"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFail_VerboseRendersIssue(t *testing.T) {
	t.Parallel()

	app, _, stderr := newTestApp(t, Dependencies{})
	app.verbose = true
	err := app.fail(&installer.ChecksumError{Filename: "edr.linux-x64-gnu.node", Expected: "aa", Got: "bb"})
	if exitCode(t, err) != int(types.ExitFailure) {
		t.Errorf("exit code mismatch")
	}
	out := stderr.String()
	if !strings.Contains(out, "Error:") || strings.Contains(out, "for help.") {
		t.Errorf("verbose failure should render the issue page instead of a pointer:\n%s", out)
	}
}

func TestNewServiceError_NilPanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("newServiceError(nil) should panic")
		}
	}()
	_ = newServiceError(nil, 0)
}
