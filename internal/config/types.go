// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/nativedist/nativedist/internal/installer"
	"github.com/nativedist/nativedist/internal/matrix"
	"github.com/nativedist/nativedist/internal/packager"
	"github.com/nativedist/nativedist/internal/toolchain"
	"github.com/nativedist/nativedist/pkg/target"
)

// ErrInvalidConfig is wrapped by every semantic validation error.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the effective project configuration.
	Config struct {
		// Module is the native module base name, e.g. "edr".
		Module string `json:"module" mapstructure:"module"`
		// Scope is the package name prefix per-target packages derive from,
		// e.g. "@nomicfoundation/edr" -> "@nomicfoundation/edr-linux-x64-gnu".
		Scope   string        `json:"scope" mapstructure:"scope"`
		Build   BuildConfig   `json:"build" mapstructure:"build"`
		Package PackageConfig `json:"package" mapstructure:"package"`
		Install InstallConfig `json:"install" mapstructure:"install"`
	}

	// BuildConfig configures the build matrix.
	BuildConfig struct {
		Features   []string        `json:"features" mapstructure:"features"`
		Targets    []string        `json:"targets" mapstructure:"targets"` // empty means the whole catalog
		Policy     string          `json:"policy" mapstructure:"policy"`
		Parallel   int             `json:"parallel" mapstructure:"parallel"`
		StagingDir string          `json:"staging_dir" mapstructure:"staging_dir"`
		Command    string          `json:"command" mapstructure:"command"`
		Artifact   string          `json:"artifact" mapstructure:"artifact"`
		Env        []string        `json:"env" mapstructure:"env"` // KEY=VALUE
		Container  ContainerConfig `json:"container" mapstructure:"container"`
	}

	// ContainerConfig routes targets to a containerized toolchain.
	ContainerConfig struct {
		Enabled bool              `json:"enabled" mapstructure:"enabled"`
		Engine  string            `json:"engine" mapstructure:"engine"` // "" auto-detects
		Image   string            `json:"image" mapstructure:"image"`
		Images  map[string]string `json:"images" mapstructure:"images"` // per canonical target
		// Targets built in a container; empty means all when enabled.
		Targets  []string      `json:"targets" mapstructure:"targets"`
		Attempts int           `json:"attempts" mapstructure:"attempts"`
		Backoff  time.Duration `json:"backoff" mapstructure:"backoff"`
	}

	// PackageConfig configures archive production.
	PackageConfig struct {
		OutDir        string   `json:"out_dir" mapstructure:"out_dir"`
		Shared        []string `json:"shared" mapstructure:"shared"`
		Installer     string   `json:"installer" mapstructure:"installer"`
		CargoManifest string   `json:"cargo_manifest" mapstructure:"cargo_manifest"`
		TagPrefix     string   `json:"tag_prefix" mapstructure:"tag_prefix"`
		BaseURL       string   `json:"base_url" mapstructure:"base_url"`
	}

	// InstallConfig configures the installer. Environment variables override it.
	InstallConfig struct {
		BaseURL         string        `json:"base_url" mapstructure:"base_url"`
		Attempts        int           `json:"attempts" mapstructure:"attempts"`
		Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
		Dest            string        `json:"dest" mapstructure:"dest"`
		RequireChecksum bool          `json:"require_checksum" mapstructure:"require_checksum"`
	}

	// InvalidConfigError collects semantic validation failures.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// Error lists every field error.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return fmt.Sprintf("invalid config: %v", e.FieldErrors[0])
	}
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Module: target.DefaultModule,
		Scope:  "@nomicfoundation/edr",
		Build: BuildConfig{
			Features:   []string{},
			Targets:    []string{},
			Policy:     "fail-fast",
			Parallel:   1,
			StagingDir: matrix.DefaultStagingDir,
			Command:    toolchain.DefaultCommand,
			Artifact:   toolchain.DefaultArtifact,
			Env:        []string{},
			Container: ContainerConfig{
				Images:   map[string]string{},
				Targets:  []string{},
				Attempts: 3,
				Backoff:  2 * time.Second,
			},
		},
		Package: PackageConfig{
			OutDir:        packager.DefaultOutDir,
			Shared:        []string{"index.js", "index.d.ts"},
			Installer:     packager.DefaultInstaller,
			CargoManifest: packager.CargoManifestName,
			TagPrefix:     "v",
		},
		Install: InstallConfig{
			Attempts: installer.DefaultAttempts,
			Timeout:  installer.DefaultTimeout,
			Dest:     ".",
		},
	}
}
