// SPDX-License-Identifier: MPL-2.0

package config

import (
	"cmp"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/nativedist/nativedist/internal/container"
	"github.com/nativedist/nativedist/internal/cueutil"
	"github.com/nativedist/nativedist/internal/issue"
	"github.com/nativedist/nativedist/internal/matrix"
	"github.com/nativedist/nativedist/pkg/platform"
	"github.com/nativedist/nativedist/pkg/target"
)

const (
	// AppName is the application name.
	AppName = "nativedist"
	// FileName is the project configuration file, looked up at the root.
	FileName = AppName + ".cue"
)

//go:embed config_schema.cue
var configSchema []byte

// loadWithOptions reads defaults, then the config file if one exists, then
// validates the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	path := opts.ConfigFilePath
	explicit := path != ""
	if !explicit {
		path = filepath.Join(opts.Root, FileName)
	}

	resolvedPath := ""
	switch {
	case fileExists(path):
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Run 'cue vet " + FileName + "' for a detailed report").
				WithSuggestion("Use 'nativedist config show' to see the default configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
		resolvedPath = path
	case explicit:
		return nil, "", issue.NewErrorContext().
			WithOperation("load configuration").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Omit --config to use " + FileName + " from the project root").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(fmt.Errorf("config file not found: %s", path)).
			BuildError()
	}
	// No file at the root: defaults apply.

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(cmp.Or(resolvedPath, "built-in defaults")).
			WithSuggestion("Target names must come from 'nativedist targets'").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("module", d.Module)
	v.SetDefault("scope", d.Scope)
	v.SetDefault("build.features", d.Build.Features)
	v.SetDefault("build.targets", d.Build.Targets)
	v.SetDefault("build.policy", d.Build.Policy)
	v.SetDefault("build.parallel", d.Build.Parallel)
	v.SetDefault("build.staging_dir", d.Build.StagingDir)
	v.SetDefault("build.command", d.Build.Command)
	v.SetDefault("build.artifact", d.Build.Artifact)
	v.SetDefault("build.env", d.Build.Env)
	v.SetDefault("build.container.enabled", d.Build.Container.Enabled)
	v.SetDefault("build.container.engine", d.Build.Container.Engine)
	v.SetDefault("build.container.image", d.Build.Container.Image)
	v.SetDefault("build.container.images", d.Build.Container.Images)
	v.SetDefault("build.container.targets", d.Build.Container.Targets)
	v.SetDefault("build.container.attempts", d.Build.Container.Attempts)
	v.SetDefault("build.container.backoff", d.Build.Container.Backoff)
	v.SetDefault("package.out_dir", d.Package.OutDir)
	v.SetDefault("package.shared", d.Package.Shared)
	v.SetDefault("package.installer", d.Package.Installer)
	v.SetDefault("package.cargo_manifest", d.Package.CargoManifest)
	v.SetDefault("package.tag_prefix", d.Package.TagPrefix)
	v.SetDefault("package.base_url", d.Package.BaseURL)
	v.SetDefault("install.base_url", d.Install.BaseURL)
	v.SetDefault("install.attempts", d.Install.Attempts)
	v.SetDefault("install.timeout", d.Install.Timeout)
	v.SetDefault("install.dest", d.Install.Dest)
	v.SetDefault("install.require_checksum", d.Install.RequireChecksum)
}

// loadCUEIntoViper validates the file against #Config and merges it into v.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false))
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// Validate checks what the schema cannot: catalog membership, engine and
// policy names, reserved module names and image coverage.
func (c *Config) Validate() error {
	var errs []error
	if platform.IsWindowsReservedName(c.Module) {
		errs = append(errs, fmt.Errorf("module: %q is a reserved file name on Windows", c.Module))
	}
	if _, err := target.ParseAll(c.Build.Targets); err != nil {
		errs = append(errs, fmt.Errorf("build.targets: %w", err))
	}
	if _, err := matrix.ParsePolicy(c.Build.Policy); err != nil {
		errs = append(errs, fmt.Errorf("build.policy: %w", err))
	}
	if c.Build.Parallel < 1 {
		errs = append(errs, errors.New("build.parallel: must be at least 1"))
	}
	for _, kv := range c.Build.Env {
		if k, _, ok := strings.Cut(kv, "="); !ok || k == "" {
			errs = append(errs, fmt.Errorf("build.env: %q is not KEY=VALUE", kv))
		}
	}
	for _, rel := range c.Package.Shared {
		if escapesRoot(rel) {
			errs = append(errs, fmt.Errorf("package.shared: %q must stay inside the project root", rel))
		}
	}
	if escapesRoot(c.Package.Installer) {
		errs = append(errs, fmt.Errorf("package.installer: %q must stay inside the project root", c.Package.Installer))
	}

	ct := c.Build.Container
	if _, err := container.ParseEngineType(ct.Engine); err != nil {
		errs = append(errs, fmt.Errorf("build.container.engine: %w", err))
	}
	for _, name := range slices.Sorted(maps.Keys(ct.Images)) {
		if _, err := target.Parse(name); err != nil {
			errs = append(errs, fmt.Errorf("build.container.images: %w", err))
		}
	}
	containerTargets, err := target.ParseAll(ct.Targets)
	if err != nil {
		errs = append(errs, fmt.Errorf("build.container.targets: %w", err))
	}
	if ct.Enabled && ct.Image == "" {
		if len(containerTargets) == 0 {
			containerTargets = target.All()
		}
		for _, t := range containerTargets {
			if ct.Images[t.CanonicalName] == "" {
				errs = append(errs, fmt.Errorf("build.container: no image for %s (set image or images.%s)", t, t))
			}
		}
	}

	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// escapesRoot reports whether rel is absolute or climbs out of the project root.
func escapesRoot(rel string) bool {
	return filepath.IsAbs(rel) || strings.HasPrefix(filepath.ToSlash(filepath.Clean(rel)), "../")
}

// Targets returns the configured build targets in catalog order, or the
// whole catalog when none are listed.
func (c *Config) Targets() ([]target.Target, error) {
	if len(c.Build.Targets) == 0 {
		return target.All(), nil
	}
	return target.ParseAll(c.Build.Targets)
}

// ContainerTargets returns the targets routed to the container toolchain.
func (c *Config) ContainerTargets() ([]target.Target, error) {
	if !c.Build.Container.Enabled {
		return nil, nil
	}
	if len(c.Build.Container.Targets) == 0 {
		return target.All(), nil
	}
	return target.ParseAll(c.Build.Container.Targets)
}

// WriteDefault writes the default configuration to <root>/nativedist.cue
// unless the file already exists. It reports whether a file was written.
func WriteDefault(root string) (bool, error) {
	path := filepath.Join(root, FileName)
	if fileExists(path) {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
