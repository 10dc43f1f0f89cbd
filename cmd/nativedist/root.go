// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for nativedist.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nativedist/nativedist/internal/config"
	"github.com/nativedist/nativedist/internal/installer"
	"github.com/nativedist/nativedist/internal/toolchain"
	"github.com/nativedist/nativedist/pkg/platform"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and resolves config, toolchain and host detection
	// through it.
	App struct {
		Config    config.Provider
		Toolchain ToolchainFactory
		Detector  installer.Detector
		stdout    io.Writer
		stderr    io.Writer

		// global flag values
		verbose bool
		cfgFile string
		root    string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    config.Provider
		Toolchain ToolchainFactory
		Detector  installer.Detector
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// ToolchainFactory builds the toolchain a build run compiles with.
	ToolchainFactory func(cfg *config.Config, logger *log.Logger) (toolchain.Toolchain, error)
)

// NewApp creates an App, filling unset dependencies with production defaults.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:    deps.Config,
		Toolchain: deps.Toolchain,
		Detector:  deps.Detector,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Toolchain == nil {
		app.Toolchain = newToolchain
	}
	if app.Detector == nil {
		app.Detector = platform.SystemDetector{}
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nativedist",
		Short: "Build, package and install prebuilt native Node modules",
		Long: TitleStyle.Render("nativedist") + SubtitleStyle.Render(" - prebuilt native module distribution") + `

nativedist compiles a Rust native module for every supported platform,
packages each artifact as its own npm archive, and installs the right
prebuilt binary on the machine that needs it.

` + SubtitleStyle.Render("Examples:") + `
  nativedist build                    Build every target, stop at the first failure
  nativedist build --policy aggregate Build every target, report all failures
  nativedist release                  Package all targets plus the meta package
  nativedist install --version 1.2.0  Install the binary for this host
  nativedist resolve                  Show which target this host maps to`,
		SilenceUsage: true,
	}
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(app.stderr)

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is <root>/"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&app.root, "root", ".", "project root")

	rootCmd.AddCommand(
		newBuildCommand(app),
		newPackageCommand(app),
		newPackageMetaCommand(app),
		newReleaseCommand(app),
		newInstallCommand(app),
		newTargetsCommand(app),
		newResolveCommand(app),
		newConfigCommand(app),
		newExplainCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	// fang overrides rootCmd.Version, so the version goes through WithVersion.
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}

// logger returns the CLI logger, at debug level under --verbose.
func (a *App) logger() *log.Logger {
	l := log.NewWithOptions(a.stderr, log.Options{Prefix: "nativedist"})
	if a.verbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}

// projectRoot returns the absolute --root.
func (a *App) projectRoot() (string, error) {
	root, err := filepath.Abs(a.root)
	if err != nil {
		return "", fmt.Errorf("resolve project root: %w", err)
	}
	return root, nil
}

// loadConfig loads the project configuration under --root or --config.
func (a *App) loadConfig(ctx context.Context) (*config.Loaded, string, error) {
	root, err := a.projectRoot()
	if err != nil {
		return nil, "", err
	}
	loaded, err := a.Config.Load(ctx, config.LoadOptions{Root: root, ConfigFilePath: a.cfgFile})
	if err != nil {
		return nil, "", err
	}
	return loaded, root, nil
}
