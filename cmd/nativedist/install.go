// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nativedist/nativedist/internal/config"
	"github.com/nativedist/nativedist/internal/installer"
	"github.com/nativedist/nativedist/pkg/release"
)

type installFlags struct {
	version         string
	dest            string
	target          string
	baseURL         string
	attempts        int
	timeout         time.Duration
	requireChecksum bool
	descriptor      string
	noProgress      bool
}

func newInstallCommand(app *App) *cobra.Command {
	var flags installFlags
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the prebuilt binary for this host",
		Long: `Detect the host platform, resolve it to a catalog target, and make sure
the matching prebuilt binary for --version is installed in the destination
directory. Nothing is downloaded when that version is already in place.

Settings are layered: config file, then the install descriptor, then
NATIVEDIST_* environment variables, then flags. NATIVEDIST_TARGET forces a target instead of detecting the host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(runInstall(cmd, app, flags))
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.version, "version", "", "version to install (required)")
	f.StringVar(&flags.dest, "dest", "", "installation directory")
	f.StringVar(&flags.target, "target", "", "force a target instead of detecting the host")
	f.StringVar(&flags.baseURL, "base-url", "", "artifact store base URL")
	f.IntVar(&flags.attempts, "attempts", 0, "download attempt cap")
	f.DurationVar(&flags.timeout, "timeout", 0, "timeout per download attempt")
	f.BoolVar(&flags.requireChecksum, "require-checksum", false, "fail when no digest is published")
	f.StringVar(&flags.descriptor, "descriptor", "", "install descriptor (default <dest>/"+release.DescriptorFileName+" when present)")
	f.BoolVar(&flags.noProgress, "no-progress", false, "do not draw a progress bar")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func runInstall(cmd *cobra.Command, app *App, flags installFlags) error {
	ctx := cmd.Context()
	loaded, _, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	opts, err := app.installOptions(loaded.Config, cmd, flags)
	if err != nil {
		return err
	}

	in := installer.New(opts...)
	bin, err := in.Install(ctx, flags.version)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if bin.Satisfied {
		fmt.Fprintf(out, "%s %s %s already installed at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(bin.Target.CanonicalName), bin.Version, bin.Path)
		return nil
	}
	fmt.Fprintf(out, "%s installed %s %s at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(bin.Target.CanonicalName), bin.Version, bin.Path)
	return nil
}

// installOptions layers config, then the install descriptor, then
// environment, then explicitly set flags.
func (a *App) installOptions(cfg *config.Config, cmd *cobra.Command, flags installFlags) ([]installer.Option, error) {
	logger := a.logger()
	env, err := installer.LoadEnv()
	if err != nil {
		return nil, err
	}

	dest := cmp.Or(flags.dest, env.Dest, cfg.Install.Dest)
	ix, err := loadDescriptor(flags.descriptor, dest)
	if err != nil {
		return nil, err
	}

	opts := []installer.Option{
		installer.WithModule(cfg.Module),
		installer.WithTagPrefix(cfg.Package.TagPrefix),
		installer.WithDetector(a.Detector),
		installer.WithLogger(logger),
		installer.WithUserAgent("nativedist/" + Version),
		installer.WithBaseURL(cmp.Or(cfg.Install.BaseURL, cfg.Package.BaseURL)),
		installer.WithAttempts(cfg.Install.Attempts),
		installer.WithTimeout(cfg.Install.Timeout),
		installer.WithDest(cfg.Install.Dest),
		installer.WithRequireChecksum(cfg.Install.RequireChecksum),
	}
	if ix != nil {
		logger.Debug("using install descriptor", "version", ix.Version, "base_url", ix.BaseURL, "assets", len(ix.Assets))
		if ix.BaseURL != "" {
			opts = append(opts, installer.WithBaseURL(ix.BaseURL))
		}
		opts = append(opts, installer.WithIndex(ix))
	}

	opts = append(opts, env.Options()...)

	changed := cmd.Flags().Changed
	if changed("dest") {
		opts = append(opts, installer.WithDest(flags.dest))
	}
	if changed("target") {
		opts = append(opts, installer.WithTargetOverride(flags.target))
	}
	if changed("base-url") {
		opts = append(opts, installer.WithBaseURL(flags.baseURL))
	}
	if changed("attempts") {
		opts = append(opts, installer.WithAttempts(flags.attempts))
	}
	if changed("timeout") {
		opts = append(opts, installer.WithTimeout(flags.timeout))
	}
	if changed("require-checksum") {
		opts = append(opts, installer.WithRequireChecksum(flags.requireChecksum))
	}
	if !flags.noProgress {
		opts = append(opts, installer.WithProgress(a.stderr))
	}
	return opts, nil
}

// loadDescriptor reads an explicit descriptor, or the one shipped next to the
// installed package. A missing default descriptor is not an error.
func loadDescriptor(path, dest string) (*release.Index, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(dest, release.DescriptorFileName)
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read install descriptor: %w", err)
	}
	defer f.Close()
	ix, err := release.ParseIndex(f)
	if err != nil {
		return nil, fmt.Errorf("install descriptor %s: %w", path, err)
	}
	return ix, nil
}

// installerFor builds an installer for read-only operations such as resolve.
func (a *App) installerFor(override string) (*installer.Installer, error) {
	opts := []installer.Option{installer.WithDetector(a.Detector)}
	env, err := installer.LoadEnv()
	if err != nil {
		return nil, err
	}
	opts = append(opts, env.Options()...)
	if override != "" {
		opts = append(opts, installer.WithTargetOverride(override))
	}
	return installer.New(opts...), nil
}
