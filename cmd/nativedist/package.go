// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nativedist/nativedist/internal/config"
	"github.com/nativedist/nativedist/internal/packager"
	"github.com/nativedist/nativedist/pkg/target"
)

func newPackageCommand(app *App) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "package <target>",
		Short: "Package one target's staged artifact as an npm archive",
		Long: `Stamp the target's package.json template with the release version and
archive it together with the staged artifact into <out_dir>/<name>-<version>.tgz.

The version defaults to the crate version in Cargo.toml.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: target.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.fail(runPackage(cmd.Context(), app, cmd.OutOrStdout(), args[0], version))
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "release version (default from Cargo.toml)")
	return cmd
}

func newPackageMetaCommand(app *App) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "package-meta",
		Short: "Package the platform-agnostic meta package",
		Long: `Archive the root package.json, the shared loader files and the install
descriptor. Every per-target package must already be stamped with the same
version; the meta package lists them as optional dependencies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(runPackageMeta(cmd.Context(), app, cmd.OutOrStdout(), version))
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "release version (default from Cargo.toml)")
	return cmd
}

func newReleaseCommand(app *App) *cobra.Command {
	var (
		version string
		targets []string
	)
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Package every target and the meta package with one version",
		Long: `Package every configured target, then the meta package, and publish the
raw artifacts with checksums.txt and release.yaml into the output directory.
All distributables share exactly one version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(runRelease(cmd.Context(), app, cmd.OutOrStdout(), version, targets))
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "release version (default from Cargo.toml)")
	cmd.Flags().StringSliceVarP(&targets, "target", "t", nil, "target to include (repeatable, default from config)")
	return cmd
}

// newPackager configures a packager from the project config.
func (a *App) newPackager(cfg *config.Config, root string, targets []target.Target) (*packager.Packager, error) {
	return packager.New(root,
		packager.WithStagingDir(cfg.Build.StagingDir),
		packager.WithOutDir(cfg.Package.OutDir),
		packager.WithModule(cfg.Module),
		packager.WithCargoManifest(cfg.Package.CargoManifest),
		packager.WithInstaller(cfg.Package.Installer),
		packager.WithTagPrefix(cfg.Package.TagPrefix),
		packager.WithBaseURL(cfg.Package.BaseURL),
		packager.WithTargets(targets),
		packager.WithLogger(a.logger()),
	)
}

func runPackage(ctx context.Context, app *App, out io.Writer, name, version string) error {
	t, err := target.Parse(name)
	if err != nil {
		return err
	}
	loaded, root, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	targets, err := loaded.Config.Targets()
	if err != nil {
		return err
	}
	p, err := app.newPackager(loaded.Config, root, targets)
	if err != nil {
		return err
	}
	v, err := p.Version(version)
	if err != nil {
		return err
	}
	a, err := p.PackageTarget(t, v)
	if err != nil {
		return err
	}
	printArchive(out, a)
	return nil
}

func runPackageMeta(ctx context.Context, app *App, out io.Writer, version string) error {
	loaded, root, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	targets, err := loaded.Config.Targets()
	if err != nil {
		return err
	}
	p, err := app.newPackager(loaded.Config, root, targets)
	if err != nil {
		return err
	}
	a, err := p.PackageMeta(version, loaded.Config.Package.Shared)
	if err != nil {
		return err
	}
	printArchive(out, a)
	return nil
}

func runRelease(ctx context.Context, app *App, out io.Writer, version string, names []string) error {
	loaded, root, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	targets, err := selectTargets(loaded.Config, names)
	if err != nil {
		return err
	}
	p, err := app.newPackager(loaded.Config, root, targets)
	if err != nil {
		return err
	}
	set, err := p.Release(ctx, targets, version, loaded.Config.Package.Shared)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, TitleStyle.Render("Release "+set.Tag))
	for _, a := range set.Packages {
		printArchive(out, a)
	}
	printArchive(out, set.Meta)
	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("✓"), SubtitleStyle.Render(set.ChecksumsPath))
	fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("✓"), SubtitleStyle.Render(set.IndexPath))
	return nil
}

func printArchive(out io.Writer, a *packager.Archive) {
	fmt.Fprintf(out, "%s %s@%s %s %s\n",
		SuccessStyle.Render("✓"),
		CmdStyle.Render(a.Name), a.Version,
		a.Path,
		hashStyle.Render(a.SHA256))
}
