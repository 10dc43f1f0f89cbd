// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nativedist/nativedist/internal/config"
	"github.com/nativedist/nativedist/internal/container"
	"github.com/nativedist/nativedist/internal/matrix"
	"github.com/nativedist/nativedist/internal/toolchain"
	"github.com/nativedist/nativedist/pkg/target"
)

type buildFlags struct {
	targets  []string
	policy   string
	parallel int
}

func newBuildCommand(app *App) *cobra.Command {
	var flags buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the native module for every configured target",
		Long: `Compile the native module for every configured target and stage each
artifact under <staging_dir>/<target>/.

With no flags the configured target list is built in catalog order, one
target at a time, stopping at the first failure. The exit code is non-zero
if any target fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.fail(runBuild(cmd, app, flags))
		},
	}
	cmd.Flags().StringSliceVarP(&flags.targets, "target", "t", nil, "target to build (repeatable, default from config)")
	cmd.Flags().StringVar(&flags.policy, "policy", "", "failure policy: fail-fast or aggregate (default from config)")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "j", 0, "number of targets built concurrently (default from config)")
	return cmd
}

func runBuild(cmd *cobra.Command, app *App, flags buildFlags) error {
	ctx := cmd.Context()
	loaded, root, err := app.loadConfig(ctx)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	logger := app.logger()

	targets, err := selectTargets(cfg, flags.targets)
	if err != nil {
		return err
	}
	policy, err := matrix.ParsePolicy(cmp.Or(flags.policy, cfg.Build.Policy))
	if err != nil {
		return err
	}
	tc, err := app.Toolchain(cfg, logger)
	if err != nil {
		return err
	}

	orch := matrix.New(tc, matrix.WithLogger(logger))
	report, err := orch.Build(ctx, targets, matrix.BuildOptions{
		Root:        root,
		StagingDir:  cfg.Build.StagingDir,
		Module:      cfg.Module,
		Features:    cfg.Build.Features,
		Policy:      policy,
		Parallelism: cmp.Or(flags.parallel, cfg.Build.Parallel),
		// Compiler output goes to stderr so stdout carries only the report.
		Stdout: app.stderr,
		Stderr: app.stderr,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, report.Summary())
	for _, res := range report.Failed() {
		fmt.Fprintf(out, "%s %s: %v\n", ErrorStyle.Render("✗"), CmdStyle.Render(res.Target.CanonicalName), res.Err)
	}
	if err := report.Err(); err != nil {
		return err
	}
	if err := report.Incomplete(); err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%w (%w)", err, cerr)
		}
		return err
	}
	fmt.Fprintf(out, "%s %d target(s) staged under %s\n", SuccessStyle.Render("✓"), len(report.Results), cfg.Build.StagingDir)
	return nil
}

// selectTargets returns the --target list, or the configured targets.
func selectTargets(cfg *config.Config, names []string) ([]target.Target, error) {
	if len(names) > 0 {
		return target.ParseAll(names)
	}
	return cfg.Targets()
}

// newToolchain builds the host toolchain and, when containers are enabled,
// routes the configured targets to a container toolchain.
func newToolchain(cfg *config.Config, logger *log.Logger) (toolchain.Toolchain, error) {
	opts := []toolchain.Option{
		toolchain.WithCommand(cfg.Build.Command),
		toolchain.WithArtifactPath(cfg.Build.Artifact),
		toolchain.WithEnv(cfg.Build.Env...),
		toolchain.WithLogger(logger),
	}
	host := toolchain.NewHost(opts...)

	containerTargets, err := cfg.ContainerTargets()
	if err != nil {
		return nil, err
	}
	if len(containerTargets) == 0 {
		return host, nil
	}

	ct := cfg.Build.Container
	engineType, err := container.ParseEngineType(ct.Engine)
	if err != nil {
		return nil, err
	}
	engine, err := container.NewEngine(engineType)
	if err != nil {
		return nil, &toolchain.UnavailableError{
			Toolchain: "container",
			Target:    strings.Join(canonicalNames(containerTargets), ", "),
			Reason:    "no container engine",
			Err:       err,
		}
	}
	logger.Debug("container engine selected", "engine", engine.Name())

	opts = append(opts,
		toolchain.WithImage(ct.Image),
		toolchain.WithRetry(ct.Attempts, ct.Backoff))
	for name, image := range ct.Images {
		t, err := target.Parse(name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, toolchain.WithTargetImage(t.ID, image))
	}
	containerTC := toolchain.NewContainer(engine, opts...)

	router := toolchain.Router{Default: host, ByTarget: make(map[target.ID]toolchain.Toolchain, len(containerTargets))}
	for _, t := range containerTargets {
		router.ByTarget[t.ID] = containerTC
	}
	return router, nil
}

func canonicalNames(targets []target.Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.CanonicalName
	}
	return names
}
