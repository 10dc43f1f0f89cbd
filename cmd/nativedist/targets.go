// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativedist/nativedist/pkg/target"
)

func newTargetsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List the supported target catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			cfg := loaded.Config

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s  %s  %s\n",
				tableHeaderStyle.Render(fmt.Sprintf("%-18s", "TARGET")),
				tableHeaderStyle.Render(fmt.Sprintf("%-28s", "TRIPLE")),
				tableHeaderStyle.Render("ARTIFACT"))
			for _, t := range target.All() {
				fmt.Fprintf(out, "%s  %-28s  %s\n",
					CmdStyle.Render(fmt.Sprintf("%-18s", t.CanonicalName)),
					t.CompilerTriple,
					t.ArtifactFor(cfg.Module))
				if app.verbose {
					fmt.Fprintf(out, "  %s\n", SubtitleStyle.Render(t.PackageName(cfg.Scope)))
				}
			}
			return nil
		},
	}
}

func newResolveCommand(app *App) *cobra.Command {
	var override string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Show the detected host and the target it resolves to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := app.installerFor(override)
			if err != nil {
				return app.fail(err)
			}
			host, t, err := in.Resolve()
			out := cmd.OutOrStdout()
			if host != (target.HostTuple{}) {
				fmt.Fprintf(out, "%s %s\n", SubtitleStyle.Render("host:  "), host)
			}
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintf(out, "%s %s\n", SubtitleStyle.Render("target:"), CmdStyle.Render(t.CanonicalName))
			fmt.Fprintf(out, "%s %s\n", SubtitleStyle.Render("triple:"), t.CompilerTriple)
			return nil
		},
	}
	cmd.Flags().StringVar(&override, "target", "", "force a target instead of detecting the host")
	return cmd
}
