// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativedist/nativedist/internal/config"
)

// newConfigCommand creates the `nativedist config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage nativedist configuration",
		Long: `Manage nativedist configuration.

Configuration is read from ` + config.FileName + ` in the project root, or from
the file given with --config. Unset fields keep their built-in defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, _, err := app.loadConfig(cmd.Context())
			if err != nil {
				return app.fail(err)
			}
			out := cmd.OutOrStdout()
			source := SubtitleStyle.Render("(using defaults)")
			if loaded.Path != "" {
				source = loaded.Path
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", CmdStyle.Render("Config file"), source)
			fmt.Fprint(out, config.GenerateCUE(loaded.Config))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create " + config.FileName + " with the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := app.projectRoot()
			if err != nil {
				return app.fail(err)
			}
			written, err := config.WriteDefault(root)
			if err != nil {
				return app.fail(err)
			}
			if !written {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s already exists in %s\n", WarningStyle.Render("!"), config.FileName, root)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created %s in %s\n", SuccessStyle.Render("✓"), config.FileName, root)
			return nil
		},
	})

	return cfgCmd
}
