// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nativedist/nativedist/internal/issue"
)

func newExplainCommand(app *App) *cobra.Command {
	var style string
	cmd := &cobra.Command{
		Use:   "explain [issue]",
		Short: "Show remediation steps for a failure",
		Long: `Render the remediation page for a failure class. Without an argument,
list the known issues.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: issue.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range issue.Names() {
					fmt.Fprintln(out, CmdStyle.Render(name))
				}
				return nil
			}
			entry, ok := issue.Lookup(args[0])
			if !ok {
				return app.fail(fmt.Errorf("unknown issue %q (known: %s)", args[0], strings.Join(issue.Names(), ", ")))
			}
			rendered, err := entry.Render(style)
			if err != nil {
				return app.fail(fmt.Errorf("render %s: %w", entry.Name(), err))
			}
			fmt.Fprint(out, rendered)
			return nil
		},
	}
	cmd.Flags().StringVar(&style, "style", "dark", "glamour style: dark, light, notty or ascii")
	return cmd
}
