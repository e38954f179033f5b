package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coworker/internal/config"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the workspace folders and system directory",
		Long: "Create inbox/, organized/, review/ and exports/ plus the .system directory " +
			"holding the cache, manifest and run history. Running it again is harmless.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout, err := ctx.layout()
			if err != nil {
				return err
			}
			if err := layout.EnsureStructure(); err != nil {
				return fmt.Errorf("initialise workspace: %w", err)
			}
			if err := config.WriteWorkspaceSample(layout.Config); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workspace ready at %s\n", layout.Root)
			fmt.Fprintf(out, "Drop scans into %s and run 'coworker run'.\n", layout.Inbox)
			fmt.Fprintf(out, "Per-workspace overrides: %s\n", layout.Config)
			return nil
		},
	}
}
