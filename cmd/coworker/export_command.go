package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coworker/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Rebuild exports/master.xlsx and exports/review.csv from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireWorkspace(); err != nil {
				return err
			}
			lock, err := env.layout.Lock()
			if err != nil {
				return err
			}
			defer lock.Unlock()

			paths, err := export.Run(env.layout, env.cache, env.manifest, dev)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Workbook: %s (%d rows)\n", paths.Workbook, paths.Rows)
			fmt.Fprintf(out, "Review queue: %s\n", paths.ReviewCSV)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dev, "dev", false, "Add the System Stats sheet")
	return cmd
}
