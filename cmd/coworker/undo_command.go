package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coworker/internal/logging"
	"coworker/internal/undo"
)

func newUndoCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "undo [run-id]",
		Short: "Restore the files moved by a run (the latest by default)",
		Args:  cobra.MaximumNArgs(1),
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

			var runID string
			if len(args) == 1 {
				runID = strings.TrimSpace(args[0])
			}
			report, err := undo.New(env.layout, env.manifest, env.logger).Undo(cmd.Context(), runID)
			if errors.Is(err, undo.ErrNothingToUndo) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to undo.")
				return nil
			}
			if report.RunID != "" && len(report.Failures) == 0 && err == nil && env.catalog != nil {
				if _, dropErr := env.catalog.DeleteRun(cmd.Context(), report.RunID); dropErr != nil {
					logging.WarnWithContext(env.logger, "failed to drop run from catalog", "catalog_delete_failed",
						logging.String(logging.FieldRunID, report.RunID),
						logging.Error(dropErr),
						logging.String(logging.FieldErrorHint, "delete .system/catalog.db to rebuild it on the next run"),
						logging.String(logging.FieldImpact, "coworker list still shows the undone files"),
					)
				}
			}

			if jsonOut {
				if jsonErr := writeJSON(cmd, report); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			out := cmd.OutOrStdout()
			if len(report.Restored) > 0 {
				rows := make([][]string, 0, len(report.Restored))
				for _, restored := range report.Restored {
					rows = append(rows, []string{
						displayPath(env.layout.Root, restored.To),
						yesNo(restored.Renamed),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Restored", "Renamed"}, rows, nil))
			}
			for _, kept := range report.Kept {
				fmt.Fprintf(out, "Kept modified copy: %s\n", displayPath(env.layout.Root, kept))
			}
			for _, failure := range report.Failures {
				fmt.Fprintf(out, "Failed: %s: %s\n", failure.Path, failure.Err)
			}
			if report.RunID != "" {
				fmt.Fprintf(out, "Run %s: %d restored, %d organized copies removed\n", report.RunID, len(report.Restored), len(report.Removed))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the undo report as JSON")
	return cmd
}
