package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coworker/internal/pipeline"
	"coworker/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		flags      runFlags
		debounce   time.Duration
		noBackfill bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run automatically whenever new documents land in the inbox",
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
			runner, err := newPipelineRunner(env)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := flags.options(false)
			trigger := func(runCtx context.Context) error {
				summary, err := runner.Run(runCtx, opts)
				if errors.Is(err, pipeline.ErrNoFiles) {
					return nil
				}
				if summary.Run.ID != "" {
					printRunTotals(out, summary.Run)
				}
				return err
			}
			watcher, err := watch.New(watch.Options{
				Dir:      env.layout.ScanDir(),
				Debounce: debounce,
				Backfill: !noBackfill,
				Logger:   env.logger,
			}, trigger)
			if err != nil {
				return err
			}

			watchCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watcher.Run(watchCtx)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Ignore cached results on every run")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Output layout: folders, spreadsheet or both")
	cmd.Flags().BoolVar(&flags.dev, "dev", false, "Add the System Stats sheet to the workbook")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period after the last new file before a run starts")
	cmd.Flags().BoolVar(&noBackfill, "no-backfill", false, "Do not process documents already in the inbox at startup")
	return cmd
}
