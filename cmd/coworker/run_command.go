package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"coworker/internal/inference"
	"coworker/internal/pipeline"
	"coworker/internal/runs"
)

type runFlags struct {
	force   bool
	dryRun  bool
	mode    string
	dev     bool
	noInit  bool
	jsonOut bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every document in the inbox",
		Long: "Ingest, extract, organize and export the documents waiting in the inbox " +
			"(or the workspace root for an ad-hoc workspace).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			runner, err := newPipelineRunner(env)
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := runner.Run(runCtx, flags.options(env.cfg.Organize.AutoInit))
			if err != nil && summary.Run.ID == "" {
				if errors.Is(err, pipeline.ErrNoFiles) {
					return fmt.Errorf("%w in %s", err, env.layout.ScanDir())
				}
				return err
			}
			if flags.jsonOut {
				if jsonErr := writeJSON(cmd, summary); jsonErr != nil {
					return jsonErr
				}
				return err
			}
			printSummary(cmd.OutOrStdout(), env.layout.Root, summary)
			return err
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Ignore cached results and call the extraction service again")
	cmd.Flags().BoolVarP(&flags.dryRun, "dry-run", "n", false, "Show where files would go without moving anything")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Output layout: folders, spreadsheet or both (defaults to organize.layout)")
	cmd.Flags().BoolVar(&flags.dev, "dev", false, "Add the System Stats sheet to the workbook")
	cmd.Flags().BoolVar(&flags.noInit, "no-init", false, "Fail instead of initialising an ad-hoc workspace")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Output the run summary as JSON")
	return cmd
}

func (f runFlags) options(autoInit bool) pipeline.Options {
	return pipeline.Options{
		Force:    f.force,
		DryRun:   f.dryRun,
		Mode:     strings.TrimSpace(f.mode),
		AutoInit: autoInit && !f.noInit,
		Dev:      f.dev,
	}
}

// newPipelineRunner wires the live extraction client into a runner.
func newPipelineRunner(env *environment) (*pipeline.Runner, error) {
	if err := env.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	extractor, err := inference.NewFromConfig(env.cfg, env.cache, env.logger)
	if err != nil {
		return nil, err
	}
	deps := pipeline.Deps{
		Layout:    env.layout,
		Config:    env.cfg,
		Cache:     env.cache,
		Manifest:  env.manifest,
		Extractor: extractor,
		Catalog:   env.catalog,
		Logger:    env.logger,
	}
	deps.IndexCatalog = env.catalog == nil
	return pipeline.New(deps)
}

func printSummary(out io.Writer, root string, summary pipeline.Summary) {
	rows := make([][]string, 0, len(summary.Files))
	for _, file := range summary.Files {
		detail := displayPath(root, file.Destination)
		if file.Error != "" {
			detail = file.Error
		}
		rows = append(rows, []string{
			file.Name,
			file.Status,
			orDash(file.DocType),
			yesNo(file.Review),
			yesNo(file.Cached),
			detail,
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"File", "Status", "Type", "Review", "Cached", "Destination"},
			rows,
			nil,
		))
	}
	printRunTotals(out, summary.Run)
	if summary.Export != nil {
		fmt.Fprintf(out, "Spreadsheet: %s (%d rows)\n", displayPath(root, summary.Export.Workbook), summary.Export.Rows)
	}
	if summary.Run.DryRun {
		fmt.Fprintln(out, "Dry run: no files were moved.")
	} else if summary.Run.Organized > 0 {
		fmt.Fprintf(out, "Undo with: coworker undo %s\n", summary.Run.ID)
	}
}

func printRunTotals(out io.Writer, run runs.Run) {
	fmt.Fprintf(out, "Run %s: %d files, %d processed (%d cached, %d live), %d organized, %d duplicates, %d need review, %d errors\n",
		run.ID, run.TotalFiles, run.Processed, run.Cached, run.LiveCalls,
		run.Organized, run.Duplicates, run.ReviewNeeded, run.Errors)
	if run.LiveCalls > 0 {
		fmt.Fprintf(out, "Tokens: %d in, %d out; AI time %.1fs\n", run.TokensIn, run.TokensOut, run.AISeconds)
	}
}
