package main

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"coworker/internal/catalog"
	"coworker/internal/runs"
)

const statusRecentRuns = 5

type statusReport struct {
	Workspace  string          `json:"workspace"`
	AdHoc      bool            `json:"ad_hoc"`
	Totals     runs.Counters   `json:"totals"`
	RunCount   int             `json:"run_count"`
	Recent     []runs.Run      `json:"recent_runs"`
	Undoable   []string        `json:"undoable_runs"`
	Cached     int             `json:"cached_results"`
	Manifest   int             `json:"manifest_entries"`
	Malformed  int             `json:"manifest_malformed"`
	Catalog    *catalog.Counts `json:"catalog,omitempty"`
	ConfigFile string          `json:"config_file"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show run history, totals and undo-able runs",
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

			all, err := runs.List(env.layout.Runs, env.logger)
			if err != nil {
				return err
			}
			undoable, err := env.layout.TrashRuns()
			if err != nil {
				return err
			}
			_, stats, err := env.manifest.Read()
			if err != nil {
				return err
			}
			report := statusReport{
				Workspace:  env.layout.Root,
				AdHoc:      env.layout.IsAdHoc(),
				Totals:     runs.Aggregate(all),
				RunCount:   len(all),
				Undoable:   undoable,
				Cached:     env.cache.Count(),
				Manifest:   stats.Entries,
				Malformed:  stats.Malformed,
				ConfigFile: ctx.configPath,
			}
			recent := slices.Clone(all)
			slices.Reverse(recent)
			if len(recent) > statusRecentRuns {
				recent = recent[:statusRecentRuns]
			}
			report.Recent = recent
			if env.catalog != nil {
				counts, err := env.catalog.Count(cmd.Context())
				if err == nil {
					report.Catalog = &counts
				}
			}

			if jsonOut {
				return writeJSON(cmd, report)
			}
			printStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")
	return cmd
}

func printStatus(out io.Writer, report statusReport) {
	colorize := shouldColorize(out)
	totals := report.Totals
	workspaceKind := "inbox"
	if report.AdHoc {
		workspaceKind = "ad-hoc (scans the root)"
	}
	checks := []check{
		newCheck("Workspace", statusInfo, "%s, %s", report.Workspace, workspaceKind),
		newCheck("Runs", statusInfo, "%d", report.RunCount),
		newCheck("Processed", statusInfo, "%d files (%d cached, %d live calls)", totals.Processed, totals.Cached, totals.LiveCalls),
		newCheck("Organized", statusInfo, "%d (+%d duplicates)", totals.Organized, totals.Duplicates),
		newCheck("Tokens", statusInfo, "%d in, %d out", totals.TokensIn, totals.TokensOut),
		newCheck("Cached results", statusInfo, "%d", report.Cached),
	}
	if totals.ReviewNeeded > 0 {
		checks = append(checks, newCheck("Review", statusWarn, "%d documents flagged", totals.ReviewNeeded))
	} else {
		checks = append(checks, newCheck("Review", statusOK, "nothing flagged"))
	}
	if totals.Errors > 0 {
		checks = append(checks, newCheck("Errors", statusWarn, "%d across all runs", totals.Errors))
	}
	if report.Malformed > 0 {
		checks = append(checks, newCheck("Manifest", statusWarn, "%d entries, %d malformed lines skipped", report.Manifest, report.Malformed))
	} else {
		checks = append(checks, newCheck("Manifest", statusOK, "%d entries", report.Manifest))
	}
	if report.Catalog != nil {
		checks = append(checks, newCheck("Catalog", statusInfo, "%d documents, %d in review", report.Catalog.Documents, report.Catalog.Review))
	}
	writeSection(out, "Workspace", checks, colorize)

	if len(report.Recent) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(report.Recent))
		for _, run := range report.Recent {
			rows = append(rows, []string{
				run.ID,
				strconv.Itoa(run.TotalFiles),
				strconv.Itoa(run.Organized),
				strconv.Itoa(run.ReviewNeeded),
				strconv.Itoa(run.Errors),
				run.Duration().Round(100 * time.Millisecond).String(),
				yesNo(run.DryRun),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"Run", "Files", "Organized", "Review", "Errors", "Duration", "Dry run"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
	}
	if len(report.Undoable) > 0 {
		fmt.Fprintf(out, "Undo-able runs: %d (latest %s)\n", len(report.Undoable), report.Undoable[len(report.Undoable)-1])
	}
}
