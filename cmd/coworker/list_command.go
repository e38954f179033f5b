package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coworker/internal/catalog"
	"coworker/internal/organizer"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		filter     catalog.Filter
		reviewOnly bool
		cleanOnly  bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List organized documents from the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reviewOnly && cleanOnly {
				return errors.New("--review and --no-review are mutually exclusive")
			}
			env, err := ctx.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireWorkspace(); err != nil {
				return err
			}
			if env.catalog == nil {
				return errors.New("catalog unavailable; see the log for details")
			}

			switch {
			case reviewOnly:
				filter.Review = new(bool)
				*filter.Review = true
			case cleanOnly:
				filter.Review = new(bool)
			}
			filter.DocType = strings.TrimSpace(filter.DocType)
			filter.Month = strings.TrimSpace(filter.Month)
			filter.Merchant = strings.TrimSpace(filter.Merchant)

			records, err := env.catalog.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No documents match.")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					orDash(rec.DocDate),
					rec.DocType,
					orDash(rec.Merchant),
					formatRecordAmount(rec),
					reviewLabel(rec),
					shortHash(rec.Hash),
					displayPath(env.layout.Root, rec.Destination),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Date", "Type", "Merchant", "Amount", "Review", "Hash", "Location"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d documents\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.DocType, "type", "t", "", "Only this document type")
	cmd.Flags().StringVar(&filter.Month, "month", "", "Only documents dated in this month (YYYY-MM)")
	cmd.Flags().StringVar(&filter.Merchant, "merchant", "", "Merchant name contains this text")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only documents placed by this run")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "l", 0, "Maximum rows to show (0 for all)")
	cmd.Flags().BoolVar(&reviewOnly, "review", false, "Only documents that need review")
	cmd.Flags().BoolVar(&cleanOnly, "no-review", false, "Only documents that do not need review")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output records as JSON")
	return cmd
}

func formatRecordAmount(rec catalog.Record) string {
	if rec.Amount == nil {
		return "-"
	}
	amount := strconv.FormatFloat(*rec.Amount, 'f', 2, 64)
	if rec.Currency != "" {
		amount += " " + rec.Currency
	}
	return amount
}

func reviewLabel(rec catalog.Record) string {
	if rec.Status == string(organizer.StatusDuplicate) {
		return "duplicate"
	}
	if !rec.ReviewNeeded {
		return "no"
	}
	return orDash(rec.ReviewReason)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
