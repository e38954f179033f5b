package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coworker/internal/pipeline"
)

func newFixCommand(ctx *commandContext) *cobra.Command {
	var (
		date     string
		amount   float64
		merchant string
		currency string
		docType  string
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "fix <hash-prefix>",
		Short: "Correct the extracted fields of a document",
		Long: "Overwrite fields of a cached result identified by a unique hash prefix. " +
			"The corrected result gets confidence 1.0 and is re-checked by the review policy. " +
			"Files already placed stay where they are; the catalog and the next export pick up the change.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit pipeline.Edit
			flags := cmd.Flags()
			if flags.Changed("date") {
				edit.Date = &date
			}
			if flags.Changed("amount") {
				edit.Amount = &amount
			}
			if flags.Changed("merchant") {
				edit.Merchant = &merchant
			}
			if flags.Changed("currency") {
				edit.Currency = &currency
			}
			if flags.Changed("type") {
				edit.DocType = &docType
			}
			if edit.IsEmpty() {
				return fmt.Errorf("nothing to change: pass at least one of --date, --amount, --merchant, --currency, --type")
			}

			env, err := ctx.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.requireWorkspace(); err != nil {
				return err
			}
			runner, err := pipeline.New(pipeline.Deps{
				Layout:   env.layout,
				Config:   env.cfg,
				Cache:    env.cache,
				Manifest: env.manifest,
				Catalog:  env.catalog,
				Logger:   env.logger,
			})
			if err != nil {
				return err
			}
			result, err := runner.Fix(cmd.Context(), strings.TrimSpace(args[0]), edit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Updated %s (%s)\n", shortHash(result.Hash), strings.Join(result.Changed, ", "))
			if result.After.IsReviewNeeded {
				fmt.Fprintf(out, "Still needs review: %s\n", result.After.ReviewReason)
			} else {
				fmt.Fprintln(out, "No longer needs review.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Document date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "Total amount")
	cmd.Flags().StringVar(&merchant, "merchant", "", "Merchant or issuer")
	cmd.Flags().StringVar(&currency, "currency", "", "Currency code, e.g. EUR")
	cmd.Flags().StringVarP(&docType, "type", "t", "", "Document type")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output the corrected result as JSON")
	return cmd
}
