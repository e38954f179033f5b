package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coworker/internal/inference"
)

const doctorHealthTimeout = 30 * time.Second

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var (
		offline bool
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, workspace and service connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := ctx.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			checks := make([]check, 0, 8)
			failed := false
			fail := func(c check) {
				failed = true
				checks = append(checks, c)
			}

			if ctx.configSeen {
				checks = append(checks, newCheck("Config", statusOK, "%s", ctx.configPath))
			} else {
				checks = append(checks, newCheck("Config", statusWarn, "%s not found; using defaults", ctx.configPath))
			}
			if err := env.cfg.RequireAPIKey(); err != nil {
				fail(newCheck("API key", statusError, "%v", err))
			} else {
				checks = append(checks, newCheck("API key", statusOK, "set"))
			}
			checks = append(checks, newCheck("Model", statusInfo, "%s", env.cfg.LLM.Model))

			switch {
			case !env.layout.IsValid():
				checks = append(checks, newCheck("Workspace", statusWarn, "%s is not initialised", env.layout.Root))
			case env.layout.IsAdHoc():
				checks = append(checks, newCheck("Workspace", statusOK, "%s (ad-hoc)", env.layout.Root))
			default:
				checks = append(checks, newCheck("Workspace", statusOK, "%s", env.layout.Root))
			}
			if env.layout.IsValid() {
				if env.catalog == nil {
					fail(newCheck("Catalog", statusError, "cannot open %s", env.layout.Catalog))
				} else {
					checks = append(checks, newCheck("Catalog", statusOK, "%s", env.layout.Catalog))
				}
			}

			switch {
			case offline:
				checks = append(checks, newCheck("Service", statusInfo, "skipped (--offline)"))
			case env.cfg.RequireAPIKey() != nil:
				checks = append(checks, newCheck("Service", statusWarn, "skipped without an API key"))
			default:
				healthCtx, cancel := context.WithTimeout(cmd.Context(), doctorHealthTimeout)
				err := inference.NewTransport(env.cfg).HealthCheck(healthCtx)
				cancel()
				if err != nil {
					fail(newCheck("Service", statusError, "%v", err))
				} else {
					checks = append(checks, newCheck("Service", statusOK, "%s reachable", env.cfg.LLM.BaseURL))
				}
			}

			if jsonOut {
				if err := writeJSON(cmd, checks); err != nil {
					return err
				}
			} else {
				writeSection(cmd.OutOrStdout(), "coworker doctor", checks, shouldColorize(cmd.OutOrStdout()))
			}
			if failed {
				return errors.New("doctor found problems")
			}
			if !jsonOut {
				fmt.Fprintln(cmd.OutOrStdout(), "All checks passed.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the service health check")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output checks as JSON")
	return cmd
}
