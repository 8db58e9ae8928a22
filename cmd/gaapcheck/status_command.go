package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var offline bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, storage and model connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, !offline)

			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Provider: %s\n", cfg.ProviderName())
				fmt.Fprintf(out, "Format:   %s\n", cfg.Audit.Format)
				fmt.Fprintf(out, "Identity: %s\n", cfg.Verification.Identity)
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					state := "ok"
					if !r.Passed {
						state = "FAIL"
					}
					rows = append(rows, []string{r.Name, state, r.Detail})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Check", "Status", "Detail"}, rows, nil))
			}
			if !preflight.Passed(results) {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the live model request")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
