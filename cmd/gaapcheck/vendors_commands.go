package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/table"
	"github.com/dharter89/GAAP/internal/vendormemory"
)

func newVendorsCommand(ctx *commandContext) *cobra.Command {
	vendorsCmd := &cobra.Command{
		Use:   "vendors",
		Short: "Manage remembered vendor accounts",
	}
	vendorsCmd.AddCommand(newVendorsListCommand(ctx))
	vendorsCmd.AddCommand(newVendorsResolveCommand(ctx))
	vendorsCmd.AddCommand(newVendorsCheckCommand(ctx))
	return vendorsCmd
}

func newVendorsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List vendor to account mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			memory, err := ctx.vendors(cmd.Context())
			if err != nil {
				return err
			}
			entries := memory.Entries()
			if asJSON {
				return writeJSON(cmd, entries)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No vendors remembered yet")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{entry.Vendor, entry.Account})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Vendor", "Account"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newVendorsResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve VENDOR ACCOUNT",
		Short: "Set the canonical account for a vendor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			memory, err := ctx.vendors(cmd.Context())
			if err != nil {
				return err
			}
			err = memory.ResolveConflict(cmd.Context(), args[0], args[1])
			switch {
			case errors.Is(err, services.ErrPersistence):
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: mapping was recorded but not saved; changes are not durable: %v\n", err)
			case err != nil:
				return err
			}
			account, _ := memory.Canonical(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", vendormemory.Key(args[0]), account)
			return nil
		},
	}
}

func newVendorsCheckCommand(ctx *commandContext) *cobra.Command {
	var sheetName string
	var learn bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Compare a spreadsheet's vendor accounts with remembered mappings",
		Long: "Check reports rows booked to an account other than the vendor's remembered one, " +
			"then remembers each vendor booked to a single account and lists conflicts. Use --learn=false for a read-only check.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := audit.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			memory, err := ctx.vendors(cmd.Context())
			if err != nil {
				return err
			}
			file, err := readSpreadsheet(args[0], sheetName)
			if err != nil {
				return err
			}
			normalized, err := table.Normalize(file.Raw, opts.Normalize)
			if err != nil {
				return fmt.Errorf("%s: %w", file.DocumentID, err)
			}

			mismatches, applicable := memory.FindMismatches(normalized.Table)
			var observations []vendormemory.Observation
			var warning string
			if applicable && learn {
				observations, err = memory.ObserveTable(cmd.Context(), normalized.Table)
				if err != nil {
					if !errors.Is(err, services.ErrPersistence) {
						return err
					}
					warning = fmt.Sprintf("vendor memory was updated but not saved; changes are not durable: %v", err)
				}
			}

			if asJSON {
				return writeJSON(cmd, struct {
					Document     string                     `json:"document"`
					Applicable   bool                       `json:"applicable"`
					Mismatches   []vendormemory.Mismatch    `json:"mismatches"`
					Observations []vendormemory.Observation `json:"observations"`
					Warning      string                     `json:"warning,omitempty"`
				}{file.DocumentID, applicable, mismatches, observations, warning})
			}

			out := cmd.OutOrStdout()
			if !applicable {
				fmt.Fprintf(out, "%s: vendor check not applicable (no vendor and account columns among %s / %s)\n",
					file.DocumentID, strings.Join(cfg.Vendors.VendorColumns, ", "), strings.Join(cfg.Vendors.AccountColumns, ", "))
				return nil
			}
			if len(mismatches) == 0 {
				fmt.Fprintf(out, "%s: no vendor account mismatches\n", file.DocumentID)
			} else {
				rows := make([][]string, 0, len(mismatches))
				for _, m := range mismatches {
					rows = append(rows, []string{fmt.Sprintf("%d", m.Row+1), m.Vendor, m.Used, m.Canonical})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Row", "Vendor", "Booked to", "Usually"}, rows,
					[]columnAlignment{alignRight}))
			}
			for _, obs := range vendormemory.Conflicts(observations) {
				fmt.Fprintf(out, "Conflict: %s\n", obs)
			}
			if warning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "Worksheet name or 1-based number (default: first sheet)")
	cmd.Flags().BoolVar(&learn, "learn", true, "Record vendors seen in the file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
