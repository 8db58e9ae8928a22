package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/services"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var unresolve bool

	cmd := &cobra.Command{
		Use:   "verify DOCUMENT KEY...",
		Short: "Mark checklist entries resolved (or unresolved with --unresolve)",
		Long: "Verify records reviewer decisions in the verification ledger. DOCUMENT is the " +
			"spreadsheet file name; KEY is the checklist key printed by `gaapcheck audit`. " +
			"Text keys match regardless of case and spacing; index keys may omit the leading #.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.ledger(cmd.Context())
			if err != nil {
				return err
			}
			document := args[0]
			out := cmd.OutOrStdout()
			for _, arg := range args[1:] {
				key := ledger.CanonicalKey(arg)
				err := ledger.SetResolved(cmd.Context(), document, key, !unresolve)
				switch {
				case errors.Is(err, services.ErrPersistence):
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s %s was recorded but not saved; changes are not durable: %v\n", document, key, err)
				case err != nil:
					return err
				}
				state := "resolved"
				if unresolve {
					state = "unresolved"
				}
				fmt.Fprintf(out, "%s %s: %s\n", document, key, state)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unresolve, "unresolve", false, "Clear the resolved mark instead of setting it")
	return cmd
}

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the verification ledger",
	}
	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	return ledgerCmd
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list [DOCUMENT]",
		Short: "List documents, or the recorded keys of one document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ledger, err := ctx.ledger(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				entries := ledger.Document(args[0])
				if asJSON {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintf(out, "No verification recorded for %s\n", args[0])
					return nil
				}
				keys := make([]string, 0, len(entries))
				for key := range entries {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					rows = append(rows, []string{key, yesNo(entries[key])})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Key", "Resolved"}, rows, nil))
				return nil
			}

			documents := ledger.Documents()
			if asJSON {
				all := make(map[string]map[string]bool, len(documents))
				for _, doc := range documents {
					all[doc] = ledger.Document(doc)
				}
				return writeJSON(cmd, all)
			}
			if len(documents) == 0 {
				fmt.Fprintln(out, "Verification ledger is empty")
				return nil
			}
			rows := make([][]string, 0, len(documents))
			for _, doc := range documents {
				resolved := 0
				entries := ledger.Document(doc)
				for _, ok := range entries {
					if ok {
						resolved++
					}
				}
				rows = append(rows, []string{doc, strconv.Itoa(len(entries)), strconv.Itoa(resolved)})
			}
			fmt.Fprintln(out, renderTable(out, []string{"Document", "Keys", "Resolved"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignRight}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
