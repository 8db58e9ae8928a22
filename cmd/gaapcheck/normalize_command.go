package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/prompt"
	"github.com/dharter89/GAAP/internal/table"
)

func newNormalizeCommand(ctx *commandContext) *cobra.Command {
	var sheetName string
	var asJSON bool
	var asMarkdown bool
	var strictFilter bool

	cmd := &cobra.Command{
		Use:   "normalize FILE",
		Short: "Show the table that would be sent to the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts, err := audit.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict-filter") {
				opts.Normalize.StrictFilter = strictFilter
			}

			file, err := readSpreadsheet(args[0], sheetName)
			if err != nil {
				return err
			}
			result, err := table.Normalize(file.Raw, opts.Normalize)
			if err != nil {
				return fmt.Errorf("%s: %w", file.DocumentID, err)
			}

			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				return writeJSON(cmd, struct {
					Document string       `json:"document"`
					Sheet    string       `json:"sheet"`
					Sheets   []string     `json:"sheets"`
					Result   table.Result `json:"result"`
				}{file.DocumentID, file.Info.Sheet, file.Info.Sheets, result})
			case asMarkdown:
				fmt.Fprint(out, prompt.MarkdownTable(result.Table))
				return nil
			}

			fmt.Fprintf(out, "Document: %s\n", file.DocumentID)
			fmt.Fprintf(out, "Sheet:    %s (of %s)\n", file.Info.Sheet, strings.Join(file.Info.Sheets, ", "))
			if result.HeaderRow >= 0 {
				fmt.Fprintf(out, "Header:   row %d\n", result.HeaderRow+1)
			}
			fmt.Fprintf(out, "Rows:     %d kept, %d dropped", result.Table.Len(), result.DroppedRows)
			if result.Truncated {
				fmt.Fprintf(out, ", truncated to %d", result.Table.Len())
			}
			fmt.Fprintln(out)

			rows := make([][]string, 0, result.Table.Len())
			for _, row := range result.Table.Rows {
				rows = append(rows, row.Strings())
			}
			aligns := make([]columnAlignment, len(result.Table.Columns))
			for i := range aligns {
				if columnIsNumeric(result.Table, i) {
					aligns[i] = alignRight
				}
			}
			fmt.Fprintln(out, renderTable(out, result.Table.Columns, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "Worksheet name or 1-based number (default: first sheet)")
	cmd.Flags().BoolVar(&strictFilter, "strict-filter", false, "Also drop section subtotal label rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "Output the Markdown table embedded in the prompt")
	return cmd
}

func columnIsNumeric(t table.Table, idx int) bool {
	seen := false
	for _, row := range t.Rows {
		cell := row.At(idx)
		if cell.IsEmpty() {
			continue
		}
		if cell.Kind != table.Number {
			return false
		}
		seen = true
	}
	return seen
}
