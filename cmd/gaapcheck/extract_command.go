package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/extract"
	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/prompt"
)

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var format string
	var sectionOnly bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract RESPONSE_FILE",
		Short: "Parse a saved model response into violations",
		Long:  "Extract re-runs violation extraction over a raw model response. Use - to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			extractor, err := audit.ExtractorFromConfig(cfg)
			if err != nil {
				return err
			}
			if strings.TrimSpace(format) != "" || cmd.Flags().Changed("section-only") {
				mode := extractor.Mode()
				if strings.TrimSpace(format) != "" {
					if mode, err = prompt.ParseMode(format); err != nil {
						return err
					}
				}
				only := cfg.Audit.SectionOnly
				if cmd.Flags().Changed("section-only") {
					only = sectionOnly
				}
				extractor = extract.New(mode, extract.Options{SectionOnly: only})
			}

			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			result, err := extractor.Extract(raw)
			if err != nil {
				return err
			}
			grade := grading.FromUnresolved(len(result.Violations))

			if asJSON {
				return writeJSON(cmd, struct {
					extract.Result
					ComputedGrade grading.Grade `json:"computed_grade"`
				}{result, grade})
			}
			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(result.Violations))
			for i, v := range result.Violations {
				rows = append(rows, []string{fmt.Sprintf("%d", i+1), v.Label(), v.SuggestedCorrection})
			}
			fmt.Fprintln(out, renderTable(out, []string{"#", "Violation", "Suggested correction"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft}))
			fmt.Fprintf(out, "Grade: %s", grade)
			if result.Grade != nil {
				fmt.Fprintf(out, " (model said %s)", result.Grade)
			}
			fmt.Fprintln(out)
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "Warning: %s\n", warning)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Response format: loose or strict (default from config)")
	cmd.Flags().BoolVar(&sectionOnly, "section-only", false, "Only read violations under a GAAP Violations heading")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
