package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/fileutil"
	"github.com/dharter89/GAAP/internal/prompt"
	"github.com/dharter89/GAAP/internal/report"
	"github.com/dharter89/GAAP/internal/verification"
)

type auditOutput struct {
	Document   string               `json:"document"`
	Report     *audit.Report        `json:"report,omitempty"`
	Grade      string               `json:"grade,omitempty"`
	Unresolved int                  `json:"unresolved"`
	Checklist  []verification.Entry `json:"checklist,omitempty"`
	Exports    []string             `json:"exports,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var sheetName string
	var statementType string
	var format string
	var outDir string
	var asJSON bool
	var showRaw bool

	cmd := &cobra.Command{
		Use:   "audit FILE...",
		Short: "Audit one or more spreadsheets with the configured model",
		Long: "Audit reads each spreadsheet, normalizes it, asks the model for GAAP violations " +
			"and grades the result against the verification ledger. Files are audited " +
			"independently; one failure does not stop the batch.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var mode prompt.Mode
			if strings.TrimSpace(format) != "" {
				parsed, err := prompt.ParseMode(format)
				if err != nil {
					return err
				}
				mode = parsed
			}
			svc, _, err := ctx.auditService(cmd.Context(), func(opts *audit.Options) {
				if mode != "" {
					opts.Mode = mode
				}
				if s := strings.TrimSpace(statementType); s != "" {
					opts.StatementType = s
				}
			})
			if err != nil {
				return err
			}
			ledger, err := ctx.ledger(cmd.Context())
			if err != nil {
				return err
			}

			var inputs []audit.Input
			var outputs []auditOutput
			for _, path := range args {
				file, err := readSpreadsheet(path, sheetName)
				if err != nil {
					outputs = append(outputs, auditOutput{Document: filepath.Base(path), Error: err.Error()})
					continue
				}
				inputs = append(inputs, audit.Input{DocumentID: file.DocumentID, Raw: file.Raw})
			}

			failed := len(outputs)
			for _, outcome := range svc.RunBatch(cmd.Context(), inputs) {
				out := auditOutput{Document: outcome.DocumentID}
				if outcome.Err != nil {
					out.Error = outcome.Err.Error()
					failed++
					outputs = append(outputs, out)
					continue
				}
				summary := report.FromAudit(outcome.Report, ledger, time.Now())
				out.Report = outcome.Report
				out.Grade = summary.Grade.String()
				out.Unresolved = len(summary.Outstanding())
				out.Checklist = summary.Checklist
				if outDir != "" {
					exports, err := exportReports(outDir, summary)
					if err != nil {
						out.Error = err.Error()
						failed++
					}
					out.Exports = exports
				}
				outputs = append(outputs, out)
			}

			if asJSON {
				if err := writeJSON(cmd, outputs); err != nil {
					return err
				}
			} else {
				printAuditOutputs(cmd.OutOrStdout(), outputs, showRaw)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheetName, "sheet", "", "Worksheet name or 1-based number (default: first sheet)")
	cmd.Flags().StringVar(&statementType, "statement-type", "", "Statement type named in the prompt (default from config)")
	cmd.Flags().StringVar(&format, "format", "", "Response format: loose or strict (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Write PDF, HTML and Markdown reports to this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showRaw, "raw", false, "Print the raw model response")
	return cmd
}

// exportReports writes the PDF, HTML and Markdown reports for summary.
func exportReports(dir string, summary report.Summary) ([]string, error) {
	stem := strings.TrimSuffix(report.FileName(summary.DocumentID), ".pdf")
	pdfPath := filepath.Join(dir, report.FileName(summary.DocumentID))
	if err := fileutil.WriteAtomic(pdfPath, 0o644, func(w io.Writer) error {
		return report.PDF(w, summary)
	}); err != nil {
		return nil, fmt.Errorf("write %s: %w", pdfPath, err)
	}
	page, err := report.HTML(summary)
	if err != nil {
		return []string{pdfPath}, err
	}
	htmlPath := filepath.Join(dir, stem+".html")
	if err := fileutil.WriteFileAtomic(htmlPath, page, 0o644); err != nil {
		return []string{pdfPath}, fmt.Errorf("write %s: %w", htmlPath, err)
	}
	mdPath := filepath.Join(dir, stem+".md")
	if err := fileutil.WriteFileAtomic(mdPath, []byte(report.Markdown(summary)), 0o644); err != nil {
		return []string{pdfPath, htmlPath}, fmt.Errorf("write %s: %w", mdPath, err)
	}
	return []string{pdfPath, htmlPath, mdPath}, nil
}

func printAuditOutputs(w io.Writer, outputs []auditOutput, showRaw bool) {
	rows := make([][]string, 0, len(outputs))
	for _, out := range outputs {
		if out.Report == nil {
			rows = append(rows, []string{out.Document, "-", "-", "-", "-", "error: " + out.Error})
			continue
		}
		modelGrade := "-"
		if out.Report.ModelGrade != nil {
			modelGrade = out.Report.ModelGrade.String()
		}
		note := ""
		switch {
		case out.Error != "":
			note = "error: " + out.Error
		case out.Report.ExtractionFailed:
			note = "response not parsed"
		case len(out.Report.Warnings) > 0:
			note = out.Report.Warnings[0]
		}
		rows = append(rows, []string{
			out.Document,
			out.Grade,
			modelGrade,
			strconv.Itoa(len(out.Report.Violations)),
			strconv.Itoa(out.Unresolved),
			note,
		})
	}
	fmt.Fprintln(w, renderTable(w,
		[]string{"Document", "Grade", "Model", "Violations", "Open", "Notes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))

	for _, out := range outputs {
		if out.Report == nil {
			continue
		}
		if len(out.Checklist) > 0 {
			fmt.Fprintf(w, "\n%s\n", out.Document)
			printChecklist(w, out.Checklist)
		}
		for _, path := range out.Exports {
			fmt.Fprintf(w, "Wrote %s\n", path)
		}
		if showRaw {
			fmt.Fprintf(w, "\nRaw response for %s:\n%s\n", out.Document, out.Report.RawResponse)
		}
	}
}

func printChecklist(w io.Writer, checklist []verification.Entry) {
	rows := make([][]string, 0, len(checklist))
	for _, entry := range checklist {
		mark := "[ ]"
		if entry.Resolved {
			mark = "[x]"
		}
		rows = append(rows, []string{mark, entry.Key, entry.Violation.Label(), entry.Violation.SuggestedCorrection})
	}
	fmt.Fprintln(w, renderTable(w, []string{"", "Key", "Violation", "Suggested correction"}, rows, nil))
}
