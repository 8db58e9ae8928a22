package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/extract"
	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/textutil"
	"github.com/dharter89/GAAP/internal/verification"
)

// Summary is the reviewed state of one document, ready for export.
type Summary struct {
	DocumentID    string
	StatementType string
	Model         string
	Grade         grading.Grade
	ModelGrade    *grading.Grade
	Checklist     []verification.Entry
	Warnings      []string
	GeneratedAt   time.Time
}

// Outstanding returns the unresolved violations in checklist order.
func (s Summary) Outstanding() []extract.Violation {
	out := make([]extract.Violation, 0, len(s.Checklist))
	for _, entry := range s.Checklist {
		if !entry.Resolved {
			out = append(out, entry.Violation)
		}
	}
	return out
}

// Title is the export title, "<document> GAAP Audit".
func Title(documentID string) string {
	return textutil.DocumentStem(documentID) + " GAAP Audit"
}

// FileName is the PDF download name, "<document>_GAAP_Audit.pdf".
func FileName(documentID string) string {
	return textutil.DocumentStem(documentID) + "_GAAP_Audit.pdf"
}

// Text renders the plain report body used in the PDF.
func Text(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GAAP Audit Report: %s\n\n", s.DocumentID)
	b.WriteString("Outstanding Violations:\n")
	outstanding := s.Outstanding()
	if len(outstanding) == 0 {
		b.WriteString("- None\n")
	}
	for _, v := range outstanding {
		fmt.Fprintf(&b, "- %s\n", v.Label())
	}
	fmt.Fprintf(&b, "\nFinal Grade: %s", s.Grade)
	return b.String()
}

// Markdown renders the full review: grades, checklist and warnings.
func Markdown(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title(s.DocumentID))
	if s.StatementType != "" {
		fmt.Fprintf(&b, "- Statement: %s\n", s.StatementType)
	}
	if s.Model != "" {
		fmt.Fprintf(&b, "- Model: %s\n", s.Model)
	}
	outstanding := len(s.Outstanding())
	fmt.Fprintf(&b, "- Grade: **%s** (%d unresolved of %d)\n", s.Grade, outstanding, len(s.Checklist))
	if s.ModelGrade != nil {
		fmt.Fprintf(&b, "- Model-declared grade: %s\n", *s.ModelGrade)
	}
	if !s.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "- Generated: %s\n", s.GeneratedAt.UTC().Format(time.RFC3339))
	}

	b.WriteString("\n## GAAP Violations\n\n")
	if len(s.Checklist) == 0 {
		b.WriteString("No violations detected.\n")
	}
	for _, entry := range s.Checklist {
		mark := " "
		if entry.Resolved {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] **%s**\n", mark, escapeInline(entry.Violation.Summary))
		if entry.Violation.Location != "" {
			fmt.Fprintf(&b, "  - Location: %s\n", escapeInline(entry.Violation.Location))
		}
		if entry.Violation.SuggestedCorrection != "" {
			fmt.Fprintf(&b, "  - Correction: %s\n", escapeInline(entry.Violation.SuggestedCorrection))
		}
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "- %s\n", escapeInline(w))
		}
	}
	return b.String()
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", `\<`, "\n", " ",
)

func escapeInline(s string) string {
	return inlineEscaper.Replace(strings.TrimSpace(s))
}

// Checklister is the ledger view used to build a Summary;
// verification.Ledger satisfies it.
type Checklister interface {
	Checklist(documentID string, violations []extract.Violation) []verification.Entry
}

// FromAudit builds a Summary from an audit run and the reviewer decisions
// recorded for it. The grade counts unresolved violations.
func FromAudit(r *audit.Report, ledger Checklister, now time.Time) Summary {
	checklist := ledger.Checklist(r.DocumentID, r.Violations)
	unresolved := 0
	for _, entry := range checklist {
		if !entry.Resolved {
			unresolved++
		}
	}
	return Summary{
		DocumentID:    r.DocumentID,
		StatementType: r.StatementType,
		Model:         r.Model,
		Grade:         grading.FromUnresolved(unresolved),
		ModelGrade:    r.ModelGrade,
		Checklist:     checklist,
		Warnings:      r.Warnings,
		GeneratedAt:   now,
	}
}
