package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

// PDF writes the report as a single-column document: a bold 14pt title
// followed by the Text body in 12pt lines.
func PDF(w io.Writer, s Summary) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := Title(s.DocumentID)
	pdf.SetTitle(title, true)
	pdf.SetCreator("gaapcheck", true)
	if !s.GeneratedAt.IsZero() {
		pdf.SetCreationDate(s.GeneratedAt)
		pdf.SetModificationDate(s.GeneratedAt)
	}

	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	for _, line := range strings.Split(Text(s), "\n") {
		pdf.MultiCell(0, 10, tr(line), "", "", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render report pdf: %w", err)
	}
	return nil
}
