package prompt

import (
	"fmt"
	"strings"

	"github.com/dharter89/GAAP/internal/table"
)

// Mode selects the output contract requested from the model.
type Mode string

const (
	// Loose asks for "Violation:" lines and a trailing total and grade.
	Loose Mode = "loose"
	// Strict asks for a single JSON object.
	Strict Mode = "strict"
)

// DefaultStatementType is used when the caller names none.
const DefaultStatementType = "General Ledger"

// SystemPrompt is the system message sent by chat-style providers.
const SystemPrompt = "You are the world's most meticulous CPA and GAAP auditor. " +
	"Follow the output format in the user's instructions exactly."

// ParseMode parses "loose" or "strict", ignoring case. Blank means Loose.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Loose):
		return Loose, nil
	case string(Strict):
		return Strict, nil
	default:
		return "", fmt.Errorf("unknown audit format %q (want loose or strict)", s)
	}
}

func (m Mode) String() string { return string(m) }

// Build renders the audit prompt for t. The output depends only on its
// arguments.
func Build(t table.Table, statementType string, mode Mode) string {
	statementType = strings.TrimSpace(statementType)
	if statementType == "" {
		statementType = DefaultStatementType
	}

	var b strings.Builder
	b.WriteString("You are the world's most meticulous CPA and GAAP auditor.\n\n")
	fmt.Fprintf(&b, "Below is a sample %s in Markdown table form:\n\n", statementType)
	b.WriteString(MarkdownTable(t))
	b.WriteString("\n--\n")
	b.WriteString("**Audit Instructions**\n")
	b.WriteString("1. Review **every** row for classification, disclosure, or GAAP deviations.\n")
	b.WriteString("2. Do **not** omit or truncate any violation; list **all** of them, even if there are many.\n")

	if mode == Strict {
		b.WriteString("3. Respond with a single JSON object and nothing else, using this schema:\n\n")
		b.WriteString(strictSchema)
		b.WriteString("\n`total_violations` must equal the number of entries in `violations`.\n")
		b.WriteString("If there are no violations return an empty `violations` array.\n")
		return b.String()
	}

	b.WriteString("3. List findings under a `## GAAP Violations` heading.\n")
	b.WriteString("4. Begin each finding on its own line with `Violation:` and a one-sentence summary. ")
	b.WriteString("Optionally follow it with indented lines:\n")
	b.WriteString("   - `Reason:` why it departs from GAAP\n")
	b.WriteString("   - `Suggested Fix:` the correcting entry or disclosure\n")
	b.WriteString("   - `Example:` the affected row\n")
	b.WriteString("   - `ASC Reference:` the codification topic\n")
	b.WriteString("5. When you are done, add a line that reads exactly `Total violations found: X` ")
	b.WriteString("where X is the count of violations you listed.\n")
	b.WriteString("6. Finish with a line `Compliance Grade: <A-F>`.\n")
	return b.String()
}

const strictSchema = "```json\n" + `{
  "compliance_grade": "A|B|C|D|F",
  "total_violations": 0,
  "violations": [
    {
      "summary": "...",
      "location": "...",
      "suggested_correction": "..."
    }
  ]
}` + "\n```\n"

// MarkdownTable renders t as a GitHub-flavoured pipe table. Pipes and line
// breaks inside cells are escaped so every row stays on one line.
func MarkdownTable(t table.Table) string {
	var b strings.Builder
	writeRow(&b, t.Columns)
	seps := make([]string, len(t.Columns))
	for i := range seps {
		seps[i] = "---"
	}
	writeRow(&b, seps)
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			cells[i] = row.At(i).String()
		}
		writeRow(&b, cells)
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, cell := range cells {
		b.WriteString(" ")
		b.WriteString(cellEscaper.Replace(cell))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
