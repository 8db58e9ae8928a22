package prompt

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dharter89/GAAP/internal/table"
)

func sampleTable() table.Table {
	return table.Table{
		Columns: []string{"Account", "Debit", "Memo"},
		Rows: []table.Row{
			{table.TextCell("Checking"), table.NumberCell(decimal.RequireFromString("1200.50")), table.TextCell("a|b")},
			{table.TextCell("Rent"), table.NumberCell(decimal.NewFromInt(-300)), table.Cell{}},
		},
	}
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"": Loose, "LOOSE": Loose, " strict ": Strict}
	for in, want := range cases {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseMode("json"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestMarkdownTable(t *testing.T) {
	got := MarkdownTable(sampleTable())
	want := "| Account | Debit | Memo |\n" +
		"| --- | --- | --- |\n" +
		"| Checking | 1200.5 | a\\|b |\n" +
		"| Rent | -300 |  |\n"
	if got != want {
		t.Fatalf("unexpected markdown:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildLoose(t *testing.T) {
	got := Build(sampleTable(), "", Loose)
	for _, want := range []string{
		"world's most meticulous CPA and GAAP auditor",
		"Below is a sample General Ledger in Markdown table form",
		"| Checking | 1200.5 |",
		"## GAAP Violations",
		"`Violation:`",
		"Total violations found: X",
		"Compliance Grade: <A-F>",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("loose prompt missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "compliance_grade") {
		t.Fatal("loose prompt should not request JSON")
	}
}

func TestBuildStrict(t *testing.T) {
	got := Build(sampleTable(), "Income Statement", Strict)
	for _, want := range []string{
		"Below is a sample Income Statement",
		`"compliance_grade": "A|B|C|D|F"`,
		`"suggested_correction"`,
		"single JSON object",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("strict prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	tbl := sampleTable()
	if Build(tbl, "General Ledger", Strict) != Build(tbl, "General Ledger", Strict) {
		t.Fatal("Build is not deterministic")
	}
}
