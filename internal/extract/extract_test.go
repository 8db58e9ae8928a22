package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/prompt"
	"github.com/dharter89/GAAP/internal/services"
)

func gradePtr(g grading.Grade) *grading.Grade { return &g }

func TestNewSelectsStrategy(t *testing.T) {
	if New(prompt.Strict, Options{}).Mode() != prompt.Strict {
		t.Fatal("expected strict extractor")
	}
	if New(prompt.Loose, Options{}).Mode() != prompt.Loose {
		t.Fatal("expected loose extractor")
	}
	if New("", Options{}).Mode() != prompt.Loose {
		t.Fatal("expected loose extractor as default")
	}
}

func TestLooseExtract(t *testing.T) {
	raw := strings.Join([]string{
		"Here is my review.",
		"## GAAP Violations",
		"Violation: Revenue recognized before delivery",
		"  Reason: ASC 606 requires transfer of control",
		"- **Violation:** Prepaid rent expensed immediately",
		"1. violation: Missing accrual for utilities",
		"Violation:",
		"Not a violation: this line is ignored",
		"**Total violations found: 3**",
		"Compliance Grade: **C**",
	}, "\n")

	res, err := New(prompt.Loose, Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := []Violation{
		{Summary: "Revenue recognized before delivery"},
		{Summary: "Prepaid rent expensed immediately"},
		{Summary: "Missing accrual for utilities"},
	}
	if diff := cmp.Diff(want, res.Violations); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
	if res.Grade == nil || *res.Grade != grading.C {
		t.Fatalf("expected grade C, got %v", res.Grade)
	}
	if res.DeclaredTotal == nil || *res.DeclaredTotal != 3 {
		t.Fatalf("expected declared total 3, got %v", res.DeclaredTotal)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
}

func TestLooseExtractSectionOnly(t *testing.T) {
	raw := strings.Join([]string{
		"# Summary",
		"Violation: mentioned in the intro",
		"## GAAP Violations",
		"Violation: Inventory valued above cost",
		"## Notes",
		"Violation: repeated in notes",
		"Total violations found: 1",
	}, "\n")

	res, _ := New(prompt.Loose, Options{SectionOnly: true}).Extract(raw)
	if len(res.Violations) != 1 || res.Violations[0].Summary != "Inventory valued above cost" {
		t.Fatalf("unexpected violations %+v", res.Violations)
	}
	if res.DeclaredTotal == nil || *res.DeclaredTotal != 1 {
		t.Fatalf("total outside the section should still be read, got %v", res.DeclaredTotal)
	}

	all, _ := New(prompt.Loose, Options{}).Extract(raw)
	if len(all.Violations) != 3 {
		t.Fatalf("expected 3 violations without section filter, got %d", len(all.Violations))
	}
}

func TestLooseExtractWarnings(t *testing.T) {
	res, err := New(prompt.Loose, Options{SectionOnly: true}).Extract("Violation: x\nGrade: Z\nTotal violations found: 2")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Grade != nil {
		t.Fatalf("invalid grade should be dropped, got %v", *res.Grade)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations outside section, got %+v", res.Violations)
	}
	joined := strings.Join(res.Warnings, "\n")
	for _, want := range []string{"invalid grade", "no GAAP Violations section", "declared 2 violations but 0"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected warning %q in %v", want, res.Warnings)
		}
	}
}

func TestLooseExtractEmpty(t *testing.T) {
	res, err := New(prompt.Loose, Options{}).Extract("")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Violations == nil || len(res.Violations) != 0 || res.Grade != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStrictExtractFencedJSON(t *testing.T) {
	raw := "```json\n" + `{
  "compliance_grade": "B",
  "total_violations": 2,
  "violations": [
    {"summary": "Lease not capitalized", "location": "Row 4 {Rent}", "suggested_correction": "Record ROU asset"},
    "Missing depreciation"
  ]
}` + "\n```"

	res, err := New(prompt.Strict, Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	want := Result{
		Grade: gradePtr(grading.B),
		Violations: []Violation{
			{Summary: "Lease not capitalized", Location: "Row 4 {Rent}", SuggestedCorrection: "Record ROU asset"},
			{Summary: "Missing depreciation"},
		},
		DeclaredTotal: func() *int { n := 2; return &n }(),
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestStrictExtractSurroundingProse(t *testing.T) {
	raw := `Sure! {"compliance_grade":"a","total_violations":"1","violations":[{"summary":"x"}]} Let me know {if} you need more.`
	res, err := New(prompt.Strict, Options{}).Extract(raw)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Grade == nil || *res.Grade != grading.A {
		t.Fatalf("expected grade A, got %v", res.Grade)
	}
	if res.DeclaredTotal == nil || *res.DeclaredTotal != 1 || len(res.Violations) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStrictExtractMalformedIsDistinctFromEmpty(t *testing.T) {
	ext := New(prompt.Strict, Options{})

	empty, err := ext.Extract(`{"compliance_grade":"A","total_violations":0,"violations":[]}`)
	if err != nil {
		t.Fatalf("empty list should parse, got %v", err)
	}
	if len(empty.Violations) != 0 || empty.Violations == nil {
		t.Fatalf("expected empty non-nil list, got %#v", empty.Violations)
	}

	for _, raw := range []string{
		`{"compliance_grade": "A", "violations": [`,
		"no json here",
		"```json\n```",
		`{"violations": "nope"}`,
		`{"violations": null}`,
		`[{"summary":"Lease not capitalized"},{"summary":"Missing accrual"}]`,
		`{"error":{"message":"quota exceeded"}}`,
	} {
		res, err := ext.Extract(raw)
		if err == nil {
			t.Fatalf("expected failure for %q", raw)
		}
		if !errors.Is(err, services.ErrExtraction) {
			t.Fatalf("expected extraction marker for %q, got %v", raw, err)
		}
		var extractErr *Error
		if !errors.As(err, &extractErr) || extractErr.Mode != prompt.Strict {
			t.Fatalf("expected *Error for %q, got %T", raw, err)
		}
		if res.Violations != nil || res.Grade != nil {
			t.Fatalf("expected empty result on failure, got %+v", res)
		}
	}
}

func TestStrictExtractTotalMismatchWarns(t *testing.T) {
	res, err := New(prompt.Strict, Options{}).Extract(`{"compliance_grade":"Q","total_violations":3,"violations":[{"summary":"only one"}]}`)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if res.Grade != nil {
		t.Fatalf("expected invalid grade dropped, got %v", *res.Grade)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected grade and total warnings, got %v", res.Warnings)
	}
}

func TestMarshalStrictRoundTrip(t *testing.T) {
	in := Result{
		Grade:      gradePtr(grading.C),
		Violations: []Violation{{Summary: "a"}, {Summary: "b", Location: "Row 2"}},
	}
	data, err := MarshalStrict(in)
	if err != nil {
		t.Fatalf("MarshalStrict returned error: %v", err)
	}
	out, err := New(prompt.Strict, Options{}).Extract(string(data))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if out.Grade == nil || *out.Grade != grading.C {
		t.Fatalf("expected grade C, got %v", out.Grade)
	}
	if diff := cmp.Diff(in.Violations, out.Violations); diff != "" {
		t.Fatalf("violations mismatch (-want +got):\n%s", diff)
	}
	if out.DeclaredTotal == nil || *out.DeclaredTotal != 2 || len(out.Warnings) != 0 {
		t.Fatalf("unexpected total %v warnings %v", out.DeclaredTotal, out.Warnings)
	}
}

func TestExtractDoesNotMutateInput(t *testing.T) {
	raw := "```json\n{\"violations\":[{\"summary\":\" padded \"}]}\n```"
	copyRaw := raw
	if _, err := New(prompt.Strict, Options{}).Extract(raw); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if raw != copyRaw {
		t.Fatal("input changed")
	}
}

func TestViolationLabel(t *testing.T) {
	if got := (Violation{Summary: "s"}).Label(); got != "s" {
		t.Fatalf("unexpected label %q", got)
	}
	if got := (Violation{Summary: "s", Location: "Row 3"}).Label(); got != "Row 3 - s" {
		t.Fatalf("unexpected label %q", got)
	}
}
