package extract

import (
	"fmt"

	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/prompt"
)

// Violation is one finding reported by the model. Values are not modified
// after extraction.
type Violation struct {
	Summary             string `json:"summary"`
	Location            string `json:"location"`
	SuggestedCorrection string `json:"suggested_correction"`
}

// Label renders the violation for checklists: "location - summary" when a
// location is known.
func (v Violation) Label() string {
	if v.Location == "" {
		return v.Summary
	}
	return v.Location + " - " + v.Summary
}

// Result is what an extractor recovered from one model response.
type Result struct {
	Grade         *grading.Grade `json:"grade,omitempty"`
	Violations    []Violation    `json:"violations"`
	DeclaredTotal *int           `json:"declared_total,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// checkTotal warns when the declared total disagrees with the list.
func (r *Result) checkTotal() {
	if r.DeclaredTotal != nil && *r.DeclaredTotal != len(r.Violations) {
		r.warnf("model declared %d violations but %d were listed", *r.DeclaredTotal, len(r.Violations))
	}
}

// Options tune extraction.
type Options struct {
	// SectionOnly limits the loose scan to the "GAAP Violations" section.
	SectionOnly bool
}

// Extractor turns a raw model response into a Result. Implementations are
// pure: the same input always yields the same output.
type Extractor interface {
	Mode() prompt.Mode
	Extract(raw string) (Result, error)
}

// New returns the extractor matching the prompt mode.
func New(mode prompt.Mode, opts Options) Extractor {
	if mode == prompt.Strict {
		return strictExtractor{}
	}
	return looseExtractor{sectionOnly: opts.SectionOnly}
}
