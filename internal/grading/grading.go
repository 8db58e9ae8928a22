// Package grading maps unresolved violation counts to letter grades.
package grading

import "strings"

// Grade is a compliance letter grade.
type Grade string

const (
	A Grade = "A"
	B Grade = "B"
	C Grade = "C"
	D Grade = "D"
	F Grade = "F"
)

// All lists the grades from best to worst.
var All = []Grade{A, B, C, D, F}

// FromUnresolved returns the grade for a count of unresolved violations:
// 0 is A, 1-2 B, 3-5 C, 6-8 D, 9 or more F. Negative counts grade as 0.
func FromUnresolved(n int) Grade {
	switch {
	case n <= 0:
		return A
	case n <= 2:
		return B
	case n <= 5:
		return C
	case n <= 8:
		return D
	default:
		return F
	}
}

// Parse accepts a single letter grade, ignoring case and surrounding
// whitespace or punctuation ("b", " C.", "**D**").
func Parse(s string) (Grade, bool) {
	s = strings.Trim(strings.TrimSpace(s), "*_.:`'\" ")
	if len(s) != 1 {
		return "", false
	}
	g := Grade(strings.ToUpper(s))
	switch g {
	case A, B, C, D, F:
		return g, true
	}
	return "", false
}

// Valid reports whether g is one of the five letter grades.
func (g Grade) Valid() bool {
	_, ok := Parse(string(g))
	return ok && string(g) == strings.ToUpper(string(g))
}

func (g Grade) String() string { return string(g) }
