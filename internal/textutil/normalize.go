package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC, drops control characters, and collapses runs of
// whitespace to single spaces.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// FoldKey returns a comparison key: Normalize plus Unicode case folding.
// "ACME  Corp." and "acme corp." share a key. A Caser is stateful, so one is
// built per call.
func FoldKey(s string) string {
	normalized := Normalize(s)
	if normalized == "" {
		return ""
	}
	return cases.Fold().String(normalized)
}

// UniqueFolded returns the distinct normalized values of in, keeping first
// occurrence order and comparing by FoldKey. Blank values are skipped.
func UniqueFolded(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, value := range in {
		clean := Normalize(value)
		key := FoldKey(clean)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, clean)
	}
	return out
}
