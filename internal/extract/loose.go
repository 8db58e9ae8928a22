package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/prompt"
)

var (
	violationLine = regexp.MustCompile(`(?i)^violation(?:\s*#?\d+)?\s*:(.*)$`)
	gradeLine     = regexp.MustCompile(`(?i)^(?:compliance\s+)?grade\s*:(.*)$`)
	totalLine     = regexp.MustCompile(`(?i)^total\s+violations(?:\s+found)?\s*:[\s*_]*(\d+)`)
	ordinalPrefix = regexp.MustCompile(`^\d+[.)]\s+`)
)

type looseExtractor struct {
	sectionOnly bool
}

func (looseExtractor) Mode() prompt.Mode { return prompt.Loose }

func (e looseExtractor) Extract(raw string) (Result, error) {
	res := Result{Violations: []Violation{}}
	inSection := !e.sectionOnly
	sawSection := false

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if e.sectionOnly && strings.HasPrefix(trimmed, "#") {
			inSection = strings.Contains(strings.ToLower(trimmed), "gaap violations")
			sawSection = sawSection || inSection
			continue
		}
		text := stripMarkers(trimmed)
		if text == "" {
			continue
		}

		if m := totalLine.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				res.DeclaredTotal = &n
			}
			continue
		}
		if m := gradeLine.FindStringSubmatch(text); m != nil {
			res.setGrade(m[1])
			continue
		}
		if !inSection {
			continue
		}
		if m := violationLine.FindStringSubmatch(text); m != nil {
			summary := cleanValue(m[1])
			if summary == "" {
				continue
			}
			res.Violations = append(res.Violations, Violation{Summary: summary})
		}
	}

	if e.sectionOnly && !sawSection {
		res.warnf("no GAAP Violations section found in response")
	}
	res.checkTotal()
	return res, nil
}

// setGrade records the first token of value as the model's grade. A later
// grade line replaces an earlier one.
func (r *Result) setGrade(value string) {
	value = cleanValue(value)
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return
	}
	g, ok := grading.Parse(fields[0])
	if !ok {
		r.warnf("ignored invalid grade %q", value)
		return
	}
	r.Grade = &g
}

// stripMarkers removes leading list, quote and emphasis markup.
func stripMarkers(s string) string {
	for {
		before := s
		for _, bullet := range []string{"- ", "+ ", "• "} {
			s = strings.TrimPrefix(s, bullet)
		}
		s = ordinalPrefix.ReplaceAllString(s, "")
		s = strings.TrimLeft(s, "*_>` \t")
		if s == before {
			return s
		}
	}
}

func cleanValue(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*_`"))
}
