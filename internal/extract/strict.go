package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dharter89/GAAP/internal/prompt"
)

var (
	openFence  = regexp.MustCompile("(?i)^\\s*```(?:json)?\\s*")
	closeFence = regexp.MustCompile("\\s*```\\s*$")
)

type strictExtractor struct{}

func (strictExtractor) Mode() prompt.Mode { return prompt.Strict }

type strictPayload struct {
	Grade      *string            `json:"compliance_grade"`
	Total      json.RawMessage    `json:"total_violations"`
	Violations *[]strictViolation `json:"violations"`
}

// strictViolation accepts either an object or a bare summary string.
type strictViolation Violation

func (v *strictViolation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = strictViolation{Summary: s}
		return nil
	}
	var obj Violation
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*v = strictViolation(obj)
	return nil
}

func (e strictExtractor) Extract(raw string) (Result, error) {
	text := closeFence.ReplaceAllString(openFence.ReplaceAllString(raw, ""), "")
	if strings.TrimSpace(text) == "" {
		return Result{}, &Error{Mode: prompt.Strict, Reason: "empty response"}
	}

	var payload strictPayload
	if err := decodeObject(text, &payload); err != nil {
		return Result{}, err
	}
	// An object without the list is some other reply, such as an API error
	// or a bare finding, not an empty audit.
	if payload.Violations == nil {
		return Result{}, &Error{Mode: prompt.Strict, Reason: "response has no violations list"}
	}

	res := Result{Violations: make([]Violation, 0, len(*payload.Violations))}
	for _, v := range *payload.Violations {
		v.Summary = strings.TrimSpace(v.Summary)
		v.Location = strings.TrimSpace(v.Location)
		v.SuggestedCorrection = strings.TrimSpace(v.SuggestedCorrection)
		if v.Summary == "" && v.Location == "" && v.SuggestedCorrection == "" {
			res.warnf("skipped empty violation entry")
			continue
		}
		res.Violations = append(res.Violations, Violation(v))
	}
	if payload.Grade != nil && strings.TrimSpace(*payload.Grade) != "" {
		res.setGrade(*payload.Grade)
	}
	if total, ok, err := parseTotal(payload.Total); err != nil {
		res.warnf("ignored total_violations: %v", err)
	} else if ok {
		res.DeclaredTotal = &total
	}
	res.checkTotal()
	return res, nil
}

// decodeObject decodes the first top-level JSON object in text, falling back
// to the span from the first '{' to the last '}'.
func decodeObject(text string, v any) error {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return &Error{Mode: prompt.Strict, Reason: "no JSON object found"}
	}
	candidates := make([]string, 0, 2)
	if end := balancedEnd(text, start); end > 0 {
		candidates = append(candidates, text[start:end])
	}
	if last := strings.LastIndexByte(text, '}'); last > start {
		greedy := text[start : last+1]
		if len(candidates) == 0 || candidates[0] != greedy {
			candidates = append(candidates, greedy)
		}
	}
	if len(candidates) == 0 {
		return &Error{Mode: prompt.Strict, Reason: "unterminated JSON object"}
	}
	var firstErr error
	for _, candidate := range candidates {
		err := json.Unmarshal([]byte(candidate), v)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return &Error{Mode: prompt.Strict, Reason: "invalid JSON", Err: firstErr}
}

// balancedEnd returns the index just past the object starting at start, or
// -1 when braces never balance. Braces inside JSON strings are ignored.
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// parseTotal accepts a JSON number or a numeric string.
func parseTotal(raw json.RawMessage) (int, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false, nil
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if num < 0 || num != math.Trunc(num) {
			return 0, false, errors.New("not a whole count: " + string(raw))
		}
		return int(num), true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false, errors.New("unexpected value " + string(raw))
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false, errors.New("not a count: " + strconv.Quote(s))
	}
	return n, true, nil
}

type strictDocument struct {
	Grade      string      `json:"compliance_grade"`
	Total      int         `json:"total_violations"`
	Violations []Violation `json:"violations"`
}

// MarshalStrict renders r in the strict response schema. The total is the
// length of the violation list.
func MarshalStrict(r Result) ([]byte, error) {
	doc := strictDocument{Total: len(r.Violations), Violations: r.Violations}
	if doc.Violations == nil {
		doc.Violations = []Violation{}
	}
	if r.Grade != nil {
		doc.Grade = r.Grade.String()
	}
	return json.MarshalIndent(doc, "", "  ")
}
