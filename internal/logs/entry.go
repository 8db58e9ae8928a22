package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dharter89/GAAP/internal/logging"
)

// Entry is one decoded line of the JSON log. Lines that are not JSON keep
// only Message and Raw.
type Entry struct {
	Time          string         `json:"ts,omitempty"`
	Level         string         `json:"level,omitempty"`
	Message       string         `json:"msg"`
	Component     string         `json:"component,omitempty"`
	DocumentID    string         `json:"document_id,omitempty"`
	RunID         string         `json:"run_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	Raw           string         `json:"-"`
}

var reservedKeys = map[string]bool{
	"ts":                       true,
	"level":                    true,
	"msg":                      true,
	logging.FieldComponent:     true,
	logging.FieldDocumentID:    true,
	logging.FieldRunID:         true,
	logging.FieldCorrelationID: true,
}

// ParseEntry decodes a log line.
func ParseEntry(line string) Entry {
	entry := Entry{Raw: line}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil || fields == nil {
		entry.Message = line
		return entry
	}
	entry.Time = stringField(fields, "ts")
	entry.Level = stringField(fields, "level")
	entry.Message = stringField(fields, "msg")
	entry.Component = stringField(fields, logging.FieldComponent)
	entry.DocumentID = stringField(fields, logging.FieldDocumentID)
	entry.RunID = stringField(fields, logging.FieldRunID)
	entry.CorrelationID = stringField(fields, logging.FieldCorrelationID)
	for key := range reservedKeys {
		delete(fields, key)
	}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	return entry
}

func stringField(fields map[string]any, key string) string {
	value, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return value
}

// Format renders the entry as a single console line.
func (e Entry) Format() string {
	if e.Time == "" && e.Level == "" {
		return e.Raw
	}
	var b strings.Builder
	b.WriteString(e.Time)
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(e.Level))
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)
	if e.DocumentID != "" {
		fmt.Fprintf(&b, " %s=%q", logging.FieldDocumentID, e.DocumentID)
	}
	if e.RunID != "" {
		fmt.Fprintf(&b, " %s=%s", logging.FieldRunID, e.RunID)
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Fields[key])
	}
	return b.String()
}

// Filter selects log entries. Zero fields match everything.
type Filter struct {
	DocumentID    string
	RunID         string
	CorrelationID string
	Component     string
	// Level is the minimum level name (debug, info, warn, error).
	Level  string
	Search string
}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// Match reports whether e passes the filter. Non-JSON lines only pass an
// empty filter or a Search hit.
func (f Filter) Match(e Entry) bool {
	if f.DocumentID != "" && e.DocumentID != f.DocumentID {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.CorrelationID != "" && e.CorrelationID != f.CorrelationID {
		return false
	}
	if f.Component != "" && !strings.EqualFold(e.Component, f.Component) {
		return false
	}
	if f.Level != "" {
		min, ok := parseLevel(f.Level)
		if ok {
			level, known := parseLevel(e.Level)
			if !known || level < min {
				return false
			}
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Raw), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

func parseLevel(value string) (slog.Level, bool) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return 0, false
	}
	return level, true
}
