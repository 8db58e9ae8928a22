package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/dharter89/GAAP/internal/services"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, record)
	}
	return out
}

func TestJSONHandlerPromotesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false)).With(slog.String(FieldComponent, "audit"))

	ctx := services.WithDocumentID(context.Background(), "jan.xlsx")
	ctx = services.WithRunID(ctx, "run-1")
	logger.InfoContext(ctx, "audit finished")

	record := decodeLines(t, &buf)[0]
	if record["ts"] == nil || record["level"] != "info" || record["msg"] != "audit finished" {
		t.Fatalf("unexpected envelope %v", record)
	}
	if record[FieldDocumentID] != "jan.xlsx" || record[FieldRunID] != "run-1" || record[FieldComponent] != "audit" {
		t.Fatalf("expected promoted ids, got %v", record)
	}
}

func TestJSONHandlerDoesNotDuplicateBoundIDs(t *testing.T) {
	var buf bytes.Buffer
	handler := newJSONHandler(&buf, new(slog.LevelVar), false)
	ctx := services.WithDocumentID(context.Background(), "feb.csv")

	slog.New(handler).With(slog.String(FieldDocumentID, "feb.csv")).InfoContext(ctx, "bound")
	slog.New(handler).InfoContext(ctx, "explicit", slog.String(FieldDocumentID, "feb.csv"))
	slog.New(handler).WithGroup("grade").InfoContext(ctx, "grouped", slog.String("letter", "B"))

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if n := strings.Count(line, `"document_id"`); n > 1 {
			t.Fatalf("document_id written %d times: %s", n, line)
		}
	}
	records := decodeLines(t, &buf)
	if _, ok := records[2][FieldDocumentID]; ok {
		t.Fatalf("grouped record should not gain ids: %v", records[2])
	}
}

func TestJSONHandlerDropsBlankIDs(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newJSONHandler(&buf, new(slog.LevelVar), false)).Info("upload", slog.String(FieldDocumentID, " "))
	if _, ok := decodeLines(t, &buf)[0][FieldDocumentID]; ok {
		t.Fatalf("blank document_id should be dropped: %s", buf.String())
	}
}

func TestWarnWithContextAddsErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	err := services.Wrap(services.ErrPersistence, "verification", "save ledger", "verified_issues.json", nil)

	WarnWithContext(logger, "ledger not saved", "persistence_failed", Error(err))
	ErrorWithContext(logger, "upload failed", "upload_failed", Error(err), String(FieldErrorKind, "custom"))

	records := decodeLines(t, &buf)
	if records[0][FieldErrorKind] != "persistence" {
		t.Fatalf("expected derived error_kind, got %v", records[0])
	}
	if records[1][FieldErrorKind] != "custom" {
		t.Fatalf("caller error_kind should win, got %v", records[1])
	}
}
