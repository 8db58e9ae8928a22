package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dharter89/GAAP/internal/logs"
)

const sampleLog = `{"ts":"2026-01-05T10:00:00Z","level":"info","msg":"audit started","component":"audit","document_id":"jan.xlsx","run_id":"r1"}
{"ts":"2026-01-05T10:00:01Z","level":"debug","msg":"prompt built","component":"audit","document_id":"jan.xlsx","rows":12}
{"ts":"2026-01-05T10:00:02Z","level":"warn","msg":"declared total differs","component":"audit","document_id":"feb.xlsx"}
plain text line
{"ts":"2026-01-05T10:00:03Z","level":"error","msg":"model request failed","component":"llm","document_id":"jan.xlsx"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gaapcheck.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func messages(entries []logs.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestTailLastEntries(t *testing.T) {
	path := writeLog(t, sampleLog)

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	got := messages(result.Entries)
	if len(got) != 2 || got[0] != "plain text line" || got[1] != "model request failed" {
		t.Fatalf("unexpected entries: %#v", got)
	}
	if result.Offset != int64(len(sampleLog)) {
		t.Fatalf("offset = %d, want %d", result.Offset, len(sampleLog))
	}
}

func TestTailFiltersByDocumentAndLevel(t *testing.T) {
	path := writeLog(t, sampleLog)

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{
		Offset: -1,
		Limit:  10,
		Filter: logs.Filter{DocumentID: "jan.xlsx", Level: "info"},
	})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	got := messages(result.Entries)
	if len(got) != 2 || got[0] != "audit started" || got[1] != "model request failed" {
		t.Fatalf("unexpected entries: %#v", got)
	}

	result, err = logs.Tail(context.Background(), path, logs.TailOptions{
		Offset: 0,
		Filter: logs.Filter{Component: "LLM"},
	})
	if err != nil {
		t.Fatalf("tail from start: %v", err)
	}
	if got := messages(result.Entries); len(got) != 1 || got[0] != "model request failed" {
		t.Fatalf("unexpected component entries: %#v", got)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Entries) != 0 || result.Offset != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestTailLeavesPartialLine(t *testing.T) {
	path := writeLog(t, "first\nsecond-partial")
	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if got := messages(result.Entries); len(got) != 1 || got[0] != "first" {
		t.Fatalf("unexpected entries: %#v", got)
	}
	if result.Offset != int64(len("first\n")) {
		t.Fatalf("offset = %d", result.Offset)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := writeLog(t, "start\n")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(result.Entries) != 1 {
		t.Fatalf("expected initial entry, got %#v", result.Entries)
	}

	done := make(chan struct{})
	go func(offset int64) {
		defer close(done)
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		if err != nil {
			t.Errorf("follow tail error: %v", err)
		}
		if got := messages(res.Entries); len(got) != 1 || got[0] != "later" {
			t.Errorf("unexpected follow entries: %#v", got)
		}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}

func TestEntryFormat(t *testing.T) {
	entry := logs.ParseEntry(`{"ts":"2026-01-05T10:00:00Z","level":"warn","msg":"vendor conflict","component":"vendormemory","document_id":"jan.xlsx","vendor":"acme"}`)
	want := `2026-01-05T10:00:00Z WARN [vendormemory] vendor conflict document_id="jan.xlsx" vendor=acme`
	if got := entry.Format(); got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
	if plain := logs.ParseEntry("not json"); plain.Format() != "not json" {
		t.Fatalf("plain line format = %q", plain.Format())
	}
}
