package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newFanoutHandler(infoHandler, debugHandler)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled for debug")
	}
	slog.New(h).Debug("row dropped", slog.String(FieldStage, "normalize"))

	if infoBuf.Len() != 0 {
		t.Fatal("info handler should not receive debug records")
	}
	if !bytes.Contains(debugBuf.Bytes(), []byte(`"stage":"normalize"`)) {
		t.Fatalf("debug handler missing record: %s", debugBuf.String())
	}
}

func TestTeeLoggerCarriesAttrsAndGroups(t *testing.T) {
	var baseBuf, teeBuf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&baseBuf, nil))
	logger := TeeLogger(base, slog.NewJSONHandler(&teeBuf, nil)).
		With(slog.String(FieldDocumentID, "ledger.xlsx")).
		WithGroup("grade")

	logger.Info("audit graded", slog.String("letter", "B"))

	for name, buf := range map[string]*bytes.Buffer{"base": &baseBuf, "tee": &teeBuf} {
		if !bytes.Contains(buf.Bytes(), []byte(`"document_id":"ledger.xlsx"`)) {
			t.Errorf("%s output missing document id: %s", name, buf.String())
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"grade":{"letter":"B"}`)) {
			t.Errorf("%s output missing group: %s", name, buf.String())
		}
	}
}

func TestTeeLoggerNilBase(t *testing.T) {
	var teeBuf bytes.Buffer
	TeeLogger(nil, slog.NewJSONHandler(&teeBuf, nil)).Info("no base")
	if teeBuf.Len() == 0 {
		t.Fatal("expected output in tee buffer")
	}
}

type failingHandler struct{ err error }

func (failingHandler) Enabled(context.Context, slog.Level) bool    { return true }
func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h failingHandler) WithGroup(string) slog.Handler             { return h }

func TestFanoutHandlerKeepsWritingAfterSinkFailure(t *testing.T) {
	diskFull := errors.New("disk full")
	var buf bytes.Buffer
	h := newFanoutHandler(failingHandler{err: diskFull}, slog.NewJSONHandler(&buf, nil))

	record := slog.NewRecord(time.Now(), slog.LevelInfo, "audit finished", 0)
	if err := h.Handle(context.Background(), record); !errors.Is(err, diskFull) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("audit finished")) {
		t.Fatalf("second sink missing record: %s", buf.String())
	}
}
