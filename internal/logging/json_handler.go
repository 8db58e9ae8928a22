package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// jsonHandler writes the records `gaapcheck logs` reads back. Document, run
// and correlation ids carried by the context are promoted to top-level keys
// so a line can be filtered without the caller having used WithContext.
type jsonHandler struct {
	inner slog.Handler
	// bound holds top-level keys already attached through WithAttrs.
	bound map[string]bool
	// grouped is set once WithGroup is used; promoted ids would otherwise
	// land inside the group.
	grouped bool
}

func newJSONHandler(w io.Writer, lvl slog.Leveler, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	}
	return &jsonHandler{inner: slog.NewJSONHandler(w, &opts), bound: map[string]bool{}}
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Key = "level"
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "msg"
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	case FieldDocumentID, FieldRunID, FieldCorrelationID:
		if strings.TrimSpace(attr.Value.String()) == "" {
			return slog.Attr{}
		}
	}
	return attr
}

func (h *jsonHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *jsonHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.grouped {
		present := make(map[string]bool, record.NumAttrs())
		record.Attrs(func(attr slog.Attr) bool {
			present[attr.Key] = true
			return true
		})
		var extra []slog.Attr
		for _, attr := range ContextFields(ctx) {
			if !h.bound[attr.Key] && !present[attr.Key] {
				extra = append(extra, attr)
			}
		}
		if len(extra) > 0 {
			record = record.Clone()
			record.AddAttrs(extra...)
		}
	}
	return h.inner.Handle(ctx, record)
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &jsonHandler{inner: h.inner.WithAttrs(attrs), bound: h.bound, grouped: h.grouped}
	if !h.grouped {
		clone.bound = make(map[string]bool, len(h.bound)+len(attrs))
		for key := range h.bound {
			clone.bound[key] = true
		}
		for _, attr := range attrs {
			clone.bound[attr.Key] = true
		}
	}
	return clone
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &jsonHandler{inner: h.inner.WithGroup(name), bound: h.bound, grouped: true}
}
