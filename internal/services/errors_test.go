package services_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dharter89/GAAP/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrRemoteService, "audit", "complete", "llm call failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrRemoteService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"audit", "complete", "llm call failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	cases := map[string]error{
		"malformed_input":    services.Wrap(services.ErrMalformedInput, "sheet", "read", "bad zip", nil),
		"extraction_failure": services.Wrap(services.ErrExtraction, "extract", "strict", "", nil),
		"remote_service":     services.Wrap(services.ErrRemoteService, "audit", "", "", nil),
		"persistence":        services.Wrap(services.ErrPersistence, "ledger", "save", "", nil),
		"internal":           errors.New("plain"),
		"":                   nil,
	}
	for want, err := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestRecoverable(t *testing.T) {
	if !services.Recoverable(services.Wrap(services.ErrPersistence, "ledger", "save", "", nil)) {
		t.Fatal("expected persistence errors to be recoverable")
	}
	if services.Recoverable(errors.New("plain")) {
		t.Fatal("expected unclassified errors to be unrecoverable")
	}
}
