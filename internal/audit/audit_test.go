package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dharter89/GAAP/internal/extract"
	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/kvstore"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/notifications"
	"github.com/dharter89/GAAP/internal/prompt"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/table"
	"github.com/dharter89/GAAP/internal/verification"
)

type fakeLLM struct {
	text     string
	err      error
	calls    int
	jsonMode bool
	prompt   string
}

func (f *fakeLLM) Name() string { return "fake:model" }

func (f *fakeLLM) Complete(_ context.Context, _, user string) (string, error) {
	f.calls++
	f.prompt = user
	return f.text, f.err
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, system, user string) (string, error) {
	f.jsonMode = true
	return f.Complete(ctx, system, user)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func checkingTable() table.RawTable {
	return table.RawTable{Rows: [][]string{
		{"Account", "Debit", "Credit"},
		{"Checking", "1,000", ""},
		{"Total", "1000", "1000"},
	}}
}

func newTestService(client LLM, mode prompt.Mode, opts ...Option) *Service {
	base := []Option{
		WithIDGenerator(func() string { return "run-1" }),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	}
	return NewService(client, Options{Mode: mode, Normalize: table.DefaultOptions()}, logging.NewNop(), append(base, opts...)...)
}

func TestRunStrictEndToEnd(t *testing.T) {
	client := &fakeLLM{text: "```json\n" + `{"compliance_grade":"B","total_violations":2,"violations":[
		{"summary":"Cash not reconciled","location":"Checking","suggested_correction":"Reconcile"},
		{"summary":"Missing credit entry","location":"Checking","suggested_correction":"Post credit"}]}` + "\n```"}
	notifier := &recordingNotifier{}
	svc := newTestService(client, prompt.Strict, WithNotifier(notifier))

	report, err := svc.Run(context.Background(), "gl.xlsx", checkingTable())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !client.jsonMode {
		t.Fatal("strict mode should request JSON output")
	}
	if !strings.Contains(client.prompt, "| Checking | 1000 |  |") {
		t.Fatalf("prompt missing normalized row:\n%s", client.prompt)
	}
	if strings.Contains(client.prompt, "| Total |") {
		t.Fatal("total rows must be filtered before prompting")
	}
	if report.RunID != "run-1" || report.DocumentID != "gl.xlsx" || report.Model != "fake:model" {
		t.Fatalf("unexpected identity fields %+v", report)
	}
	if report.StatementType != prompt.DefaultStatementType {
		t.Fatalf("expected default statement type, got %q", report.StatementType)
	}
	if report.Rows != 1 || report.Truncated {
		t.Fatalf("unexpected row bookkeeping %+v", report)
	}
	if report.Grade != grading.B || report.ModelGrade == nil || *report.ModelGrade != grading.B {
		t.Fatalf("unexpected grades %v %v", report.Grade, report.ModelGrade)
	}
	if len(report.Violations) != 2 || report.ExtractionFailed {
		t.Fatalf("unexpected violations %+v", report.Violations)
	}
	if report.RawResponse != client.text {
		t.Fatal("raw response must be retained")
	}
	if diff := cmp.Diff([]notifications.Event{notifications.EventAuditCompleted}, notifier.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunLooseMode(t *testing.T) {
	client := &fakeLLM{text: "## GAAP Violations\nViolation: one\nViolation: two\nViolation: three\nTotal violations found: 3\nCompliance Grade: C"}
	report, err := newTestService(client, prompt.Loose).Run(context.Background(), "gl.xlsx", checkingTable())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if client.jsonMode {
		t.Fatal("loose mode should not request JSON")
	}
	if report.Grade != grading.C || len(report.Violations) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunExtractionFailureIsNotAnError(t *testing.T) {
	client := &fakeLLM{text: "I could not audit this file."}
	report, err := newTestService(client, prompt.Strict).Run(context.Background(), "gl.xlsx", checkingTable())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !report.ExtractionFailed {
		t.Fatal("expected extraction failure flag")
	}
	if report.Violations == nil || len(report.Violations) != 0 || report.Grade != grading.A {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.RawResponse != client.text || len(report.Warnings) == 0 {
		t.Fatalf("expected raw response and warning, got %+v", report)
	}
}

func TestRunMalformedInput(t *testing.T) {
	client := &fakeLLM{}
	_, err := newTestService(client, prompt.Strict).Run(context.Background(), "empty.csv", table.RawTable{})
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("model must not be called for malformed input")
	}
}

func TestRunModelFailures(t *testing.T) {
	notifier := &recordingNotifier{}
	client := &fakeLLM{err: errors.New("llm complete: failed after 2 attempts: 503")}
	_, err := newTestService(client, prompt.Strict, WithNotifier(notifier)).Run(context.Background(), "gl.xlsx", checkingTable())
	if !errors.Is(err, services.ErrRemoteService) {
		t.Fatalf("expected remote service error, got %v", err)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventError {
		t.Fatalf("expected error notification, got %v", notifier.events)
	}

	timeout := &fakeLLM{err: context.DeadlineExceeded}
	_, err = newTestService(timeout, prompt.Strict).Run(context.Background(), "gl.xlsx", checkingTable())
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestRunWithoutClient(t *testing.T) {
	_, err := NewService(nil, Options{}, nil).Run(context.Background(), "gl.xlsx", checkingTable())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunTruncationWarning(t *testing.T) {
	raw := table.RawTable{Columns: []string{"Account", "Amount"}}
	for i := 0; i < 60; i++ {
		raw.Rows = append(raw.Rows, []string{"Cash", "1"})
	}
	report, err := newTestService(&fakeLLM{text: `{"violations":[]}`}, prompt.Strict).Run(context.Background(), "big.csv", raw)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !report.Truncated || report.Rows != 50 {
		t.Fatalf("expected truncation to 50 rows, got %+v", report)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "first 50 of 60") {
		t.Fatalf("unexpected warnings %v", report.Warnings)
	}
}

func TestRegradeUsesLedger(t *testing.T) {
	ctx := context.Background()
	ledger := verification.New(ctx, kvstore.NewMemory(nil), verification.IdentityIndex, logging.NewNop())
	violations := []extract.Violation{{Summary: "a"}, {Summary: "b"}, {Summary: "c"}}

	grade, n := Regrade(ledger, "gl.xlsx", violations)
	if grade != grading.C || n != 3 {
		t.Fatalf("expected C/3, got %s/%d", grade, n)
	}
	_ = ledger.SetResolved(ctx, "gl.xlsx", "#1", true)
	_ = ledger.SetResolved(ctx, "gl.xlsx", "#2", true)
	grade, n = Regrade(ledger, "gl.xlsx", violations)
	if grade != grading.B || n != 1 {
		t.Fatalf("expected B/1, got %s/%d", grade, n)
	}
}

func TestRunBatch(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newTestService(&fakeLLM{text: `{"violations":[]}`}, prompt.Strict, WithNotifier(notifier))
	outcomes := svc.RunBatch(context.Background(), []Input{
		{DocumentID: "a.xlsx", Raw: checkingTable()},
		{DocumentID: "bad.csv", Raw: table.RawTable{}},
	})
	if len(outcomes) != 2 || outcomes[0].Err != nil || outcomes[0].Report == nil {
		t.Fatalf("unexpected first outcome %+v", outcomes)
	}
	if !errors.Is(outcomes[1].Err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed second outcome, got %v", outcomes[1].Err)
	}
	last := notifier.events[len(notifier.events)-1]
	if last != notifications.EventBatchCompleted {
		t.Fatalf("expected batch completion event, got %v", notifier.events)
	}
}
