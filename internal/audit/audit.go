package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dharter89/GAAP/internal/extract"
	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/notifications"
	"github.com/dharter89/GAAP/internal/prompt"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/table"
)

// LLM is the model client used for audits. Both the OpenRouter and the
// Gemini clients satisfy it.
type LLM interface {
	Name() string
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options configures a Service.
type Options struct {
	Mode          prompt.Mode
	StatementType string
	Normalize     table.Options
	SectionOnly   bool
}

// Report is the outcome of one audit run.
type Report struct {
	RunID         string              `json:"run_id"`
	DocumentID    string              `json:"document_id"`
	StatementType string              `json:"statement_type"`
	Mode          prompt.Mode         `json:"mode"`
	Model         string              `json:"model"`
	Columns       []string            `json:"columns"`
	Rows          int                 `json:"rows"`
	Truncated     bool                `json:"truncated"`
	Violations    []extract.Violation `json:"violations"`
	// ModelGrade is the grade the model declared, if any. Grade is always
	// computed locally from the violation count.
	ModelGrade       *grading.Grade `json:"model_grade,omitempty"`
	DeclaredTotal    *int           `json:"declared_total,omitempty"`
	Grade            grading.Grade  `json:"grade"`
	ExtractionFailed bool           `json:"extraction_failed"`
	Warnings         []string       `json:"warnings,omitempty"`
	RawResponse      string         `json:"raw_response"`
	StartedAt        time.Time      `json:"started_at"`
	Duration         time.Duration  `json:"duration"`
}

// Service runs the normalize, prompt, model, extract and grade pipeline.
type Service struct {
	llm       LLM
	opts      Options
	extractor extract.Extractor
	notifier  notifications.Service
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier publishes audit completions and failures.
func WithNotifier(n notifications.Service) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService builds an audit service.
func NewService(client LLM, opts Options, logger *slog.Logger, options ...Option) *Service {
	if opts.Mode == "" {
		opts.Mode = prompt.Loose
	}
	if strings.TrimSpace(opts.StatementType) == "" {
		opts.StatementType = prompt.DefaultStatementType
	}
	s := &Service{
		llm:       client,
		opts:      opts,
		extractor: extract.New(opts.Mode, extract.Options{SectionOnly: opts.SectionOnly}),
		notifier:  noopNotifier{},
		logger:    logging.NewComponentLogger(logger, "audit"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Mode reports the configured output contract.
func (s *Service) Mode() prompt.Mode { return s.opts.Mode }

// Normalize applies the configured normalization to raw.
func (s *Service) Normalize(raw table.RawTable) (table.Result, error) {
	return table.Normalize(raw, s.opts.Normalize)
}

// Run normalizes raw and audits it.
func (s *Service) Run(ctx context.Context, documentID string, raw table.RawTable) (*Report, error) {
	ctx = services.WithDocumentID(ctx, documentID)
	normalized, err := s.Normalize(raw)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "normalization failed", "audit_normalize_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check that the sheet has a header row with at least three labelled columns"),
			logging.String(logging.FieldImpact, "document was not audited"))
		return nil, err
	}
	return s.AuditTable(ctx, documentID, normalized, "")
}

// AuditTable audits an already normalized table. A blank statementType uses
// the configured default. Model failures are returned as errors matching
// services.ErrRemoteService or services.ErrTimeout; an unparseable response
// is not an error and sets ExtractionFailed instead.
func (s *Service) AuditTable(ctx context.Context, documentID string, normalized table.Result, statementType string) (*Report, error) {
	if s.llm == nil {
		return nil, services.Wrap(services.ErrConfiguration, "audit", "run", "no model client configured", nil)
	}
	if strings.TrimSpace(statementType) == "" {
		statementType = s.opts.StatementType
	}
	runID := s.newID()
	ctx = services.WithRunID(services.WithDocumentID(ctx, documentID), runID)
	logger := logging.WithContext(ctx, s.logger)
	started := s.now()

	report := &Report{
		RunID:         runID,
		DocumentID:    documentID,
		StatementType: statementType,
		Mode:          s.opts.Mode,
		Model:         s.llm.Name(),
		Columns:       normalized.Table.Columns,
		Rows:          normalized.Table.Len(),
		Truncated:     normalized.Truncated,
		StartedAt:     started,
	}
	if normalized.Truncated {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("only the first %d of %d data rows were audited", normalized.Table.Len(), normalized.SourceRows-normalized.DroppedRows))
	}

	userPrompt := prompt.Build(normalized.Table, statementType, s.opts.Mode)
	logger.Info("audit started",
		logging.String(logging.FieldEventType, "audit_started"),
		logging.String("model", report.Model),
		logging.String("mode", string(s.opts.Mode)),
		logging.Int("rows", report.Rows))

	raw, err := s.complete(services.WithStage(ctx, "llm"), userPrompt)
	if err != nil {
		err = classifyModelError(err)
		logging.ErrorWithContext(logger, "model request failed", "audit_llm_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "check the API key, model name and network, then retry"))
		s.publish(ctx, notifications.EventError, notifications.Payload{"context": "audit " + documentID, "error": err})
		return nil, err
	}
	report.RawResponse = raw

	result, err := s.extractor.Extract(raw)
	if err != nil {
		report.ExtractionFailed = true
		report.Violations = []extract.Violation{}
		report.Warnings = append(report.Warnings, "model response could not be parsed: "+err.Error())
		logging.WarnWithContext(logger, "response extraction failed", "audit_extract_failed",
			logging.Error(err),
			logging.ErrorKind(err),
			logging.String(logging.FieldErrorHint, "inspect raw_response; switch audit.format if the model ignores the JSON contract"),
			logging.String(logging.FieldImpact, "no violations recorded for this run"))
	} else {
		report.Violations = result.Violations
		report.ModelGrade = result.Grade
		report.DeclaredTotal = result.DeclaredTotal
		report.Warnings = append(report.Warnings, result.Warnings...)
	}

	report.Grade = grading.FromUnresolved(len(report.Violations))
	report.Duration = s.now().Sub(started)

	logger.Info("audit completed",
		logging.String(logging.FieldEventType, "audit_completed"),
		logging.Int("violations", len(report.Violations)),
		logging.String("grade", report.Grade.String()),
		logging.Bool("extraction_failed", report.ExtractionFailed),
		logging.Duration("duration", report.Duration))
	s.publish(ctx, notifications.EventAuditCompleted, notifications.Payload{
		"document":         documentID,
		"grade":            report.Grade.String(),
		"violations":       len(report.Violations),
		"extractionFailed": report.ExtractionFailed,
	})
	return report, nil
}

func (s *Service) complete(ctx context.Context, userPrompt string) (string, error) {
	if s.opts.Mode == prompt.Strict {
		return s.llm.CompleteJSON(ctx, prompt.SystemPrompt, userPrompt)
	}
	return s.llm.Complete(ctx, prompt.SystemPrompt, userPrompt)
}

func (s *Service) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notification_failed",
			logging.Error(err),
			logging.String("event", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "audit result not pushed"))
	}
}

func classifyModelError(err error) error {
	switch {
	case errors.Is(err, services.ErrRemoteService), errors.Is(err, services.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "llm", "complete", "model request timed out; retry or raise llm.timeout_seconds", err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return services.Wrap(services.ErrRemoteService, "llm", "complete", "model request failed; check the API key, model and network", err)
	}
}

// Resolver reports unresolved counts; verification.Ledger satisfies it.
type Resolver interface {
	UnresolvedCount(documentID string, violations []extract.Violation) int
}

// Regrade recomputes the grade after reviewer decisions. It returns the
// grade and the unresolved count.
func Regrade(r Resolver, documentID string, violations []extract.Violation) (grading.Grade, int) {
	n := r.UnresolvedCount(documentID, violations)
	return grading.FromUnresolved(n), n
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}
