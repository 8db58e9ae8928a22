package api

import (
	"time"

	"github.com/dharter89/GAAP/internal/audit"
	"github.com/dharter89/GAAP/internal/grading"
	"github.com/dharter89/GAAP/internal/table"
	"github.com/dharter89/GAAP/internal/vendormemory"
	"github.com/dharter89/GAAP/internal/verification"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// HealthResponse reports server readiness.
type HealthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Mode    string `json:"mode"`
	Storage string `json:"storage"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Recoverable is set when the caller can fix the input or retry.
	Recoverable bool   `json:"recoverable,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// VendorCheck is the vendor/account consistency check for an upload.
// Applicable is false when the sheet has no vendor or account column.
type VendorCheck struct {
	Applicable bool                       `json:"applicable"`
	Mismatches []vendormemory.Mismatch    `json:"mismatches"`
	Conflicts  []vendormemory.Observation `json:"conflicts"`
	Remembered int                        `json:"remembered"`
}

// DocumentSummary is the list view of an uploaded document.
type DocumentSummary struct {
	ID            string         `json:"id"`
	FileName      string         `json:"file_name"`
	Sheet         string         `json:"sheet"`
	StatementType string         `json:"statement_type"`
	Rows          int            `json:"rows"`
	Truncated     bool           `json:"truncated"`
	UploadedAt    string         `json:"uploaded_at"`
	Audited       bool           `json:"audited"`
	Grade         *grading.Grade `json:"grade,omitempty"`
}

// DocumentView is the full view of an uploaded document.
type DocumentView struct {
	DocumentSummary
	Format      string       `json:"format"`
	Sheets      []string     `json:"sheets"`
	Preview     table.Result `json:"preview"`
	VendorCheck VendorCheck  `json:"vendor_check"`
	Warnings    []string     `json:"warnings,omitempty"`
	Audit       *AuditView   `json:"audit,omitempty"`
}

// UploadError reports a file that could not be read.
type UploadError struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
	Kind     string `json:"kind"`
}

// UploadResponse is returned by POST /api/documents. Each file in a batch
// succeeds or fails independently.
type UploadResponse struct {
	Documents []DocumentView `json:"documents"`
	Errors    []UploadError  `json:"errors,omitempty"`
}

// DocumentListResponse wraps uploaded documents in upload order.
type DocumentListResponse struct {
	Documents []DocumentSummary `json:"documents"`
}

// AuditRequest optionally overrides the statement type for one run.
type AuditRequest struct {
	StatementType string `json:"statement_type"`
}

// AuditView is an audit report plus its review state.
type AuditView struct {
	Report *audit.Report `json:"report"`
	GradeResponse
}

// VerifyRequest marks one checklist entry resolved or unresolved.
type VerifyRequest struct {
	Key      string `json:"key"`
	Resolved bool   `json:"resolved"`
}

// GradeResponse is the current grade of an audited document.
type GradeResponse struct {
	DocumentID string               `json:"document_id"`
	FileName   string               `json:"file_name"`
	Grade      grading.Grade        `json:"grade"`
	ModelGrade *grading.Grade       `json:"model_grade,omitempty"`
	Total      int                  `json:"total_violations"`
	Unresolved int                  `json:"unresolved"`
	Checklist  []verification.Entry `json:"checklist"`
	Warnings   []string             `json:"warnings,omitempty"`
}

// VendorListResponse lists remembered vendor accounts.
type VendorListResponse struct {
	Vendors []vendormemory.Entry `json:"vendors"`
}

// ResolveVendorRequest sets a vendor's canonical account.
type ResolveVendorRequest struct {
	Vendor  string `json:"vendor"`
	Account string `json:"account"`
}

// ResolveVendorResponse echoes the stored mapping.
type ResolveVendorResponse struct {
	Vendor   vendormemory.Entry `json:"vendor"`
	Warnings []string           `json:"warnings,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func summarize(doc document) DocumentSummary {
	out := DocumentSummary{
		ID:            doc.ID,
		FileName:      doc.FileName,
		Sheet:         doc.Info.Sheet,
		StatementType: doc.StatementType,
		Rows:          doc.Normalized.Table.Len(),
		Truncated:     doc.Normalized.Truncated,
		UploadedAt:    formatTime(doc.UploadedAt),
		Audited:       doc.Report != nil,
	}
	return out
}
