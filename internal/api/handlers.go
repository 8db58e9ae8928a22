package api

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dharter89/GAAP/internal/logging"
	"github.com/dharter89/GAAP/internal/report"
	"github.com/dharter89/GAAP/internal/services"
	"github.com/dharter89/GAAP/internal/sheet"
	"github.com/dharter89/GAAP/internal/vendormemory"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Model:   s.deps.Model,
		Mode:    string(s.deps.Audit.Mode()),
		Storage: s.deps.Storage,
	})
}

// handleUpload reads one or more spreadsheets from the multipart "file"
// field, normalizes each and runs the vendor consistency check.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d MiB", s.deps.MaxUploadBytes>>20))
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "expected a multipart form with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		s.writeError(w, r, http.StatusBadRequest, "no file uploaded")
		return
	}
	sheetName := strings.TrimSpace(r.FormValue("sheet"))
	statementType := strings.TrimSpace(r.FormValue("statement_type"))

	resp := UploadResponse{Documents: []DocumentView{}}
	for _, fh := range files {
		doc, err := s.ingest(r, fh, sheetName, statementType)
		if err != nil {
			logging.WarnWithContext(s.log(r.Context()), "upload rejected", "upload_rejected",
				logging.String(logging.FieldDocumentID, fh.Filename),
				logging.ErrorKind(err),
				logging.String(logging.FieldImpact, "file was not added"),
				logging.String(logging.FieldErrorHint, "check the file format and sheet selection"),
				logging.Error(err))
			resp.Errors = append(resp.Errors, UploadError{FileName: fh.Filename, Error: err.Error(), Kind: services.Kind(err)})
			continue
		}
		resp.Documents = append(resp.Documents, s.view(doc))
	}

	status := http.StatusCreated
	if len(resp.Documents) == 0 {
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) ingest(r *http.Request, fh *multipart.FileHeader, sheetName, statementType string) (document, error) {
	fileName := filepath.Base(strings.TrimSpace(fh.Filename))
	if fileName == "" || fileName == "." {
		return document{}, services.Wrap(services.ErrValidation, "api", "upload", "file name is required", nil)
	}
	f, err := fh.Open()
	if err != nil {
		return document{}, services.Wrap(services.ErrMalformedInput, "api", "open upload", fileName, err)
	}
	defer f.Close()

	raw, info, err := sheet.Read(f, fileName, sheet.Options{Sheet: sheetName})
	if err != nil {
		return document{}, err
	}
	normalized, err := s.deps.Audit.Normalize(raw)
	if err != nil {
		return document{}, err
	}

	ctx := services.WithDocumentID(r.Context(), fileName)
	doc := document{
		FileName:      fileName,
		Info:          info,
		StatementType: statementType,
		Normalized:    normalized,
		UploadedAt:    s.deps.Now(),
	}
	// Mismatches are judged against what was known before this upload.
	mismatches, applicable := s.deps.Vendors.FindMismatches(normalized.Table)
	doc.Vendor = VendorCheck{Applicable: applicable, Mismatches: mismatches}
	if applicable {
		observations, err := s.deps.Vendors.ObserveTable(ctx, normalized.Table)
		if err != nil {
			doc.Warnings = append(doc.Warnings, s.persistenceWarning(ctx, "vendor memory update", err))
		}
		doc.Vendor.Conflicts = vendormemory.Conflicts(observations)
		for _, obs := range observations {
			if obs.Outcome == vendormemory.Remembered {
				doc.Vendor.Remembered++
			}
		}
	}
	if doc.Vendor.Conflicts == nil {
		doc.Vendor.Conflicts = []vendormemory.Observation{}
	}
	if doc.Vendor.Mismatches == nil {
		doc.Vendor.Mismatches = []vendormemory.Mismatch{}
	}
	if normalized.Truncated {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf("only the first %d of %d data rows will be audited",
			normalized.Table.Len(), normalized.SourceRows-normalized.DroppedRows))
	}

	stored := s.documents.put(doc)
	s.log(ctx).Info("document uploaded",
		logging.String("id", stored.ID),
		logging.String("sheet", info.Sheet),
		logging.Int("rows", normalized.Table.Len()),
		logging.Bool("vendor_check", applicable))
	return stored, nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := s.documents.list()
	resp := DocumentListResponse{Documents: make([]DocumentSummary, 0, len(docs))}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, s.summary(doc))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.get(r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.view(doc))
}

// handleAudit runs the model over the stored table. The run replaces any
// earlier report for the document; ledger decisions are kept.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.get(r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var req AuditRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	statementType := strings.TrimSpace(req.StatementType)
	if statementType == "" {
		statementType = doc.StatementType
	}

	run, err := s.deps.Audit.AuditTable(r.Context(), doc.FileName, doc.Normalized, statementType)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	doc, err = s.documents.setReport(doc.ID, run)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.auditView(doc))
}

// handleVerify records a reviewer decision for one checklist key and returns
// the regraded document. A storage failure still applies the change in
// memory and is reported as a warning.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.auditedDocument(w, r)
	if !ok {
		return
	}
	var req VerifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	key := s.deps.Ledger.CanonicalKey(req.Key)
	if !containsKey(s.deps.Ledger.Keys(doc.Report.Violations), key) {
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("unknown checklist key %q", key))
		return
	}

	ctx := services.WithDocumentID(r.Context(), doc.FileName)
	var warnings []string
	if err := s.deps.Ledger.SetResolved(ctx, doc.FileName, key, req.Resolved); err != nil {
		if !errors.Is(err, services.ErrPersistence) {
			s.writeFailure(w, r, err)
			return
		}
		warnings = append(warnings, s.persistenceWarning(ctx, "verification", err))
	}
	resp := s.grade(doc)
	resp.Warnings = append(resp.Warnings, warnings...)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.auditedDocument(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.grade(doc))
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.auditedDocument(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.PDF(&buf, s.reportSummary(doc)); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": report.FileName(doc.FileName),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.auditedDocument(w, r)
	if !ok {
		return
	}
	page, err := report.HTML(s.reportSummary(doc))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// auditedDocument loads the path document and requires an audit report,
// writing the error response itself when either is missing.
func (s *Server) auditedDocument(w http.ResponseWriter, r *http.Request) (document, bool) {
	doc, err := s.documents.get(r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return document{}, false
	}
	if doc.Report == nil {
		s.writeError(w, r, http.StatusConflict, "document has not been audited yet")
		return document{}, false
	}
	return doc, true
}

func (s *Server) reportSummary(doc document) report.Summary {
	return report.FromAudit(doc.Report, s.deps.Ledger, s.deps.Now())
}

func (s *Server) grade(doc document) GradeResponse {
	summary := s.reportSummary(doc)
	resp := GradeResponse{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		Grade:      summary.Grade,
		ModelGrade: doc.Report.ModelGrade,
		Total:      len(doc.Report.Violations),
		Unresolved: len(summary.Outstanding()),
		Checklist:  summary.Checklist,
	}
	return resp
}

func (s *Server) auditView(doc document) *AuditView {
	if doc.Report == nil {
		return nil
	}
	view := &AuditView{Report: doc.Report, GradeResponse: s.grade(doc)}
	view.Warnings = doc.Report.Warnings
	return view
}

func (s *Server) summary(doc document) DocumentSummary {
	out := summarize(doc)
	if doc.Report != nil {
		grade := s.reportSummary(doc).Grade
		out.Grade = &grade
	}
	return out
}

func (s *Server) view(doc document) DocumentView {
	return DocumentView{
		DocumentSummary: s.summary(doc),
		Format:          doc.Info.Format,
		Sheets:          doc.Info.Sheets,
		Preview:         doc.Normalized,
		VendorCheck:     doc.Vendor,
		Warnings:        doc.Warnings,
		Audit:           s.auditView(doc),
	}
}

func containsKey(keys []string, key string) bool {
	if key == "" {
		return false
	}
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
