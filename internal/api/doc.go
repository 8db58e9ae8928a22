// Package api serves the gaapcheck HTTP API: upload spreadsheets, run audits,
// record reviewer verification and export reports.
//
// # Endpoints
//
//	GET  /api/health
//	POST /api/documents                    multipart "file" (repeatable), "sheet", "statement_type"
//	GET  /api/documents
//	GET  /api/documents/{id}
//	POST /api/documents/{id}/audit         {"statement_type": "..."} optional
//	POST /api/documents/{id}/verify        {"key": "...", "resolved": true}
//	GET  /api/documents/{id}/grade
//	GET  /api/documents/{id}/report.pdf
//	GET  /api/documents/{id}/report.html
//	GET  /api/vendors
//	POST /api/vendors/resolve              {"vendor": "...", "account": "..."}
//
// # Sessions
//
// Uploaded tables and their latest audit live in memory for the life of the
// server. The file name is the ledger document id, so uploading the same
// name again replaces the session and keeps prior verification decisions.
//
// # Errors
//
// Failures are JSON {"error", "kind", "request_id"}. The status follows the
// services marker: malformed input and validation 400, not found 404,
// remote service 502, timeout 504, configuration 503. Storage failures on
// verify and vendor resolution are not errors; the change is applied in
// memory and the response carries a warning that it is not durable.
//
// Every response carries X-Request-ID, which is also logged as
// correlation_id.
package api
