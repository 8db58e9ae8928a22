// Package extract parses model responses into violations, an optional
// model-declared grade and a declared total.
//
// The loose extractor scans for "Violation:" lines; it never fails. The
// strict extractor decodes a JSON object, tolerating code fences and
// surrounding prose. When no object can be decoded it returns an *Error,
// which matches services.ErrExtraction, so callers can tell a parse failure
// apart from an empty violation list.
package extract
