// Package audit runs the GAAP audit pipeline: normalize the uploaded sheet,
// build the prompt, call the model, extract violations and grade them.
//
// The locally computed grade counts every extracted violation; Regrade
// recomputes it once reviewers mark violations resolved in the verification
// ledger. An unparseable model response yields a report with
// ExtractionFailed set and the raw response kept, not an error.
package audit
