// Package prompt builds the audit instructions sent to the model.
//
// Two output contracts are supported. Loose asks for free text with one
// "Violation:" line per finding under a "## GAAP Violations" heading,
// followed by "Total violations found: X" and "Compliance Grade: X".
// Strict asks for a single JSON object with compliance_grade,
// total_violations and a violations array of summary, location and
// suggested_correction. Package extract parses both.
package prompt
