// Package table turns raw spreadsheet grids into normalized tables.
//
// Normalize finds the header row (the first row with enough non-blank cells,
// or a fixed fallback row), drops blank, total and header-like rows, converts
// columns whose values are all numeric to decimal numbers, and caps the row
// count. Result.Truncated reports when rows were cut. Negative amounts are
// ordinary data: contra accounts such as accumulated depreciation are never
// filtered for their sign.
package table
