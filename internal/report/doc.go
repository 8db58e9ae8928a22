// Package report exports a reviewed audit as markdown, HTML (goldmark with
// GFM task lists) or PDF (fpdf). File names and titles derive from the
// uploaded document name.
package report
