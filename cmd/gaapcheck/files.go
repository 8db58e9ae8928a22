package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dharter89/GAAP/internal/config"
	"github.com/dharter89/GAAP/internal/sheet"
	"github.com/dharter89/GAAP/internal/table"
)

// spreadsheet is one input file read from disk. DocumentID is the base file
// name, matching what an upload through the API would use.
type spreadsheet struct {
	Path       string
	DocumentID string
	Raw        table.RawTable
	Info       sheet.Info
}

func readSpreadsheet(path, sheetName string) (spreadsheet, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return spreadsheet{}, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return spreadsheet{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(expanded)
	raw, info, err := sheet.Read(f, name, sheet.Options{Sheet: sheetName})
	if err != nil {
		return spreadsheet{}, fmt.Errorf("%s: %w", name, err)
	}
	return spreadsheet{Path: expanded, DocumentID: name, Raw: raw, Info: info}, nil
}
