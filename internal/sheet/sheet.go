package sheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dharter89/GAAP/internal/table"
)

// Supported upload formats.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
)

// Options selects which worksheet to read. Sheet may be a worksheet name or a
// 1-based position; blank means the first sheet. CSV files have one sheet.
type Options struct {
	Sheet string
}

// Info describes what was read.
type Info struct {
	Format string   `json:"format"`
	Sheet  string   `json:"sheet"`
	Sheets []string `json:"sheets"`
}

// Read decodes an uploaded spreadsheet into a raw grid. The file name picks
// the decoder. Undecodable input is reported as a table.MalformedInputError.
func Read(r io.Reader, fileName string, opts Options) (table.RawTable, Info, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return table.RawTable{}, Info{}, err
	}
	switch format {
	case FormatXLSX:
		return readWorkbook(r, opts)
	case FormatTSV:
		return readDelimited(r, '\t', format)
	default:
		return readDelimited(r, ',', format)
	}
}

// ListSheets returns worksheet names for a workbook, or a single "Sheet1"
// entry for delimited files.
func ListSheets(r io.Reader, fileName string) ([]string, error) {
	format, err := DetectFormat(fileName)
	if err != nil {
		return nil, err
	}
	if format != FormatXLSX {
		return []string{"Sheet1"}, nil
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, table.Malformed("open workbook", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// DetectFormat maps a file name to a supported format.
func DetectFormat(fileName string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".xls":
		return "", table.Malformed("legacy .xls workbooks are not supported; re-save the file as .xlsx", nil)
	case "":
		return "", table.Malformed("file has no extension; upload .xlsx, .xlsm, .csv or .tsv", nil)
	default:
		return "", table.Malformed(fmt.Sprintf("unsupported file type %q; upload .xlsx, .xlsm, .csv or .tsv", ext), nil)
	}
}

func readWorkbook(r io.Reader, opts Options) (table.RawTable, Info, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return table.RawTable{}, Info{}, table.Malformed("open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table.RawTable{}, Info{}, table.Malformed("workbook has no sheets", nil)
	}
	name, err := pickSheet(sheets, opts.Sheet)
	if err != nil {
		return table.RawTable{}, Info{}, err
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return table.RawTable{}, Info{}, table.Malformed(fmt.Sprintf("read sheet %q", name), err)
	}
	return table.RawTable{Rows: rows}, Info{Format: FormatXLSX, Sheet: name, Sheets: sheets}, nil
}

func pickSheet(sheets []string, want string) (string, error) {
	want = strings.TrimSpace(want)
	if want == "" {
		return sheets[0], nil
	}
	for _, name := range sheets {
		if strings.EqualFold(name, want) {
			return name, nil
		}
	}
	if pos, err := strconv.Atoi(want); err == nil {
		if pos >= 1 && pos <= len(sheets) {
			return sheets[pos-1], nil
		}
		return "", table.Malformed(fmt.Sprintf("sheet %d out of range (workbook has %d)", pos, len(sheets)), nil)
	}
	return "", table.Malformed(fmt.Sprintf("sheet %q not found (have %s)", want, strings.Join(sheets, ", ")), nil)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readDelimited(r io.Reader, comma rune, format string) (table.RawTable, Info, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return table.RawTable{}, Info{}, table.Malformed("read upload", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return table.RawTable{}, Info{}, table.Malformed(fmt.Sprintf("parse %s line %d", format, parseErr.Line), parseErr.Err)
		}
		return table.RawTable{}, Info{}, table.Malformed("parse "+format, err)
	}
	return table.RawTable{Rows: rows}, Info{Format: format, Sheet: "Sheet1", Sheets: []string{"Sheet1"}}, nil
}
