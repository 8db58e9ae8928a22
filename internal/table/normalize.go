package table

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	DefaultMaxRows           = 50
	DefaultHeaderMinCells    = 3
	DefaultHeaderFallbackRow = 6
)

// DefaultKeywords drop total and header-like rows.
var DefaultKeywords = []string{"total", "header", "subtotal"}

// strictLabels are section subtotal labels dropped by the strict filter.
var strictLabels = map[string]struct{}{
	"cost of goods sold": {},
	"income":             {},
	"expenses":           {},
}

// RawTable is an undecoded grid of cell strings. When Columns is empty the
// header row is detected from Rows. Empty strings are null cells.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// Options tune normalization. Use DefaultOptions for the stock behaviour;
// non-positive MaxRows and HeaderMinCells fall back to their defaults.
type Options struct {
	HeaderMinCells    int
	HeaderFallbackRow int
	MaxRows           int
	Keywords          []string
	StrictFilter      bool
}

// DefaultOptions returns the standard normalization settings.
func DefaultOptions() Options {
	return Options{
		HeaderMinCells:    DefaultHeaderMinCells,
		HeaderFallbackRow: DefaultHeaderFallbackRow,
		MaxRows:           DefaultMaxRows,
		Keywords:          append([]string(nil), DefaultKeywords...),
	}
}

// Result is a normalized table plus bookkeeping about what was removed.
type Result struct {
	Table       Table `json:"table"`
	Truncated   bool  `json:"truncated"`
	SourceRows  int   `json:"source_rows"`
	DroppedRows int   `json:"dropped_rows"`
	// HeaderRow is the zero-based row used as the header, or -1 when the
	// raw table supplied its own columns.
	HeaderRow int `json:"header_row"`
}

// Normalize locates the header, removes non-data rows, coerces numeric
// columns and truncates to opts.MaxRows.
func Normalize(raw RawTable, opts Options) (Result, error) {
	if opts.HeaderMinCells <= 0 {
		opts.HeaderMinCells = DefaultHeaderMinCells
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	keywords := lowerAll(opts.Keywords)
	if opts.Keywords == nil {
		keywords = DefaultKeywords
	}

	header, data, headerRow, err := splitHeader(raw, opts)
	if err != nil {
		return Result{}, err
	}

	width := len(header)
	for _, row := range data {
		width = max(width, len(row))
	}
	if width == 0 {
		return Result{}, Malformed("no columns", nil)
	}
	columns := columnNames(header, width)

	kept := make([][]string, 0, len(data))
	for _, row := range data {
		if dropRow(row, keywords, opts.StrictFilter) {
			continue
		}
		kept = append(kept, row)
	}

	result := Result{
		SourceRows:  len(data),
		DroppedRows: len(data) - len(kept),
		HeaderRow:   headerRow,
	}
	if len(kept) > opts.MaxRows {
		kept = kept[:opts.MaxRows]
		result.Truncated = true
	}
	result.Table = Table{Columns: columns, Rows: coerce(kept, width)}
	return result, nil
}

func splitHeader(raw RawTable, opts Options) ([]string, [][]string, int, error) {
	if len(raw.Columns) > 0 {
		return raw.Columns, raw.Rows, -1, nil
	}
	if len(raw.Rows) == 0 {
		return nil, nil, 0, Malformed("sheet has no rows", nil)
	}
	idx := detectHeader(raw.Rows, opts.HeaderMinCells)
	if idx < 0 {
		idx = opts.HeaderFallbackRow
		if idx < 0 || idx >= len(raw.Rows) {
			return nil, nil, 0, Malformed(fmt.Sprintf("no header row found and fallback row %d is out of range (%d rows)", idx+1, len(raw.Rows)), nil)
		}
	}
	return raw.Rows[idx], raw.Rows[idx+1:], idx, nil
}

// detectHeader returns the first row with at least minCells non-blank cells.
func detectHeader(rows [][]string, minCells int) int {
	for i, row := range rows {
		count := 0
		for _, cell := range row {
			if strings.TrimSpace(cell) != "" {
				count++
			}
		}
		if count >= minCells {
			return i
		}
	}
	return -1
}

// columnNames fills blank header cells with "Column N" and suffixes
// duplicates ".1", ".2", ...
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	used := make(map[string]bool, width)
	for i := range width {
		name := ""
		if i < len(header) {
			name = strings.Join(strings.Fields(header[i]), " ")
		}
		if name == "" {
			name = columnLabel(i)
		}
		if used[strings.ToLower(name)] {
			base := name
			for n := 1; ; n++ {
				name = fmt.Sprintf("%s.%d", base, n)
				if !used[strings.ToLower(name)] {
					break
				}
			}
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func dropRow(row []string, keywords []string, strict bool) bool {
	if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
		// Blank separators and rows without a first-column label.
		return true
	}
	var joined strings.Builder
	for _, cell := range row {
		joined.WriteString(strings.ToLower(cell))
		joined.WriteByte(' ')
	}
	text := joined.String()
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return strict && isSubtotalLabel(firstText(row))
}

func firstText(row []string) string {
	for _, cell := range row {
		if trimmed := strings.TrimSpace(cell); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func isSubtotalLabel(label string) bool {
	label = strings.ToLower(strings.Join(strings.Fields(label), " "))
	label = strings.TrimSpace(strings.TrimSuffix(label, ":"))
	label = strings.TrimPrefix(label, "total ")
	_, ok := strictLabels[label]
	return ok
}

// coerce converts each column to numbers when every non-blank value parses
// as an amount; otherwise the strings are kept as-is.
func coerce(rows [][]string, width int) []Row {
	out := make([]Row, len(rows))
	for i := range rows {
		out[i] = make(Row, width)
	}
	for col := range width {
		numbers := make([]decimal.Decimal, len(rows))
		numeric := false
		for i, row := range rows {
			value := cellAt(row, col)
			if strings.TrimSpace(value) == "" {
				continue
			}
			d, ok := parseNumber(value)
			if !ok {
				numeric = false
				break
			}
			numbers[i] = d
			numeric = true
		}
		for i, row := range rows {
			value := cellAt(row, col)
			switch {
			case strings.TrimSpace(value) == "":
				out[i][col] = Cell{}
			case numeric:
				out[i][col] = NumberCell(numbers[i])
			default:
				out[i][col] = TextCell(value)
			}
		}
	}
	return out
}

const currencySymbols = "$€£¥"

// parseNumber reads a plain or display-formatted amount: thousands
// separators, a leading or trailing currency symbol, and accounting
// parentheses for negatives ("($1,234.50)").
func parseNumber(value string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(value)
	negative := false
	if len(s) > 2 && s[0] == '(' && s[len(s)-1] == ')' {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		if negative {
			return decimal.Decimal{}, false
		}
		negative = true
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimSpace(strings.Trim(s, currencySymbols))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || ((s[0] == '-' || s[0] == '+') && negative) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
