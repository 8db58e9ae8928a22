package table

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/dharter89/GAAP/internal/textutil"
)

// Kind classifies a cell after numeric coercion.
type Kind int

const (
	Empty Kind = iota
	Number
	Text
)

func (k Kind) String() string {
	switch k {
	case Number:
		return "number"
	case Text:
		return "text"
	default:
		return "empty"
	}
}

// Cell is one normalized spreadsheet value.
type Cell struct {
	Kind   Kind
	Number decimal.Decimal
	Text   string
}

// NumberCell builds a numeric cell.
func NumberCell(d decimal.Decimal) Cell { return Cell{Kind: Number, Number: d} }

// TextCell builds a text cell; blank text yields an empty cell.
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Text: s}
}

// IsEmpty reports whether the cell holds no value.
func (c Cell) IsEmpty() bool { return c.Kind == Empty }

// String renders the cell the way it is shown to the model and in reports.
func (c Cell) String() string {
	switch c.Kind {
	case Number:
		return c.Number.String()
	case Text:
		return c.Text
	default:
		return ""
	}
}

// MarshalJSON encodes numbers as JSON numbers, text as strings and empty
// cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case Number:
		return []byte(c.Number.String()), nil
	case Text:
		return json.Marshal(c.Text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Cell) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Cell{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = TextCell(s)
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return err
	}
	*c = NumberCell(d)
	return nil
}

// Row is an ordered slice of cells aligned with Table.Columns.
type Row []Cell

// Table is a normalized sheet: unique column names and typed rows.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Index returns the position of column, comparing names by textutil.FoldKey,
// or -1 when absent.
func (t Table) Index(column string) int {
	key := textutil.FoldKey(column)
	if key == "" {
		return -1
	}
	for i, name := range t.Columns {
		if textutil.FoldKey(name) == key {
			return i
		}
	}
	return -1
}

// FindColumn returns the first column matching any candidate, in candidate
// order.
func (t Table) FindColumn(candidates []string) (int, bool) {
	for _, candidate := range candidates {
		if idx := t.Index(candidate); idx >= 0 {
			return idx, true
		}
	}
	return -1, false
}

// Get returns the cell of row i in column, or an empty cell when either is
// out of range.
func (t Table) Get(i int, column string) Cell {
	idx := t.Index(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return Cell{}
	}
	return t.Rows[i].At(idx)
}

// At returns the cell at column index idx, or an empty cell.
func (r Row) At(idx int) Cell {
	if idx < 0 || idx >= len(r) {
		return Cell{}
	}
	return r[idx]
}

// Strings renders the row as display strings.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, cell := range r {
		out[i] = cell.String()
	}
	return out
}

// Records returns rows as column-name maps, the shape used by JSON exports.
func (t Table) Records() []map[string]Cell {
	out := make([]map[string]Cell, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]Cell, len(t.Columns))
		for i, name := range t.Columns {
			record[name] = row.At(i)
		}
		out = append(out, record)
	}
	return out
}

func columnLabel(i int) string {
	return "Column " + strconv.Itoa(i+1)
}
