package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoColumns is returned when a source has no header row to build columns from.
var ErrNoColumns = errors.New("no columns to parse from file")

// Kind is the inferred type of a column.
type Kind int

const (
	KindNumeric Kind = iota
	KindText
	KindDatetime
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDatetime:
		return "datetime"
	case KindBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// Cell is one value of a column. Num is only meaningful for numeric columns.
type Cell struct {
	Raw     string
	Num     float64
	Missing bool
}

// Column is a named, typed sequence of cells.
type Column struct {
	Name string
	Kind Kind
	// Integral reports that every value is a whole number and none are missing.
	Integral bool
	Cells    []Cell
}

// DType returns the dataframe-style dtype label of the column.
func (c *Column) DType() string {
	switch c.Kind {
	case KindNumeric:
		if c.Integral {
			return "int64"
		}
		return "float64"
	case KindBoolean:
		return "bool"
	case KindDatetime:
		return "datetime64[ns]"
	default:
		return "object"
	}
}

// Numbers returns the non-missing numeric values in row order.
func (c *Column) Numbers() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !cell.Missing {
			out = append(out, cell.Num)
		}
	}
	return out
}

// MissingCount returns how many cells are missing.
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Missing {
			n++
		}
	}
	return n
}

// FirstValue returns the first non-missing raw value.
func (c *Column) FirstValue() (string, bool) {
	for _, cell := range c.Cells {
		if !cell.Missing {
			return cell.Raw, true
		}
	}
	return "", false
}

// Table is an immutable, column-oriented dataset with uniquely named columns
// of equal length.
type Table struct {
	// Name is the source file name.
	Name string
	// Encoding is the text encoding the source was decoded with.
	Encoding string

	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a Table from a header and its data records. Records shorter than
// the header are padded with missing cells; longer records are an error.
func New(name string, header []string, records [][]string, nf NumberFormat) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrNoColumns
	}
	names := uniqueNames(header)
	ncol := len(names)
	raw := make([][]string, ncol)
	for i := range raw {
		raw[i] = make([]string, len(records))
	}
	for r, rec := range records {
		if len(rec) > ncol {
			return nil, fmt.Errorf("expected %d fields in line %d, saw %d", ncol, r+2, len(rec))
		}
		for j, v := range rec {
			raw[j][r] = v
		}
	}
	t := &Table{Name: name, index: make(map[string]int, ncol), rows: len(records)}
	for j, n := range names {
		t.cols = append(t.cols, buildColumn(n, raw[j], nf))
		t.index[n] = j
	}
	return t, nil
}

// Rows returns the number of data rows.
func (t *Table) Rows() int { return t.rows }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// Columns returns the columns in order. The returned columns must not be modified.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Head returns a view of the first n rows. Column kinds are those of the full table.
func (t *Table) Head(n int) *Table {
	if n < 0 {
		n = 0
	}
	if n >= t.rows {
		return t
	}
	h := &Table{Name: t.Name, Encoding: t.Encoding, index: t.index, rows: n}
	for _, c := range t.cols {
		cp := *c
		cp.Cells = c.Cells[:n]
		h.cols = append(h.cols, &cp)
	}
	return h
}

// Record returns row i as display strings, with missing cells as "NaN".
func (t *Table) Record(i int) []string {
	out := make([]string, len(t.cols))
	for j, c := range t.cols {
		cell := c.Cells[i]
		if cell.Missing {
			out[j] = "NaN"
			continue
		}
		out[j] = cell.Raw
	}
	return out
}

// uniqueNames trims header cells, names blank ones "Unnamed: <i>" and
// suffixes duplicates with ".1", ".2", ...
func uniqueNames(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		n := strings.TrimSpace(h)
		if n == "" {
			n = fmt.Sprintf("Unnamed: %d", i)
		}
		out[i] = n
	}
	taken := make(map[string]bool, len(out))
	for _, n := range out {
		taken[n] = true
	}
	used := make(map[string]bool, len(out))
	for i, n := range out {
		if !used[n] {
			used[n] = true
			continue
		}
		k := seen[n]
		for {
			k++
			cand := fmt.Sprintf("%s.%d", n, k)
			if !taken[cand] && !used[cand] {
				out[i] = cand
				break
			}
		}
		seen[n] = k
		used[out[i]] = true
	}
	return out
}
