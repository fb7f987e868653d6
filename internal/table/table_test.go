package table

import (
	"math"
	"strings"
	"testing"
)

func mustNew(t *testing.T, header []string, rows [][]string) *Table {
	t.Helper()
	tb, err := New("t.csv", header, rows, DefaultNumberFormat())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tb
}

func TestNewInfersKinds(t *testing.T) {
	tb := mustNew(t,
		[]string{"id", "price", "name", "when", "ok", "gap"},
		[][]string{
			{"1", "2.5", "apple", "2024-01-02", "True", ""},
			{"2", "", "pear", "2024-02-03", "false", "NA"},
			{"3", "4", "fig", "2024-03-04", "TRUE", ""},
		})
	want := map[string]string{
		"id":    "int64",
		"price": "float64",
		"name":  "object",
		"when":  "datetime64[ns]",
		"ok":    "bool",
		"gap":   "float64",
	}
	for _, c := range tb.Columns() {
		if got := c.DType(); got != want[c.Name] {
			t.Fatalf("%s: dtype %q, want %q", c.Name, got, want[c.Name])
		}
	}
	if tb.Rows() != 3 || tb.NumCols() != 6 {
		t.Fatalf("shape %dx%d", tb.Rows(), tb.NumCols())
	}
	price, _ := tb.Column("price")
	if price.MissingCount() != 1 {
		t.Fatalf("price missing = %d", price.MissingCount())
	}
	if !math.IsNaN(price.Cells[1].Num) {
		t.Fatalf("missing numeric cell should be NaN, got %v", price.Cells[1].Num)
	}
}

func TestIntColumnWithMissingIsFloat(t *testing.T) {
	tb := mustNew(t, []string{"n"}, [][]string{{"1"}, {""}, {"3"}})
	c, _ := tb.Column("n")
	if c.DType() != "float64" {
		t.Fatalf("dtype = %s", c.DType())
	}
	if got := c.Numbers(); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("numbers = %v", got)
	}
}

func TestUniqueNames(t *testing.T) {
	got := uniqueNames([]string{"a", "a", " ", "b", "a", "a.1"})
	want := []string{"a", "a.2", "Unnamed: 2", "b", "a.3", "a.1"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestNewRejectsLongRows(t *testing.T) {
	_, err := New("x", []string{"a", "b"}, [][]string{{"1", "2", "3"}}, DefaultNumberFormat())
	if err == nil || !strings.Contains(err.Error(), "expected 2 fields") {
		t.Fatalf("expected field count error, got %v", err)
	}
	if _, err := New("x", nil, nil, DefaultNumberFormat()); err != ErrNoColumns {
		t.Fatalf("expected ErrNoColumns, got %v", err)
	}
}

func TestShortRowsArePadded(t *testing.T) {
	tb := mustNew(t, []string{"a", "b"}, [][]string{{"1"}, {"2", "x"}})
	b, _ := tb.Column("b")
	if !b.Cells[0].Missing || b.Cells[1].Raw != "x" {
		t.Fatalf("unexpected cells: %+v", b.Cells)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in    string
		nf    NumberFormat
		want  float64
		whole bool
		ok    bool
	}{
		{"42", DefaultNumberFormat(), 42, true, true},
		{"-3.5", DefaultNumberFormat(), -3.5, false, true},
		{"1e3", DefaultNumberFormat(), 1000, false, true},
		{"1,5", DefaultNumberFormat(), 0, false, false},
		{"0x10", DefaultNumberFormat(), 0, false, false},
		{"1.234,5", NumberFormat{}, 1234.5, false, true},
		{"1,234.5", NumberFormat{}, 1234.5, false, true},
		{"1 234", NumberFormat{Decimal: '.', Thousands: ' '}, 1234, true, true},
		{"abc", DefaultNumberFormat(), 0, false, false},
	}
	for _, tc := range cases {
		got, whole, ok := ParseNumber(tc.in, tc.nf)
		if ok != tc.ok || (ok && (got != tc.want || whole != tc.whole)) {
			t.Fatalf("ParseNumber(%q) = %v,%v,%v want %v,%v,%v", tc.in, got, whole, ok, tc.want, tc.whole, tc.ok)
		}
	}
}

func TestHeadAndText(t *testing.T) {
	rows := make([][]string, 0, 20)
	for i := 0; i < 20; i++ {
		rows = append(rows, []string{"x", strings.Repeat("y", i%3)})
	}
	tb := mustNew(t, []string{"col", "long_name"}, rows)
	h := tb.Head(5)
	if h.Rows() != 5 || tb.Rows() != 20 {
		t.Fatalf("head rows %d, table rows %d", h.Rows(), tb.Rows())
	}
	lines := strings.Split(h.Text(0), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header + 5 lines, got %d", len(lines))
	}
	if lines[0] != "col long_name" {
		t.Fatalf("header line %q", lines[0])
	}
	if lines[1] != "  x       NaN" {
		t.Fatalf("first row %q", lines[1])
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("a", 100)
	got := Clip(long, 80)
	if len(got) != 80 || !strings.HasSuffix(got, "...") {
		t.Fatalf("clip length %d: %q", len(got), got)
	}
	if Clip("a\nb", 80) != "a b" {
		t.Fatalf("newline not flattened")
	}
}
