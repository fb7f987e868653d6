package analysis

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/KaramelBytes/datachat-cli/internal/table"
)

func sampleTable(t *testing.T) *table.Table {
	t.Helper()
	tb, err := table.New("sales.csv",
		[]string{"units", "price", "region", "empty"},
		[][]string{
			{"3", "2.5", "north", ""},
			{"5", "", "south", ""},
			{"7", "1.25", "east", ""},
			{"1", "4", "west", ""},
		}, table.DefaultNumberFormat())
	if err != nil {
		t.Fatalf("table: %v", err)
	}
	return tb
}

func TestAggregateOperations(t *testing.T) {
	tb := sampleTable(t)
	cases := []struct {
		op   Operation
		col  string
		want string
	}{
		{OpHighest, "units", "📈 Highest value in 'units': 7"},
		{OpLowest, "units", "📉 Lowest value in 'units': 1"},
		{OpSum, "units", "🧮 Total sum of 'units': 16"},
		{OpAverage, "units", "📊 Average of 'units': 4.0"},
		{OpSum, "price", "🧮 Total sum of 'price': 7.75"},
		{OpAverage, "price", "📊 Average of 'price': 2.58"},
		{OpHighest, "price", "📈 Highest value in 'price': 4.0"},
		{OpSum, "empty", "🧮 Total sum of 'empty': 0.0"},
		{OpHighest, "empty", "📈 Highest value in 'empty': nan"},
		{OpAverage, "empty", "📊 Average of 'empty': nan"},
	}
	for _, tc := range cases {
		if got := Calculate(tb, tc.op, tc.col); got != tc.want {
			t.Fatalf("%s(%s) = %q, want %q", tc.op, tc.col, got, tc.want)
		}
	}
}

func TestAverageEqualsSumOverCount(t *testing.T) {
	tb := sampleTable(t)
	for _, col := range NumericColumns(tb) {
		s, err := Aggregate(tb, OpSum, col)
		if err != nil {
			t.Fatalf("sum %s: %v", col, err)
		}
		a, _ := Aggregate(tb, OpAverage, col)
		if s.Count == 0 {
			continue
		}
		want := math.RoundToEven(s.Value/float64(s.Count)*100) / 100
		if a.Value != want {
			t.Fatalf("%s: average %v, want %v", col, a.Value, want)
		}
		hi, _ := Aggregate(tb, OpHighest, col)
		lo, _ := Aggregate(tb, OpLowest, col)
		if hi.Value < lo.Value {
			t.Fatalf("%s: highest %v < lowest %v", col, hi.Value, lo.Value)
		}
	}
}

func TestAverageRoundsHalfToEven(t *testing.T) {
	cases := []struct {
		vals []string
		want string
	}{
		{[]string{"0.125", "0.125"}, "0.12"},
		{[]string{"0.375", "0.375"}, "0.38"},
		{[]string{"1", "2"}, "1.5"},
	}
	for _, tc := range cases {
		rows := make([][]string, len(tc.vals))
		for i, v := range tc.vals {
			rows[i] = []string{v}
		}
		tb, err := table.New("r.csv", []string{"x"}, rows, table.DefaultNumberFormat())
		if err != nil {
			t.Fatalf("table: %v", err)
		}
		want := "📊 Average of 'x': " + tc.want
		if got := Calculate(tb, OpAverage, "x"); got != want {
			t.Fatalf("average %v = %q, want %q", tc.vals, got, want)
		}
	}
}

func TestAggregateNonNumeric(t *testing.T) {
	tb := sampleTable(t)
	for _, op := range Operations {
		_, err := Aggregate(tb, op, "region")
		var te *TypeError
		if !errors.As(err, &te) {
			t.Fatalf("%s: expected TypeError, got %v", op, err)
		}
		if got := Calculate(tb, op, "region"); !strings.Contains(got, "not numeric") {
			t.Fatalf("%s: message %q", op, got)
		}
	}
	_, err := Aggregate(tb, OpSum, "nope")
	var ce *ColumnError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
}

func TestParseOperation(t *testing.T) {
	for in, want := range map[string]Operation{"Highest": OpHighest, "min": OpLowest, "MEAN": OpAverage, " sum ": OpSum} {
		got, err := ParseOperation(in)
		if err != nil || got != want {
			t.Fatalf("ParseOperation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseOperation("median"); err == nil {
		t.Fatalf("expected error for unknown operation")
	}
}

func TestNumericColumns(t *testing.T) {
	got := strings.Join(NumericColumns(sampleTable(t)), ",")
	if got != "units,price,empty" {
		t.Fatalf("numeric columns = %s", got)
	}
}

func TestSummarize(t *testing.T) {
	tb := sampleTable(t)
	s := Summarize(tb)
	if s.Rows != 4 || len(s.Columns) != 4 {
		t.Fatalf("summary shape rows=%d cols=%d", s.Rows, len(s.Columns))
	}
	price := s.Columns[1]
	if price.DType != "float64" || price.Missing != 1 || price.NonNull != 3 || price.Sample != "2.5" {
		t.Fatalf("price summary %+v", price)
	}
	if s.Columns[3].Sample != "" || s.Columns[3].Missing != 4 {
		t.Fatalf("empty summary %+v", s.Columns[3])
	}
	info := s.Info()
	for _, want := range []string{"RangeIndex: 4 entries, 0 to 3", "Data columns (total 4 columns):", "dtypes: float64(2), int64(1), object(1)", "memory usage:"} {
		if !strings.Contains(info, want) {
			t.Fatalf("info missing %q:\n%s", want, info)
		}
	}
	if !strings.Contains(s.MissingText(), "price") {
		t.Fatalf("missing text: %s", s.MissingText())
	}
	if s2 := Summarize(tb); s2.Info() != info {
		t.Fatalf("summary is not deterministic")
	}
}

func TestMarkdownReport(t *testing.T) {
	md := Summarize(sampleTable(t)).Markdown()
	for _, want := range []string{"[DATASET SUMMARY]", "File: sales.csv", "[SCHEMA]", "- units: int64", "[HEAD AND SAMPLE ROWS]", "| units | price | region | empty |"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestPreviewIsBounded(t *testing.T) {
	rows := make([][]string, 25)
	for i := range rows {
		rows[i] = []string{"1"}
	}
	tb, _ := table.New("p.csv", []string{"x"}, rows, table.DefaultNumberFormat())
	if got := Preview(tb, PreviewRows).Rows(); got != 10 {
		t.Fatalf("preview rows = %d", got)
	}
}
