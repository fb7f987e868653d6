package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datachat-cli/internal/table"
)

// Operation is a single-column numeric aggregate.
type Operation int

const (
	OpHighest Operation = iota
	OpLowest
	OpAverage
	OpSum
)

// Operations lists every aggregate in display order.
var Operations = []Operation{OpHighest, OpLowest, OpAverage, OpSum}

func (o Operation) String() string {
	switch o {
	case OpHighest:
		return "Highest"
	case OpLowest:
		return "Lowest"
	case OpAverage:
		return "Average"
	case OpSum:
		return "Sum"
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// ParseOperation accepts operation names case-insensitively, plus the
// aliases max, min, mean, avg and total.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "highest", "max":
		return OpHighest, nil
	case "lowest", "min":
		return OpLowest, nil
	case "average", "mean", "avg":
		return OpAverage, nil
	case "sum", "total":
		return OpSum, nil
	}
	return 0, fmt.Errorf("unknown operation %q (want Highest, Lowest, Average or Sum)", s)
}

// TypeError reports an aggregate requested on a non-numeric column.
type TypeError struct {
	Column string
	Kind   table.Kind
}

func (e *TypeError) Error() string { return fmt.Sprintf("Column '%s' is not numeric.", e.Column) }

// ColumnError reports an unknown column name.
type ColumnError struct {
	Column string
}

func (e *ColumnError) Error() string { return fmt.Sprintf("Column '%s' not found.", e.Column) }

// Result is the outcome of one aggregate.
type Result struct {
	Op     Operation `json:"-"`
	Column string    `json:"column"`
	Value  float64   `json:"-"`
	// Count is the number of non-missing values aggregated.
	Count int `json:"count"`
	// Integral results are rendered without a fractional part.
	Integral bool `json:"-"`
}

// FormatValue renders Value the way a dataframe prints a scalar: integers
// bare, floats with at least one decimal, NaN as "nan".
func (r Result) FormatValue() string {
	if r.Integral && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) {
		return strconv.FormatFloat(r.Value, 'f', 0, 64)
	}
	return formatFloat(r.Value)
}

// String renders the human-readable result line.
func (r Result) String() string {
	v := r.FormatValue()
	switch r.Op {
	case OpHighest:
		return fmt.Sprintf("📈 Highest value in '%s': %s", r.Column, v)
	case OpLowest:
		return fmt.Sprintf("📉 Lowest value in '%s': %s", r.Column, v)
	case OpAverage:
		return fmt.Sprintf("📊 Average of '%s': %s", r.Column, v)
	default:
		return fmt.Sprintf("🧮 Total sum of '%s': %s", r.Column, v)
	}
}

// NumericColumns lists the columns an aggregate can run on.
func NumericColumns(t *table.Table) []string {
	var out []string
	for _, c := range t.Columns() {
		if c.Kind == table.KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Aggregate computes op over column, skipping missing values. Over zero
// values Sum is 0 and the other operations are NaN.
func Aggregate(t *table.Table, op Operation, column string) (Result, error) {
	c, ok := t.Column(column)
	if !ok {
		return Result{}, &ColumnError{Column: column}
	}
	if c.Kind != table.KindNumeric {
		return Result{}, &TypeError{Column: column, Kind: c.Kind}
	}
	vals := c.Numbers()
	res := Result{Op: op, Column: column, Count: len(vals), Integral: c.Integral}
	switch op {
	case OpHighest:
		res.Value = math.NaN()
		for i, v := range vals {
			if i == 0 || v > res.Value {
				res.Value = v
			}
		}
	case OpLowest:
		res.Value = math.NaN()
		for i, v := range vals {
			if i == 0 || v < res.Value {
				res.Value = v
			}
		}
	case OpSum:
		res.Value = sum(vals)
		if len(vals) == 0 {
			res.Integral = false
		}
	case OpAverage:
		res.Integral = false
		if len(vals) == 0 {
			res.Value = math.NaN()
			break
		}
		res.Value = round2(sum(vals) / float64(len(vals)))
	default:
		return Result{}, fmt.Errorf("unknown operation %v", op)
	}
	return res, nil
}

// Calculate runs Aggregate and always returns display text, converting
// errors and panics into a message.
func Calculate(t *table.Table, op Operation, column string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprintf("⚠️ Calculation Error: %v", r)
		}
	}()
	res, err := Aggregate(t, op, column)
	if err != nil {
		return Describe(err)
	}
	return res.String()
}

// Describe converts an aggregate error to display text.
func Describe(err error) string {
	switch err.(type) {
	case *TypeError, *ColumnError:
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("⚠️ Calculation Error: %v", err)
}

// sum uses Kahan compensation so long columns keep their precision.
func sum(vals []float64) float64 {
	var s, comp float64
	for _, v := range vals {
		y := v - comp
		t := s + y
		comp = (t - s) - y
		s = t
	}
	return s
}

// round2 rounds to 2 decimals, ties to even.
func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

func formatFloat(x float64) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	ax := math.Abs(x)
	if ax != 0 && (ax >= 1e16 || ax < 1e-4) {
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
