package analysis

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/KaramelBytes/datachat-cli/internal/table"
)

// PreviewRows is how many leading rows a preview shows.
const PreviewRows = 10

// sampleRows is how many leading rows the markdown report carries.
const sampleRows = 5

// Preview returns the first n rows of t, unmodified.
func Preview(t *table.Table, n int) *table.Table {
	return t.Head(n)
}

// ColumnSummary captures inferred type and missing-value counts per column.
type ColumnSummary struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	DType   string `json:"dtype"`
	NonNull int    `json:"non_null"`
	Missing int    `json:"missing"`
	// Sample is the first non-missing value, empty when the column has none.
	Sample string `json:"sample,omitempty"`
}

// Summary is a structural description of a table.
type Summary struct {
	Name        string          `json:"name"`
	Encoding    string          `json:"encoding,omitempty"`
	Rows        int             `json:"rows"`
	Columns     []ColumnSummary `json:"columns"`
	MemoryBytes uint64          `json:"memory_bytes"`

	samples [][]string
}

// MissingCount is the number of missing entries in one column.
type MissingCount struct {
	Column  string `json:"column"`
	Missing int    `json:"missing"`
}

// Summarize derives a Summary from t. It is deterministic and does not modify t.
func Summarize(t *table.Table) Summary {
	s := Summary{Name: t.Name, Encoding: t.Encoding, Rows: t.Rows()}
	for _, c := range t.Columns() {
		miss := c.MissingCount()
		sample, _ := c.FirstValue()
		s.Columns = append(s.Columns, ColumnSummary{
			Name:    c.Name,
			Kind:    c.Kind.String(),
			DType:   c.DType(),
			NonNull: len(c.Cells) - miss,
			Missing: miss,
			Sample:  sample,
		})
		s.MemoryBytes += columnBytes(c)
	}
	// range index overhead
	s.MemoryBytes += 128
	head := t.Head(sampleRows)
	for i := 0; i < head.Rows(); i++ {
		s.samples = append(s.samples, head.Record(i))
	}
	return s
}

// columnBytes approximates the in-memory size of a column as a dataframe would
// report it: fixed width for numbers and timestamps, one byte per boolean and
// a pointer per object cell.
func columnBytes(c *table.Column) uint64 {
	n := uint64(len(c.Cells))
	switch c.Kind {
	case table.KindBoolean:
		return n
	default:
		return 8 * n
	}
}

// Missing returns per-column missing counts in column order.
func (s Summary) Missing() []MissingCount {
	out := make([]MissingCount, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = MissingCount{Column: c.Name, Missing: c.Missing}
	}
	return out
}

// DTypeCounts returns "dtype(count)" entries sorted by dtype name.
func (s Summary) DTypeCounts() []string {
	counts := map[string]int{}
	for _, c := range s.Columns {
		counts[c.DType]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s(%d)", k, counts[k])
	}
	return out
}

// Info renders the structural summary: entry count, one line per column with
// its non-null count and dtype, dtype totals and memory usage.
func (s Summary) Info() string {
	var b strings.Builder
	if s.Name != "" {
		fmt.Fprintf(&b, "Dataset: %s\n", s.Name)
	}
	if s.Rows > 0 {
		fmt.Fprintf(&b, "RangeIndex: %d entries, 0 to %d\n", s.Rows, s.Rows-1)
	} else {
		b.WriteString("RangeIndex: 0 entries\n")
	}
	fmt.Fprintf(&b, "Data columns (total %d columns):\n", len(s.Columns))
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " #\tColumn\tNon-Null Count\tDtype")
	fmt.Fprintln(tw, "---\t------\t--------------\t-----")
	for i, c := range s.Columns {
		fmt.Fprintf(tw, " %d\t%s\t%d non-null\t%s\n", i, table.Clip(c.Name, 40), c.NonNull, c.DType)
	}
	_ = tw.Flush()
	fmt.Fprintf(&b, "dtypes: %s\n", strings.Join(s.DTypeCounts(), ", "))
	fmt.Fprintf(&b, "memory usage: %s\n", humanize.IBytes(s.MemoryBytes))
	return b.String()
}

// MissingText renders the missing-value counts one column per line.
func (s Summary) MissingText() string {
	width := 0
	for _, c := range s.Columns {
		if len(c.Name) > width {
			width = len(c.Name)
		}
	}
	var b strings.Builder
	for _, m := range s.Missing() {
		fmt.Fprintf(&b, "%-*s  %d\n", width, m.Column, m.Missing)
	}
	return b.String()
}

// Markdown renders a compact report suitable for documents or prompts.
func (s Summary) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if s.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", s.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %s\n", humanize.Comma(int64(s.Rows))))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(s.Columns)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range s.Columns {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", safeName(c.Name), c.DType, c.NonNull, missPct))
		if c.Sample != "" {
			b.WriteString(fmt.Sprintf(", e.g. %s", safeVal(table.Clip(c.Sample, 80))))
		}
		b.WriteString("\n")
	}
	if len(s.samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n| ")
		for i, c := range s.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeVal(safeName(c.Name)))
		}
		b.WriteString(" |\n| ")
		for i := range s.Columns {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range s.samples {
			b.WriteString("| ")
			for i, v := range row {
				if i > 0 {
					b.WriteString(" | ")
				}
				b.WriteString(safeVal(table.Clip(v, 80)))
			}
			b.WriteString(" |\n")
		}
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
