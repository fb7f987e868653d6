package table

import (
	"strings"
	"unicode/utf8"
)

// Text renders every row of t as an aligned plain-text grid: a header line and
// one line per row, each column right-justified to its widest value, no index
// column. Values longer than maxCell runes are cut and suffixed with "...";
// maxCell <= 0 disables the cap.
func (t *Table) Text(maxCell int) string {
	ncol := len(t.cols)
	if ncol == 0 {
		return ""
	}
	grid := make([][]string, 0, t.rows+1)
	grid = append(grid, t.ColumnNames())
	for i := 0; i < t.rows; i++ {
		grid = append(grid, t.Record(i))
	}
	widths := make([]int, ncol)
	for r := range grid {
		for j := range grid[r] {
			v := Clip(grid[r][j], maxCell)
			grid[r][j] = v
			if w := utf8.RuneCountInString(v); w > widths[j] {
				widths[j] = w
			}
		}
	}
	var b strings.Builder
	for r, row := range grid {
		if r > 0 {
			b.WriteByte('\n')
		}
		for j, v := range row {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.Repeat(" ", widths[j]-utf8.RuneCountInString(v)))
			b.WriteString(v)
		}
	}
	return b.String()
}

// Clip flattens line breaks and shortens s to at most max runes.
func Clip(s string, max int) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
