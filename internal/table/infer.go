package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NumberFormat selects the separators used when parsing numeric cells.
type NumberFormat struct {
	// Decimal separator. 0 auto-detects per value between '.' and ','.
	Decimal rune
	// Thousands separator. 0 means none, unless Decimal is auto-detected.
	Thousands rune
}

// DefaultNumberFormat parses plain numbers such as "1234.5" and "-3e2".
func DefaultNumberFormat() NumberFormat { return NumberFormat{Decimal: '.'} }

var missingTokens = map[string]bool{
	"": true, "NA": true, "N/A": true, "n/a": true, "NaN": true, "nan": true,
	"-NaN": true, "-nan": true, "NULL": true, "null": true, "None": true,
	"<NA>": true, "#N/A": true, "#NA": true, "#N/A N/A": true,
	"1.#IND": true, "-1.#IND": true, "1.#QNAN": true, "-1.#QNAN": true,
}

// IsMissing reports whether a raw (trimmed) value denotes a missing entry.
func IsMissing(s string) bool { return missingTokens[s] }

func buildColumn(name string, raw []string, nf NumberFormat) *Column {
	c := &Column{Name: name, Cells: make([]Cell, len(raw))}
	present := 0
	for i, v := range raw {
		v = strings.TrimSpace(v)
		c.Cells[i] = Cell{Raw: v, Missing: IsMissing(v)}
		if !c.Cells[i].Missing {
			present++
		}
	}

	// numeric
	numeric, integral := true, present == len(raw) && present > 0
	nums := make([]float64, len(raw))
	for i, cell := range c.Cells {
		if cell.Missing {
			nums[i] = math.NaN()
			continue
		}
		x, whole, ok := ParseNumber(cell.Raw, nf)
		if !ok {
			numeric = false
			break
		}
		nums[i] = x
		integral = integral && whole
	}
	if numeric {
		c.Kind = KindNumeric
		c.Integral = integral
		for i := range c.Cells {
			c.Cells[i].Num = nums[i]
		}
		return c
	}

	// A missing value turns a boolean column into an object column.
	if present == len(raw) && all(c.Cells, func(s string) bool { _, ok := parseBool(s); return ok }) {
		c.Kind = KindBoolean
		return c
	}
	if all(c.Cells, func(s string) bool { _, ok := ParseTime(s); return ok }) {
		c.Kind = KindDatetime
		return c
	}
	c.Kind = KindText
	return c
}

func all(cells []Cell, pred func(string) bool) bool {
	for _, cell := range cells {
		if cell.Missing {
			continue
		}
		if !pred(cell.Raw) {
			return false
		}
	}
	return true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// ParseTime recognizes the common date and timestamp layouts.
func ParseTime(s string) (time.Time, bool) {
	layouts := []string{
		time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
		"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses s according to nf. whole reports that the token is an
// integer literal (no fraction or exponent).
func ParseNumber(s string, nf NumberFormat) (x float64, whole bool, ok bool) {
	raw := strings.TrimSpace(strings.ReplaceAll(s, "\u00A0", " "))
	if raw == "" {
		return 0, false, false
	}
	lower := strings.ToLower(strings.TrimLeft(raw, "+-"))
	if strings.HasPrefix(lower, "0x") || strings.Contains(lower, "_") {
		return 0, false, false
	}
	dec, thou := nf.Decimal, nf.Thousands
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0 && cpos > dpos:
			dec, thou = ',', '.'
		case cpos >= 0 && dpos >= 0:
			dec, thou = '.', ','
		case cpos >= 0:
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou != 0 && thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		if strings.Contains(raw, ".") {
			return 0, false, false
		}
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	if strings.ContainsRune(raw, ' ') {
		return 0, false, false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return float64(i), true, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, false
	}
	return f, false, true
}
