package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/KaramelBytes/datachat-cli/internal/table"
)

// maxColumns is the widest sheet a workbook can hold (column XFD).
const maxColumns = 16384

// maxEntryBytes caps the decompressed size of any single archive entry.
var maxEntryBytes int64 = 64 * 10 << 20

var errEntryTooLarge = errors.New("archive entry exceeds size limit")

type xlsxParser struct{}

func (xlsxParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".xlsx")
}

// Parse reads the first sheet of the workbook, or opt.Sheet when set.
// The first row is the header.
func (xlsxParser) Parse(name string, content []byte, opt Options) (t *table.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, &LoadError{Name: name, Err: fmt.Errorf("read xlsx: %v", r)}
		}
	}()
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("open xlsx: %w", err)}
	}
	entry := func(file string) ([]byte, error) {
		b, err := readZipFile(zr, file)
		if err != nil {
			return nil, &LoadError{Name: name, Err: fmt.Errorf("read %s: %w", file, err)}
		}
		return b, nil
	}
	wb, err := entry("xl/workbook.xml")
	if err != nil {
		return nil, err
	}
	sheets := parseWorkbook(wb)
	if len(sheets) == 0 {
		return nil, &LoadError{Name: name, Err: errors.New("open xlsx: workbook has no sheets")}
	}
	relsXML, err := entry("xl/_rels/workbook.xml.rels")
	if err != nil {
		return nil, err
	}
	rels := parseRelationships(relsXML)

	target := ""
	if opt.Sheet != "" {
		found := false
		for _, s := range sheets {
			if strings.EqualFold(s.Name, opt.Sheet) {
				found = true
				target = normalizeRelPath(rels[s.RID])
				break
			}
		}
		if !found {
			names := make([]string, len(sheets))
			for i, s := range sheets {
				names[i] = s.Name
			}
			return nil, &LoadError{Name: name, Err: fmt.Errorf("sheet %q not found; available sheets: %s", opt.Sheet, strings.Join(names, ", "))}
		}
	} else if rel, ok := rels[sheets[0].RID]; ok {
		target = normalizeRelPath(rel)
	}
	if target == "" {
		target = "xl/worksheets/sheet1.xml"
	}
	sheetXML, err := entry(target)
	if err != nil {
		return nil, err
	}
	if sheetXML == nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("open xlsx: missing worksheet %s", target)}
	}
	sharedXML, err := entry("xl/sharedStrings.xml")
	if err != nil {
		return nil, err
	}

	rr := newSheetRowReader(sheetXML, parseSharedStrings(sharedXML))
	header, ok := rr.Next()
	for ok && blankRow(header) {
		header, ok = rr.Next()
	}
	if rr.err != nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("read worksheet: %w", rr.err)}
	}
	if !ok {
		return nil, &LoadError{Name: name, Err: table.ErrNoColumns}
	}
	header = trimTrailingBlank(header)
	var records [][]string
	for {
		row, ok := rr.Next()
		if !ok {
			break
		}
		if blankRow(row) {
			continue
		}
		if len(row) > len(header) {
			row = trimTrailingBlank(row)
		}
		records = append(records, row)
	}
	if rr.err != nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("read worksheet: %w", rr.err)}
	}
	return table.New(name, header, records, opt.Numbers)
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func trimTrailingBlank(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}

type wbSheet struct {
	Name    string
	SheetID int
	RID     string
}

// parseWorkbook extracts sheet entries in workbook order.
func parseWorkbook(data []byte) []wbSheet {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []wbSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.Name = a.Value
			case "sheetId":
				s.SheetID = atoiSafe(a.Value)
			case "id":
				s.RID = a.Value
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships returns map[r:id]Target.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

// readZipFile returns the entry's bytes, or nil when the entry is absent.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		b, err := io.ReadAll(io.LimitReader(rc, maxEntryBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(b)) > maxEntryBytes {
			return nil, errEntryTooLarge
		}
		return b, nil
	}
	return nil, nil
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT, inPhonetic bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "rPh":
				inPhonetic = true
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "rPh":
				inPhonetic = false
			case "si":
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT && !inPhonetic {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows out of a worksheet, placing each cell by its
// A1 reference.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
	inRow  bool
	curRow []string
	err    error
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]string, bool) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				r.inRow = true
				r.curRow = nil
			}
			if r.inRow && se.Name.Local == "c" {
				var ref, typ string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						ref = a.Value
					case "t":
						typ = a.Value
					}
				}
				idx := colIndexFromRef(ref)
				if idx < 0 {
					idx = len(r.curRow)
				}
				if idx >= maxColumns {
					r.err = fmt.Errorf("cell %q is beyond the last column XFD", ref)
					return nil, false
				}
				val := r.readCellValue(typ)
				if len(r.curRow) <= idx {
					tmp := make([]string, idx+1)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.curRow[idx] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				r.inRow = false
				return r.curRow, true
			}
		}
	}
}

// readCellValue consumes tokens up to </c> and returns the display value.
func (r *sheetRowReader) readCellValue(typ string) string {
	var val strings.Builder
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val.String()
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, er := r.dec.Token()
					if er != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && (ed.Name.Local == "v" || ed.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write(ch)
					}
				}
				if typ == "inlineStr" {
					val.WriteString(sb.String())
				} else {
					val.Reset()
					val.WriteString(sb.String())
				}
			}
		case xml.EndElement:
			if se.Name.Local != "c" {
				continue
			}
			v := val.String()
			switch typ {
			case "s":
				idx := atoiSafe(v)
				if idx >= 0 && idx < len(r.shared) {
					return r.shared[idx]
				}
				return ""
			case "b":
				if v == "1" {
					return "TRUE"
				}
				return "FALSE"
			}
			return v
		}
	}
}

// colIndexFromRef maps refs like "C12" to a 0-based column index, or -1.
// Refs past column XFD return maxColumns.
func colIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			i++
			continue
		}
		break
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
		if idx > maxColumns {
			return maxColumns
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts relationship targets to zip entry names.
// Targets may carry a leading slash; zip entries never do.
func normalizeRelPath(rel string) string {
	if rel == "" {
		return ""
	}
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
