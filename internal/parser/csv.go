package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/KaramelBytes/datachat-cli/internal/table"
)

const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "iso-8859-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvParser struct{}

func (csvParser) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

// Parse decodes content as UTF-8 and, if that fails for any reason, retries
// exactly once as ISO-8859-1.
func (csvParser) Parse(name string, content []byte, opt Options) (*table.Table, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name)
	}
	t, firstErr := parseDelimited(name, bytes.TrimPrefix(content, utf8BOM), delim, opt, true)
	if firstErr == nil {
		t.Encoding = EncodingUTF8
		return t, nil
	}
	latin, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("%s: %v; %s decode: %w", EncodingUTF8, firstErr, EncodingLatin1, err)}
	}
	t, err = parseDelimited(name, latin, delim, opt, false)
	if err != nil {
		return nil, &LoadError{Name: name, Err: fmt.Errorf("%s: %v; %s: %w", EncodingUTF8, firstErr, EncodingLatin1, err)}
	}
	t.Encoding = EncodingLatin1
	return t, nil
}

func parseDelimited(name string, data []byte, delim rune, opt Options, strictUTF8 bool) (*table.Table, error) {
	if strictUTF8 && !utf8.Valid(data) {
		return nil, errors.New("invalid utf-8 byte sequence")
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.Comma = delim

	var header []string
	var records [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if header == nil {
			header = rec
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(header) > 1 {
			continue
		}
		records = append(records, rec)
	}
	if len(header) == 0 {
		return nil, table.ErrNoColumns
	}
	return table.New(name, header, records, opt.Numbers)
}

func sniffDelimiter(name string) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	return ','
}
