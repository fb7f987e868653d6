package parser_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/datachat-cli/internal/parser"
)

func TestLoadCSVShape(t *testing.T) {
	var b strings.Builder
	b.WriteString("a,b,c,d\n")
	for i := 0; i < 37; i++ {
		fmt.Fprintf(&b, "%d,%d.5,x%d,\n", i, i, i)
	}
	tb, err := parser.Load("data.csv", []byte(b.String()), parser.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tb.Rows() != 37 || tb.NumCols() != 4 {
		t.Fatalf("shape = %dx%d, want 37x4", tb.Rows(), tb.NumCols())
	}
	if tb.Encoding != parser.EncodingUTF8 {
		t.Fatalf("encoding = %s", tb.Encoding)
	}
	if tb.Name != "data.csv" {
		t.Fatalf("name = %s", tb.Name)
	}
}

func TestLoadCSVLatin1Fallback(t *testing.T) {
	// "café" and "naïve" encoded as ISO-8859-1 bytes.
	data := []byte("name,score\ncaf\xe9,1\nna\xefve,2\n")
	tb, err := parser.Load("latin.csv", data, parser.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tb.Encoding != parser.EncodingLatin1 {
		t.Fatalf("encoding = %s, want %s", tb.Encoding, parser.EncodingLatin1)
	}
	col, _ := tb.Column("name")
	if col.Cells[0].Raw != "café" || col.Cells[1].Raw != "naïve" {
		t.Fatalf("decoded values = %q, %q", col.Cells[0].Raw, col.Cells[1].Raw)
	}
}

func TestLoadCSVStripsBOM(t *testing.T) {
	tb, err := parser.Load("bom.csv", []byte("\xef\xbb\xbfid,v\n1,2\n"), parser.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := tb.Column("id"); !ok {
		t.Fatalf("expected column id, got %v", tb.ColumnNames())
	}
}

func TestLoadTSV(t *testing.T) {
	tb, err := parser.Load("d.tsv", []byte("a\tb\n1\t2\n3\t4\n"), parser.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tb.NumCols() != 2 || tb.Rows() != 2 {
		t.Fatalf("shape = %dx%d", tb.Rows(), tb.NumCols())
	}
}

func TestLoadCSVStrayQuotes(t *testing.T) {
	tb, err := parser.Load("q.csv", []byte("a,b\n1,he said \"hi\"\n2,5\" pipe\n"), parser.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tb.Rows() != 2 || tb.Encoding != parser.EncodingUTF8 {
		t.Fatalf("rows = %d encoding = %s", tb.Rows(), tb.Encoding)
	}
	b, _ := tb.Column("b")
	if b.Cells[0].Raw != `he said "hi"` || b.Cells[1].Raw != `5" pipe` {
		t.Fatalf("b cells = %+v", b.Cells)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty.csv", ""},
		{"ragged.csv", "a,b\n1,2,3\n"},
		{"notes.txt", "hello"},
		{"broken.xlsx", "not a zip"},
	}
	for _, tc := range cases {
		tb, err := parser.Load(tc.name, []byte(tc.data), parser.DefaultOptions())
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if tb != nil {
			t.Fatalf("%s: partial table returned with error", tc.name)
		}
		var le *parser.LoadError
		if !errors.As(err, &le) {
			t.Fatalf("%s: expected *LoadError, got %T: %v", tc.name, err, err)
		}
	}
	_, err := parser.Load("notes.txt", []byte("x"), parser.DefaultOptions())
	if !errors.Is(err, parser.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sales.csv")
	if err := os.WriteFile(p, []byte("region,units\nn,3\ns,4\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tb, err := parser.LoadFile(p, parser.DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tb.Name != "sales.csv" || tb.Rows() != 2 {
		t.Fatalf("unexpected table %s rows=%d", tb.Name, tb.Rows())
	}
	if _, err := parser.LoadFile(filepath.Join(dir, "missing.csv"), parser.DefaultOptions()); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
