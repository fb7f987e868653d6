package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/datachat-cli/internal/table"
)

// Parser turns the raw bytes of one tabular file format into a Table.
type Parser interface {
	CanParse(filename string) bool
	Parse(name string, content []byte, opt Options) (*table.Table, error)
}

// Options tune how sources are decoded.
type Options struct {
	// Delimiter for delimited text. If 0, derived from the file extension.
	Delimiter rune
	// Sheet selects a workbook sheet by name. Empty means the first sheet.
	Sheet string
	// Numbers controls numeric cell parsing.
	Numbers table.NumberFormat
}

// DefaultOptions returns the options used when the caller has no preference.
func DefaultOptions() Options {
	return Options{Numbers: table.DefaultNumberFormat()}
}

// ErrUnsupported indicates a format is not supported.
var ErrUnsupported = errors.New("unsupported file format")

// LoadError reports that a file could not be turned into a Table.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("load failed: %v", e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var registry []Parser

// Register adds a parser implementation to the registry.
func Register(p Parser) {
	registry = append(registry, p)
}

// Supported lists the extensions handled by registered parsers.
func Supported() []string {
	return []string{".csv", ".tsv", ".xlsx"}
}

// Load selects a parser from the file name and parses data. It never returns
// a partial table alongside an error.
func Load(name string, data []byte, opt Options) (*table.Table, error) {
	base := filepath.Base(name)
	for _, p := range registry {
		if !p.CanParse(base) {
			continue
		}
		t, err := p.Parse(base, data, opt)
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				return nil, err
			}
			return nil, &LoadError{Name: base, Err: err}
		}
		return t, nil
	}
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		ext = "(none)"
	}
	return nil, &LoadError{Name: base, Err: fmt.Errorf("%w: %s (supported: %s)", ErrUnsupported, ext, strings.Join(Supported(), ", "))}
}

// LoadFile reads path from disk and delegates to Load.
func LoadFile(path string, opt Options) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Name: filepath.Base(path), Err: fmt.Errorf("read file: %w", err)}
	}
	return Load(path, data, opt)
}

func init() {
	Register(csvParser{})
	Register(xlsxParser{})
}
