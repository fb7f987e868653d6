package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/datachat-cli/internal/ai"
	"github.com/KaramelBytes/datachat-cli/internal/inference"
	"github.com/KaramelBytes/datachat-cli/internal/logger"
	"github.com/KaramelBytes/datachat-cli/internal/parser"
	"github.com/KaramelBytes/datachat-cli/internal/session"
	"github.com/KaramelBytes/datachat-cli/internal/utils"
	"github.com/spf13/cobra"
)

// datasetFlags are shared by every command that reads a file.
type datasetFlags struct {
	delimiter string
	decimal   string
	thousands string
	sheet     string
}

func (d *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&d.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | '|' | 'tab' (default from extension)")
	cmd.Flags().StringVar(&d.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (default '.')")
	cmd.Flags().StringVar(&d.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	cmd.Flags().StringVar(&d.sheet, "sheet", "", "XLSX: sheet name (default first sheet)")
}

func (d *datasetFlags) reset() { *d = datasetFlags{} }

// options merges the flags over the configured parse options.
func (d *datasetFlags) options() (parser.Options, error) {
	opt := parser.DefaultOptions()
	if c, err := currentConfig(); err == nil {
		opt = c.ParseOptions()
	}
	switch strings.ToLower(d.delimiter) {
	case "":
	case ",":
		opt.Delimiter = ','
	case ";":
		opt.Delimiter = ';'
	case "|":
		opt.Delimiter = '|'
	case "\t", "tab", `\t`:
		opt.Delimiter = '\t'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", d.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(d.decimal)) {
	case "":
	case ",", "comma":
		opt.Numbers.Decimal = ','
	case ".", "dot":
		opt.Numbers.Decimal = '.'
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", d.decimal)
	}
	switch strings.ToLower(d.thousands) {
	case "":
	case ",":
		opt.Numbers.Thousands = ','
	case ".":
		opt.Numbers.Thousands = '.'
	case "space", " ":
		opt.Numbers.Thousands = ' '
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", d.thousands)
	}
	if d.sheet != "" {
		opt.Sheet = d.sheet
	}
	return opt, nil
}

// newAdapter builds the inference adapter for the configured provider.
func newAdapter() (*inference.Adapter, error) {
	c, err := currentConfig()
	if err != nil {
		return nil, err
	}
	provider := strings.ToLower(strings.TrimSpace(c.Provider))
	if provider == "" {
		provider = ai.ProviderHuggingFace
	}
	rt, ok := ai.GetRuntime(provider, c.RuntimeConfig())
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (use %s)", c.Provider, strings.Join(ai.Registered(), ", "))
	}
	return inference.New(rt, c.Model, inference.WithProvider(provider), inference.WithLogger(logger.L)), nil
}

// newSession returns a session with the adapter and parse options applied.
func newSession(d *datasetFlags) (*session.Session, error) {
	opt, err := d.options()
	if err != nil {
		return nil, err
	}
	ad, err := newAdapter()
	if err != nil {
		return nil, err
	}
	return session.New(ad, session.WithParseOptions(opt), session.WithLogger(logger.L)), nil
}

// loadSession creates a session and loads path into it.
func loadSession(d *datasetFlags, path string) (*session.Session, error) {
	s, err := newSession(d)
	if err != nil {
		return nil, err
	}
	if _, err := s.LoadFile(path); err != nil {
		return nil, err
	}
	return s, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
