package cmd

import (
	"fmt"

	"github.com/KaramelBytes/datachat-cli/internal/analysis"
	"github.com/KaramelBytes/datachat-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	prevFlags  datasetFlags
	prevRows   int
	prevFormat string
	prevOutput string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file>",
	Short: "Load a CSV/TSV/XLSX file and show its first rows and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if prevRows <= 0 {
			return fmt.Errorf("--rows must be positive")
		}
		s, err := loadSession(&prevFlags, args[0])
		if err != nil {
			return err
		}
		head, err := s.Preview(prevRows)
		if err != nil {
			return err
		}
		sum, err := s.Summary()
		if err != nil {
			return err
		}

		var out string
		switch prevFormat {
		case "text", "":
			out = fmt.Sprintf("✅ Data loaded successfully! (%s)\n\n📄 Data Preview\n%s\n\n🔍 Data Summary\n%s\nMissing values per column:\n%s",
				sum.Encoding, head.Text(0), sum.Info(), sum.MissingText())
		case "markdown", "md":
			out = sum.Markdown()
		case "json":
			rows := make([][]string, head.Rows())
			for i := range rows {
				rows[i] = head.Record(i)
			}
			b, err := utils.PrettyJSON(struct {
				Summary analysis.Summary `json:"summary"`
				Columns []string         `json:"columns"`
				Rows    [][]string       `json:"rows"`
			}{sum, head.ColumnNames(), rows})
			if err != nil {
				return err
			}
			out = string(b) + "\n"
		default:
			return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", prevFormat)
		}

		if prevOutput != "" {
			if err := utils.SafeWriteFile(prevOutput, []byte(out)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote preview to %s\n", prevOutput)
			return nil
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	prevFlags.register(previewCmd)
	previewCmd.Flags().IntVar(&prevRows, "rows", analysis.PreviewRows, "number of rows to preview")
	previewCmd.Flags().StringVar(&prevFormat, "format", "text", "output format: text|markdown|json")
	previewCmd.Flags().StringVarP(&prevOutput, "output", "o", "", "optional path to write the preview instead of stdout")
}
