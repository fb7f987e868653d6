package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/datachat-cli/internal/analysis"
	"github.com/spf13/cobra"
)

var (
	calcFlags  datasetFlags
	calcOp     string
	calcColumn string
	calcJSON   bool
)

var calcCmd = &cobra.Command{
	Use:   "calc <file>",
	Short: "Compute Highest, Lowest, Average or Sum of a numeric column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := analysis.ParseOperation(calcOp)
		if err != nil {
			return err
		}
		s, err := loadSession(&calcFlags, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if calcColumn == "" {
			cols, _ := s.NumericColumns()
			if len(cols) == 0 {
				return errors.New("no numeric columns available")
			}
			return fmt.Errorf("--column is required (numeric columns: %s)", strings.Join(cols, ", "))
		}
		res, err := s.Calculate(op, calcColumn)
		var te *analysis.TypeError
		var ce *analysis.ColumnError
		if errors.As(err, &te) || errors.As(err, &ce) {
			if calcJSON {
				return printJSON(out, map[string]any{"error": err.Error(), "result": analysis.Describe(err)})
			}
			fmt.Fprintln(out, analysis.Describe(err))
			return nil
		}
		if err != nil {
			return err
		}
		if calcJSON {
			return printJSON(out, map[string]any{
				"operation": res.Op.String(),
				"column":    res.Column,
				"value":     res.FormatValue(),
				"count":     res.Count,
				"result":    res.String(),
			})
		}
		fmt.Fprintln(out, res.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(calcCmd)
	calcFlags.register(calcCmd)
	calcCmd.Flags().StringVar(&calcOp, "op", "Sum", "operation: Highest|Lowest|Average|Sum")
	calcCmd.Flags().StringVarP(&calcColumn, "column", "c", "", "numeric column to aggregate")
	calcCmd.Flags().BoolVar(&calcJSON, "json", false, "print the result as JSON")
}
