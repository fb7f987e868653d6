package cmd

import (
	"fmt"

	"github.com/KaramelBytes/datachat-cli/internal/prompt"
	"github.com/spf13/cobra"
)

var suggestJSON bool

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "List the suggested questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		qs := prompt.Suggested()
		if suggestJSON {
			return printJSON(cmd.OutOrStdout(), qs)
		}
		for i, q := range qs {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "print as JSON")
}
