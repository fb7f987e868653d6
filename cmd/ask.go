package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/KaramelBytes/datachat-cli/internal/prompt"
	"github.com/KaramelBytes/datachat-cli/internal/session"
	"github.com/KaramelBytes/datachat-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	askFlags      datasetFlags
	askDryRun     bool
	askJSON       bool
	askSuggestion int
)

var askCmd = &cobra.Command{
	Use:   "ask <file> [question]",
	Short: "Ask a natural-language question about a dataset",
	Long: `Ask sends the column list and the first 15 rows of the dataset together with
your question to the configured model. Use --suggestion N to ask one of the
suggested questions (see 'datachat suggest'), or --dry-run to print the prompt
without calling the model.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := ""
		if len(args) == 2 {
			question = args[1]
		}
		if question == "" && askSuggestion > 0 {
			q, ok := prompt.Suggestion(askSuggestion)
			if !ok {
				return fmt.Errorf("--suggestion must be between 1 and %d", len(prompt.Suggested()))
			}
			question = q
		}
		s, err := loadSession(&askFlags, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if askDryRun {
			p, err := s.Prompt(question)
			if err != nil {
				return err
			}
			if askJSON {
				return printJSON(out, map[string]any{
					"question":          question,
					"prompt":            p,
					"prompt_tokens_est": utils.CountTokens(p),
					"tokens":            utils.TokenBreakdown(map[string]string{"question": question, "prompt": p}),
				})
			}
			fmt.Fprintln(out, "--- Prompt (dry run) ---")
			fmt.Fprintln(out, p)
			fmt.Fprintf(out, "--- ~%d tokens ---\n", utils.CountTokens(p))
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		ans, err := s.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, session.ErrEmptyQuestion) {
				return errors.New("a question or --suggestion is required")
			}
			return err
		}
		if askJSON {
			res := map[string]any{"question": question, "answer": ans.Text}
			if ans.RequestID != "" {
				res["request_id"] = ans.RequestID
			}
			if ans.Err != nil {
				res["error"] = string(ans.Err.Kind)
				res["hint"] = ans.Err.Hint
			}
			return printJSON(out, res)
		}
		fmt.Fprintf(out, "You: %s\n", question)
		fmt.Fprintf(out, "AI: %s\n", ans.Text)
		if ans.Err != nil {
			if ans.Err.Hint != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Hint: %s\n", ans.Err.Hint)
			}
			return fmt.Errorf("inference failed (%s)", ans.Err.Kind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askFlags.register(askCmd)
	askCmd.Flags().BoolVar(&askDryRun, "dry-run", false, "print the prompt without calling the model")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	askCmd.Flags().IntVar(&askSuggestion, "suggestion", 0, "ask the N-th suggested question (1-based)")
}
