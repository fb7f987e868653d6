package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datachat-cli/internal/analysis"
	"github.com/KaramelBytes/datachat-cli/internal/prompt"
	"github.com/KaramelBytes/datachat-cli/internal/session"
	"github.com/spf13/cobra"
)

var chatFlags datasetFlags

var chatCmd = &cobra.Command{
	Use:   "chat [file]",
	Short: "Interactive session: load a dataset, run quick analyses and ask questions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(&chatFlags)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		r := &repl{sess: s, in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
		if len(args) == 1 {
			r.load(args[0])
		}
		return r.run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatFlags.register(chatCmd)
}

const chatHelp = `Commands:
  /load <file>         load a CSV, TSV or XLSX file
  /preview [n]         show the first n rows (default 10)
  /summary             column types, non-null counts and missing values
  /columns             list numeric columns
  /calc <op> <column>  Highest | Lowest | Average | Sum
  /suggest             list suggested questions
  /ask <n>             ask suggested question n
  /history             show the conversation
  /clear               clear the conversation
  /help                show this help
  /quit                exit
Any other line is sent to the model as a question.`

// repl drives one session from line-oriented input.
type repl struct {
	sess *session.Session
	in   io.Reader
	out  io.Writer
}

func (r *repl) printf(format string, a ...any) { fmt.Fprintf(r.out, format, a...) }

func (r *repl) run(ctx context.Context) error {
	r.printf("DataChat interactive session. Type /help for commands.\n")
	if !r.sess.Loaded() {
		r.printf("%s\n", session.Describe(session.ErrNoDataset))
	}
	sc := bufio.NewScanner(r.in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		r.printf("you> ")
		if !sc.Scan() {
			r.printf("\n")
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		if !strings.HasPrefix(line, "/") {
			r.ask(ctx, line)
			continue
		}
		fields := strings.Fields(line)
		arg := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		switch fields[0] {
		case "/quit", "/exit":
			return nil
		case "/help":
			r.printf("%s\n", chatHelp)
		case "/load":
			if arg == "" {
				r.printf("usage: /load <file>\n")
				continue
			}
			r.load(arg)
		case "/preview":
			n := analysis.PreviewRows
			if arg != "" {
				v, err := strconv.Atoi(arg)
				if err != nil || v <= 0 {
					r.printf("usage: /preview [n]\n")
					continue
				}
				n = v
			}
			t, err := r.sess.Preview(n)
			if err != nil {
				r.printf("%s\n", session.Describe(err))
				continue
			}
			r.printf("%s\n", t.Text(0))
		case "/summary":
			sum, err := r.sess.Summary()
			if err != nil {
				r.printf("%s\n", session.Describe(err))
				continue
			}
			r.printf("%s\nMissing values per column:\n%s", sum.Info(), sum.MissingText())
		case "/columns":
			cols, err := r.sess.NumericColumns()
			if err != nil {
				r.printf("%s\n", session.Describe(err))
				continue
			}
			if len(cols) == 0 {
				r.printf("⚠ No numeric columns available.\n")
				continue
			}
			r.printf("%s\n", strings.Join(cols, ", "))
		case "/calc":
			if len(fields) < 3 {
				r.printf("usage: /calc <Highest|Lowest|Average|Sum> <column>\n")
				continue
			}
			op, err := analysis.ParseOperation(fields[1])
			if err != nil {
				r.printf("%s\n", err)
				continue
			}
			column := strings.TrimSpace(strings.TrimPrefix(arg, fields[1]))
			res, err := r.sess.Calculate(op, column)
			if err != nil {
				r.printf("%s\n", session.Describe(err))
				continue
			}
			r.printf("✓ %s\n", res.String())
		case "/suggest":
			for i, q := range prompt.Suggested() {
				r.printf("%d. %s\n", i+1, q)
			}
		case "/ask":
			n, err := strconv.Atoi(arg)
			if err != nil {
				r.printf("usage: /ask <n> (see /suggest)\n")
				continue
			}
			q, ok := prompt.Suggestion(n)
			if !ok {
				r.printf("no suggested question %d\n", n)
				continue
			}
			r.ask(ctx, q)
		case "/history":
			_ = r.sess.Log().Format(r.out)
		case "/clear":
			r.sess.ClearHistory()
			r.printf("✓ History cleared\n")
		default:
			r.printf("unknown command %s (try /help)\n", fields[0])
		}
	}
}

func (r *repl) load(path string) {
	sum, err := r.sess.LoadFile(path)
	if err != nil {
		r.printf("%s\n", session.Describe(err))
		return
	}
	r.printf("✅ Data loaded successfully! %s: %d rows x %d columns (%s)\n", sum.Name, sum.Rows, len(sum.Columns), sum.Encoding)
}

func (r *repl) ask(ctx context.Context, q string) {
	r.printf("Analyzing your question...\n")
	ans, err := r.sess.Ask(ctx, q)
	if err != nil {
		r.printf("%s\n", session.Describe(err))
		return
	}
	r.printf("AI: %s\n", ans.Text)
	if ans.Err != nil && ans.Err.Hint != "" {
		r.printf("⚠ Hint: %s\n", ans.Err.Hint)
	}
}
