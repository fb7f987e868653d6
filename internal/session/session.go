// Package session holds the per-user context: the loaded table, the
// conversation log and the inference adapter, routed through a small state
// machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qmuntal/stateless"

	"github.com/KaramelBytes/datachat-cli/internal/analysis"
	"github.com/KaramelBytes/datachat-cli/internal/conversation"
	"github.com/KaramelBytes/datachat-cli/internal/inference"
	"github.com/KaramelBytes/datachat-cli/internal/logger"
	"github.com/KaramelBytes/datachat-cli/internal/parser"
	"github.com/KaramelBytes/datachat-cli/internal/prompt"
	"github.com/KaramelBytes/datachat-cli/internal/table"
)

// FSM states
type FSMState stateless.State

var (
	StateEmpty  FSMState = "Empty"
	StateLoaded FSMState = "Loaded"
)

// FSM triggers
type FSMTrigger stateless.Trigger

var (
	TriggerLoad    FSMTrigger = "Load"
	TriggerAnalyze FSMTrigger = "Analyze"
	TriggerAsk     FSMTrigger = "Ask"
	TriggerUnload  FSMTrigger = "Unload"
)

var (
	ErrNoDataset     = errors.New("no dataset loaded; upload a CSV or Excel file first")
	ErrEmptyQuestion = errors.New("question is empty")
)

// Session is not safe for concurrent use; callers serialize access.
type Session struct {
	fsm     *stateless.StateMachine
	tbl     *table.Table
	log     *conversation.Log
	adapter *inference.Adapter
	opts    parser.Options
	logger  *slog.Logger
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger sets the logger for session events.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// WithParseOptions sets the delimiter, sheet and number format used on upload.
func WithParseOptions(o parser.Options) Option { return func(s *Session) { s.opts = o } }

// New returns a session in the Empty state.
func New(adapter *inference.Adapter, opts ...Option) *Session {
	s := &Session{
		log:     conversation.New(),
		adapter: adapter,
		opts:    parser.DefaultOptions(),
		logger:  logger.L,
	}
	for _, o := range opts {
		o(s)
	}
	if s.adapter == nil {
		s.adapter = inference.New(nil, "", inference.WithLogger(s.logger))
	}

	fsm := stateless.NewStateMachine(StateEmpty)
	fsm.Configure(StateEmpty).
		Permit(TriggerLoad, StateLoaded).
		Ignore(TriggerUnload)
	fsm.Configure(StateLoaded).
		PermitReentry(TriggerLoad).
		PermitReentry(TriggerAnalyze).
		PermitReentry(TriggerAsk).
		Permit(TriggerUnload, StateEmpty)
	s.fsm = fsm
	return s
}

// State returns the current state name.
func (s *Session) State() string { return fmt.Sprint(s.fsm.MustState()) }

// Loaded reports whether a table is present.
func (s *Session) Loaded() bool { return s.fsm.MustState() == StateLoaded }

// Table returns the loaded table or nil.
func (s *Session) Table() *table.Table { return s.tbl }

// Upload parses data as the file called name and makes it the session's table.
// On failure the previous table and state are kept.
func (s *Session) Upload(name string, data []byte) (analysis.Summary, error) {
	t, err := parser.Load(name, data, s.opts)
	if err != nil {
		s.logger.Warn("dataset load failed", "file", name, "error", err.Error())
		return analysis.Summary{}, err
	}
	return s.install(t)
}

// LoadFile reads path from disk and uploads it.
func (s *Session) LoadFile(path string) (analysis.Summary, error) {
	t, err := parser.LoadFile(path, s.opts)
	if err != nil {
		s.logger.Warn("dataset load failed", "file", path, "error", err.Error())
		return analysis.Summary{}, err
	}
	return s.install(t)
}

func (s *Session) install(t *table.Table) (analysis.Summary, error) {
	if err := s.fsm.Fire(TriggerLoad); err != nil {
		return analysis.Summary{}, err
	}
	s.tbl = t
	s.logger.Info("dataset loaded",
		"file", t.Name,
		"encoding", t.Encoding,
		"rows", t.Rows(),
		"cols", t.NumCols())
	return analysis.Summarize(t), nil
}

// Unload drops the table. The conversation log is kept.
func (s *Session) Unload() error {
	if err := s.fsm.Fire(TriggerUnload); err != nil {
		return err
	}
	s.tbl = nil
	return nil
}

func (s *Session) require(trigger FSMTrigger) error {
	if s.fsm.MustState() != StateLoaded {
		return ErrNoDataset
	}
	return s.fsm.Fire(trigger)
}

// Preview returns the first n rows (analysis.PreviewRows when n <= 0).
func (s *Session) Preview(n int) (*table.Table, error) {
	if err := s.require(TriggerAnalyze); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = analysis.PreviewRows
	}
	return analysis.Preview(s.tbl, n), nil
}

// Summary returns the structural summary of the loaded table.
func (s *Session) Summary() (analysis.Summary, error) {
	if err := s.require(TriggerAnalyze); err != nil {
		return analysis.Summary{}, err
	}
	return analysis.Summarize(s.tbl), nil
}

// NumericColumns lists the columns eligible for Calculate.
func (s *Session) NumericColumns() ([]string, error) {
	if err := s.require(TriggerAnalyze); err != nil {
		return nil, err
	}
	return analysis.NumericColumns(s.tbl), nil
}

// Calculate runs a quick analysis and records its display text as a SYSTEM
// entry, whether it succeeded or not.
func (s *Session) Calculate(op analysis.Operation, column string) (analysis.Result, error) {
	if err := s.require(TriggerAnalyze); err != nil {
		return analysis.Result{}, err
	}
	s.logger.Debug("aggregate", "op", op.String(), "column", column)
	res, err := aggregate(s.tbl, op, column)
	if err != nil {
		s.log.Append(conversation.System, analysis.Describe(err))
		return analysis.Result{}, err
	}
	s.log.Append(conversation.System, res.String())
	return res, nil
}

func aggregate(t *table.Table, op analysis.Operation, column string) (res analysis.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return analysis.Aggregate(t, op, column)
}

// Ask composes the prompt for question, queries the model and records the
// USER/ASSISTANT pair. Inference failures come back inside the Answer.
func (s *Session) Ask(ctx context.Context, question string) (inference.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return inference.Answer{}, ErrEmptyQuestion
	}
	if err := s.require(TriggerAsk); err != nil {
		return inference.Answer{}, err
	}
	p := prompt.Compose(s.tbl, question)
	ans := s.adapter.Answer(ctx, p)
	s.log.Append(conversation.User, question)
	s.log.Append(conversation.Assistant, ans.Text)
	return ans, nil
}

// AskSuggestion asks the n-th (1-based) suggested question.
func (s *Session) AskSuggestion(ctx context.Context, n int) (inference.Answer, error) {
	q, ok := prompt.Suggestion(n)
	if !ok {
		return inference.Answer{}, fmt.Errorf("no suggested question %d (1-%d)", n, len(prompt.Suggested()))
	}
	return s.Ask(ctx, q)
}

// Prompt returns the prompt that Ask would send, without calling the model.
func (s *Session) Prompt(question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	if s.tbl == nil {
		return "", ErrNoDataset
	}
	return prompt.Build(s.tbl, question)
}

// ClearHistory empties the conversation. The loaded table is kept.
func (s *Session) ClearHistory() { s.log.Clear() }

// History returns a copy of the conversation entries.
func (s *Session) History() []conversation.Entry { return s.log.Render() }

// Log exposes the conversation for formatting.
func (s *Session) Log() *conversation.Log { return s.log }

// Describe converts a session error into the text shown to the user.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var le *parser.LoadError
	var te *analysis.TypeError
	var ce *analysis.ColumnError
	var ie *inference.InferenceError
	switch {
	case errors.As(err, &le):
		return "❌ Failed to process file: " + le.Err.Error()
	case errors.As(err, &te), errors.As(err, &ce):
		return analysis.Describe(err)
	case errors.As(err, &ie):
		if ie.Hint != "" {
			return fmt.Sprintf("⚠️ LLM Error: %v (%s)", ie.Err, ie.Hint)
		}
		return "⚠️ LLM Error: " + ie.Err.Error()
	case errors.Is(err, ErrNoDataset):
		return "⬆️ Please upload a CSV or Excel file"
	case errors.Is(err, ErrEmptyQuestion):
		return "⚠️ Please enter a question"
	}
	return "⚠️ " + err.Error()
}
