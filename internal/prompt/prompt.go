// Package prompt assembles the text sent to the language model for a
// question about a loaded dataset.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/datachat-cli/internal/table"
)

const (
	// SampleRows bounds how many leading rows are shown to the model.
	SampleRows = 15
	// maxCell bounds the width of any single rendered value.
	maxCell = 80
)

// ErrNoTable is returned when no dataset is available to describe.
var ErrNoTable = errors.New("no dataset loaded")

// PromptError reports a failure while assembling a prompt.
type PromptError struct {
	Err error
}

func (e *PromptError) Error() string { return fmt.Sprintf("Prompt Error: %v", e.Err) }

func (e *PromptError) Unwrap() error { return e.Err }

// Build renders the prompt for question over the first SampleRows rows of t.
func Build(t *table.Table, question string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", &PromptError{Err: fmt.Errorf("%v", r)}
		}
	}()
	if t == nil {
		return "", &PromptError{Err: ErrNoTable}
	}
	head := t.Head(SampleRows)

	var b strings.Builder
	b.WriteString("You are a professional data analyst. Here's a sample of the dataset:\n\n")
	b.WriteString("Dataset Columns:\n")
	for i, c := range head.Columns() {
		if i > 0 {
			b.WriteByte('\n')
		}
		sample, ok := c.FirstValue()
		if !ok {
			sample = "N/A"
		}
		fmt.Fprintf(&b, "- %s: %s (Sample: %s)", table.Clip(c.Name, maxCell), c.DType(), table.Clip(sample, maxCell))
	}
	b.WriteString("\n\nSample Rows:\n")
	b.WriteString(head.Text(maxCell))
	b.WriteString("\n\nUser Question: ")
	b.WriteString(question)
	b.WriteString("\n\nProvide a concise and accurate answer based on the data:")
	return b.String(), nil
}

// Compose is Build for callers that always need a string: a failure becomes
// a prompt-shaped error message.
func Compose(t *table.Table, question string) string {
	p, err := Build(t, question)
	if err != nil {
		return "⚠️ " + err.Error()
	}
	return p
}
