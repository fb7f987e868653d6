package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/KaramelBytes/datachat-cli/internal/ai"
	"github.com/KaramelBytes/datachat-cli/internal/inference"
	"github.com/KaramelBytes/datachat-cli/internal/logger"
	"github.com/KaramelBytes/datachat-cli/internal/session"
)

type cannedRuntime struct{}

func (cannedRuntime) Generate(context.Context, ai.GenerateRequest) (*ai.GenerateResponse, error) {
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Content: "North"}}}}, nil
}

func TestREPLSession(t *testing.T) {
	home := isolate(t)
	path := writeCSV(t, home)

	sess := session.New(inference.New(cannedRuntime{}, "m", inference.WithLogger(logger.Discard)), session.WithLogger(logger.Discard))
	input := strings.Join([]string{
		"/summary",
		"/load " + path,
		"/columns",
		"/calc Sum Quantity",
		"/calc Average Region",
		"Which region sold the most?",
		"/ask 1",
		"/history",
		"/clear",
		"/history",
		"/bogus",
		"/quit",
		"never reached",
	}, "\n")
	var out bytes.Buffer
	r := &repl{sess: sess, in: strings.NewReader(input), out: &out}
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Please upload a CSV or Excel file",
		"Data loaded successfully! sales.csv: 3 rows x 5 columns",
		"Quantity, Price",
		"Total sum of 'Quantity': 15",
		"Column 'Region' is not numeric.",
		"AI: North",
		"**You:** Which region sold the most?",
		"✓ History cleared",
		"No interactions yet.",
		"unknown command /bogus",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in output:\n%s", want, got)
		}
	}
	if strings.Contains(got, "never reached") {
		t.Fatalf("input after /quit was processed")
	}
	if sess.Log().Len() != 0 {
		t.Fatalf("log should be empty after /clear")
	}
}
