package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/datachat-cli/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		min  int
	}{
		{"empty", "", 0},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 900}, // heuristic ~ 1 tok ≈ 4 chars
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got < c.min {
			t.Errorf("%s: got %d < min %d", c.name, got, c.min)
		}
	}
	if utils.CountTokens("a") != 1 {
		t.Fatalf("non-empty text must count at least one token")
	}
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{"context": strings.Repeat("x", 400), "question": ""})
	if got["context"] != 100 || got["question"] != 0 {
		t.Fatalf("breakdown = %v", got)
	}
}
