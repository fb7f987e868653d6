package inference

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KaramelBytes/datachat-cli/internal/ai"
	"github.com/KaramelBytes/datachat-cli/internal/logger"
)

type stubRuntime struct {
	calls int32
	got   ai.GenerateRequest
	resp  *ai.GenerateResponse
	err   error
	panic bool
}

func (s *stubRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	atomic.AddInt32(&s.calls, 1)
	s.got = req
	if s.panic {
		panic("boom")
	}
	return s.resp, s.err
}

func reply(text string) *ai.GenerateResponse {
	return &ai.GenerateResponse{
		Choices:   []ai.Choice{{Message: ai.Message{Role: "assistant", Content: text}}},
		RequestID: "req_1",
	}
}

func TestAnswerTrimsAndUsesFixedBudget(t *testing.T) {
	rt := &stubRuntime{resp: reply("\n  There are 3 rows.  \n")}
	a := New(rt, "google/flan-t5-large", WithLogger(logger.Discard))
	ans := a.Answer(context.Background(), "how many rows?")
	if !ans.OK() {
		t.Fatalf("unexpected error: %v", ans.Err)
	}
	if ans.Text != "There are 3 rows." || ans.RequestID != "req_1" {
		t.Fatalf("answer = %+v", ans)
	}
	if rt.got.MaxTokens != MaxNewTokens || rt.got.Model != "google/flan-t5-large" {
		t.Fatalf("request = %+v", rt.got)
	}
	if rt.got.Messages[0].Content != "how many rows?" {
		t.Fatalf("prompt not passed verbatim: %q", rt.got.Messages[0].Content)
	}
}

func TestAnswerFailuresProduceFallbackText(t *testing.T) {
	cases := []struct {
		name string
		rt   *stubRuntime
		kind Kind
	}{
		{"unreachable", &stubRuntime{err: &ai.UnreachableError{Host: "api.example", Err: errors.New("dial tcp: refused")}}, KindUnreachable},
		{"auth", &stubRuntime{err: &ai.AuthError{APIError: &ai.APIError{StatusCode: 401, Message: "bad token"}}}, KindAuth},
		{"rate", &stubRuntime{err: &ai.RateLimitError{APIError: &ai.APIError{StatusCode: 429}, RetryAfter: 3 * time.Second}}, KindRateLimit},
		{"missing key", &stubRuntime{err: ai.ErrMissingAPIKey}, KindConfig},
		{"empty", &stubRuntime{resp: reply("   ")}, KindEmpty},
		{"panic", &stubRuntime{panic: true}, KindOther},
		{"other", &stubRuntime{err: errors.New("weird")}, KindOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ans := New(tc.rt, "m", WithLogger(logger.Discard)).Answer(context.Background(), "q")
			if ans.OK() {
				t.Fatalf("expected failure")
			}
			if ans.Err.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", ans.Err.Kind, tc.kind)
			}
			if !strings.HasPrefix(ans.Text, "⚠️ LLM Error: ") {
				t.Fatalf("text = %q", ans.Text)
			}
			if atomic.LoadInt32(&tc.rt.calls) != 1 {
				t.Fatalf("runtime called %d times, want exactly 1", tc.rt.calls)
			}
		})
	}
}

func TestAnswerWithoutRuntime(t *testing.T) {
	ans := New(nil, "m", WithLogger(logger.Discard)).Answer(context.Background(), "q")
	if ans.OK() || ans.Err.Kind != KindConfig {
		t.Fatalf("answer = %+v", ans)
	}
}

func TestAnswerAsyncDeliversOnce(t *testing.T) {
	rt := &stubRuntime{resp: reply("ok")}
	ch := New(rt, "m", WithLogger(logger.Discard)).AnswerAsync(context.Background(), "q")
	select {
	case ans := <-ch:
		if ans.Text != "ok" {
			t.Fatalf("text = %q", ans.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for answer")
	}
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after one answer")
	}
}

func TestClassifyCanceled(t *testing.T) {
	if k := Classify(context.DeadlineExceeded).Kind; k != KindCanceled {
		t.Fatalf("kind = %s", k)
	}
	if h := Classify(&ai.RateLimitError{APIError: &ai.APIError{}, RetryAfter: 2 * time.Second}).Hint; !strings.Contains(h, "2s") {
		t.Fatalf("hint = %q", h)
	}
}
