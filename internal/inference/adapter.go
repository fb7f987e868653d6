// Package inference turns a composed prompt into an answer string using a
// configured text generation runtime. It never retries: any retry or timeout
// behaviour belongs to the runtime.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KaramelBytes/datachat-cli/internal/ai"
	"github.com/KaramelBytes/datachat-cli/internal/logger"
	"github.com/KaramelBytes/datachat-cli/internal/utils"
)

// MaxNewTokens is the fixed generation budget per answer.
const MaxNewTokens = 100

// Kind classifies an inference failure.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindRateLimit     Kind = "rate_limit"
	KindModelNotFound Kind = "model_not_found"
	KindModelLoading  Kind = "model_loading"
	KindBadRequest    Kind = "bad_request"
	KindQuota         Kind = "quota"
	KindServer        Kind = "server"
	KindUnreachable   Kind = "unreachable"
	KindEmpty         Kind = "empty"
	KindConfig        Kind = "config"
	KindCanceled      Kind = "canceled"
	KindOther         Kind = "other"
)

// InferenceError wraps a runtime failure with its classification and a hint
// for the user.
type InferenceError struct {
	Kind Kind
	Hint string
	Err  error
}

func (e *InferenceError) Error() string { return e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// Answer is the outcome of one question. Text is always set: the model's
// reply on success, a fallback error message otherwise.
type Answer struct {
	Text      string          `json:"text"`
	Err       *InferenceError `json:"-"`
	RequestID string          `json:"request_id,omitempty"`
	Duration  time.Duration   `json:"-"`
}

// OK reports whether the answer came from the model.
func (a Answer) OK() bool { return a.Err == nil }

// Adapter issues single text generation requests.
type Adapter struct {
	runtime  ai.Runtime
	model    string
	provider string
	log      *slog.Logger
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for request and failure records.
func WithLogger(l *slog.Logger) Option { return func(a *Adapter) { a.log = l } }

// WithProvider records the provider name in logs.
func WithProvider(p string) Option { return func(a *Adapter) { a.provider = p } }

// New returns an Adapter for model on runtime.
func New(runtime ai.Runtime, model string, opts ...Option) *Adapter {
	a := &Adapter{runtime: runtime, model: model, log: logger.L}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Model returns the configured model name.
func (a *Adapter) Model() string { return a.model }

// Answer sends prompt and blocks until the runtime replies. It never panics
// and never returns without Text.
func (a *Adapter) Answer(ctx context.Context, prompt string) (ans Answer) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			ans = a.fail(&InferenceError{Kind: KindOther, Err: fmt.Errorf("runtime panic: %v", r)}, start)
		}
	}()
	if a.runtime == nil {
		return a.fail(&InferenceError{Kind: KindConfig, Hint: "configure a provider with 'datachat config set provider <name>'", Err: errors.New("no inference runtime configured")}, start)
	}
	a.log.Debug("inference request",
		"provider", a.provider,
		"model", a.model,
		"prompt_tokens_est", utils.CountTokens(prompt),
		"max_new_tokens", MaxNewTokens)

	resp, err := a.runtime.Generate(ctx, ai.UserPrompt(a.model, prompt, MaxNewTokens))
	if err != nil {
		return a.fail(Classify(err), start)
	}
	text := strings.TrimSpace(resp.Content())
	if text == "" {
		return a.fail(&InferenceError{Kind: KindEmpty, Hint: "the model returned no text; try rephrasing the question", Err: &ai.EmptyResponseError{RequestID: resp.RequestID}}, start)
	}
	ans = Answer{Text: text, RequestID: resp.RequestID, Duration: time.Since(start)}
	a.log.Info("inference ok",
		"provider", a.provider,
		"model", a.model,
		"request_id", resp.RequestID,
		"duration_ms", ans.Duration.Milliseconds())
	return ans
}

// AnswerAsync runs Answer in the background and delivers exactly one result
// on the returned channel. There is no implicit cancellation: the caller
// blocks on or awaits the channel, and ctx is only passed to the runtime.
func (a *Adapter) AnswerAsync(ctx context.Context, prompt string) <-chan Answer {
	ch := make(chan Answer, 1)
	go func() {
		ch <- a.Answer(ctx, prompt)
		close(ch)
	}()
	return ch
}

func (a *Adapter) fail(ie *InferenceError, start time.Time) Answer {
	a.log.Error("inference failed",
		"provider", a.provider,
		"model", a.model,
		"kind", string(ie.Kind),
		"error", ie.Err.Error(),
		"duration_ms", time.Since(start).Milliseconds())
	return Answer{Text: "⚠️ LLM Error: " + ie.Err.Error(), Err: ie, Duration: time.Since(start)}
}

// Classify maps runtime errors onto an InferenceError with a user hint.
func Classify(err error) *InferenceError {
	var (
		authErr    *ai.AuthError
		rateErr    *ai.RateLimitError
		mnfErr     *ai.ModelNotFoundError
		loadingErr *ai.ModelLoadingError
		badReq     *ai.BadRequestError
		quotaErr   *ai.QuotaExceededError
		srvErr     *ai.ServerError
		unreach    *ai.UnreachableError
		emptyErr   *ai.EmptyResponseError
	)
	switch {
	case errors.As(err, &authErr):
		return &InferenceError{Kind: KindAuth, Err: err, Hint: "check your API key (DATACHAT_API_KEY / HF_TOKEN or 'datachat config set api_key ...')"}
	case errors.As(err, &rateErr):
		hint := "rate limited by the provider; wait a moment and retry"
		if rateErr.RetryAfter > 0 {
			hint = fmt.Sprintf("rate limited; retry after about %ds", int(rateErr.RetryAfter.Seconds()))
		}
		return &InferenceError{Kind: KindRateLimit, Err: err, Hint: hint}
	case errors.As(err, &mnfErr):
		return &InferenceError{Kind: KindModelNotFound, Err: err, Hint: "verify the model name with --model or 'datachat config set model ...'"}
	case errors.As(err, &loadingErr):
		return &InferenceError{Kind: KindModelLoading, Err: err, Hint: "the hosted model is warming up; try again shortly"}
	case errors.As(err, &badReq):
		return &InferenceError{Kind: KindBadRequest, Err: err, Hint: "the provider rejected the request; the prompt may be too long for this model"}
	case errors.As(err, &quotaErr):
		return &InferenceError{Kind: KindQuota, Err: err, Hint: "provider quota or billing limit reached"}
	case errors.As(err, &srvErr):
		return &InferenceError{Kind: KindServer, Err: err, Hint: "the provider had an internal error; retry later"}
	case errors.As(err, &unreach):
		return &InferenceError{Kind: KindUnreachable, Err: err, Hint: "could not reach the inference endpoint; check network access and base_url"}
	case errors.As(err, &emptyErr):
		return &InferenceError{Kind: KindEmpty, Err: err, Hint: "the model returned no text"}
	case errors.Is(err, ai.ErrMissingAPIKey):
		return &InferenceError{Kind: KindConfig, Err: err, Hint: "set DATACHAT_API_KEY or HF_TOKEN, or run 'datachat config set api_key ...'"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &InferenceError{Kind: KindCanceled, Err: err, Hint: "the request was canceled or timed out"}
	}
	return &InferenceError{Kind: KindOther, Err: err}
}
