package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// chatCompleter is the subset of *openai.Client used here; tests substitute it.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient targets any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client  chatCompleter
	baseURL string
	hasKey  bool
}

// NewOpenAIClient builds a client; an empty baseURL keeps the library default.
func NewOpenAIClient(apiKey, baseURL string, httpTimeout time.Duration) *OpenAIClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{Timeout: httpTimeout}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		baseURL: config.BaseURL,
		hasKey:  apiKey != "",
	}
}

// Generate issues one chat completion. Retries are left to the caller.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if !c.hasKey {
		return nil, ErrMissingAPIKey
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, c.mapError(err)
	}
	out := &GenerateResponse{
		ID: resp.ID,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		RequestID: resp.Header().Get("X-Request-Id"),
	}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{Message: Message{Role: ch.Message.Role, Content: ch.Message.Content}})
	}
	return out, nil
}

// mapError converts go-openai errors onto this package's typed errors.
func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
		if apiErr.Code != nil {
			e.Code = fmt.Sprint(apiErr.Code)
		}
		return classifyAPIError(e, http.Header{})
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		e := &APIError{StatusCode: reqErr.HTTPStatusCode}
		if reqErr.Err != nil {
			e.Message = reqErr.Err.Error()
		}
		return classifyAPIError(e, http.Header{})
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &UnreachableError{Host: c.baseURL, Err: err}
}
