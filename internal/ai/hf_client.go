package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultHFBaseURL is the hosted inference API root.
const DefaultHFBaseURL = "https://api-inference.huggingface.co"

// HFClient calls the Hugging Face text-generation inference API:
// POST {base}/models/{model} with {"inputs": prompt, "parameters": {...}}.
type HFClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      backoff
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	MaxNewTokens   int      `json:"max_new_tokens,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	ReturnFullText bool     `json:"return_full_text"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
}

// NewHFClient allows customizing HTTP timeout and retry/backoff behavior.
// An empty baseURL selects DefaultHFBaseURL.
func NewHFClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *HFClient {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	if baseURL == "" {
		baseURL = DefaultHFBaseURL
	}
	return &HFClient{
		httpClient: &http.Client{Timeout: httpTimeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      backoff{maxAttempts: retryMax, baseDelay: baseDelay, maxDelay: maxDelay},
	}
}

func (c *HFClient) endpoint(model string) string {
	return c.baseURL + "/models/" + strings.TrimLeft(model, "/")
}

// Generate sends one text-generation request, retrying 429/5xx responses and
// transient network errors with exponential backoff.
func (c *HFClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	body := hfRequest{
		Inputs:     req.Text(),
		Parameters: hfParameters{MaxNewTokens: req.MaxTokens},
		Options:    hfOptions{WaitForModel: true},
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Parameters.Temperature = &t
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := c.endpoint(req.Model)
	host := endpoint
	if u, perr := url.Parse(endpoint); perr == nil {
		host = u.Host
	}

	delay := c.retry.baseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retry.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if isRetryableNetErr(err) && attempt < c.retry.maxAttempts {
				lastErr = err
				sleepCtx(ctx, c.retry.wait(&delay))
				continue
			}
			return nil, &UnreachableError{Host: host, Err: err}
		}

		out, retryAfter, err := c.readResponse(resp)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(resp.StatusCode) || attempt >= c.retry.maxAttempts {
			break
		}
		if retryAfter > 0 {
			sleepCtx(ctx, retryAfter)
			continue
		}
		sleepCtx(ctx, c.retry.wait(&delay))
	}
	return nil, lastErr
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// readResponse decodes one HTTP response. retryAfter is set when the
// provider asked for a specific delay.
func (c *HFClient) readResponse(resp *http.Response) (*GenerateResponse, time.Duration, error) {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := apiErrorFromResponse(resp)
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return nil, ra, classifyAPIError(apiErr, resp.Header)
	}
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	text, err := decodeGeneration(raw)
	if err != nil {
		return nil, 0, err
	}
	out := &GenerateResponse{
		Choices:   []Choice{{Message: Message{Role: "assistant", Content: text}}},
		RequestID: extractRequestID(resp),
	}
	out.ID = out.RequestID
	return out, 0, nil
}

// decodeGeneration accepts both the list form [{"generated_text": ...}] and
// the single-object form returned by some deployments.
func decodeGeneration(raw json.RawMessage) (string, error) {
	var list []hfGeneration
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return "", nil
		}
		return list[0].GeneratedText, nil
	}
	var one struct {
		hfGeneration
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &one); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if one.Error != "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: one.Error}
	}
	return one.GeneratedText, nil
}
