package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type ipv4Server struct {
	URL string
	srv *http.Server
	ln  net.Listener
}

func newIPv4Server(t *testing.T, handler http.Handler) *ipv4Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: handler}
	s := &ipv4Server{
		URL: "http://" + ln.Addr().String(),
		srv: srv,
		ln:  ln,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("test server serve: %v", err))
		}
	}()
	return s
}

func (s *ipv4Server) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}

// closedAddr returns the URL of a port that was just released, so dialing it fails.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: cannot open local listener (%v)", err)
	}
	addr := "http://" + ln.Addr().String()
	_ = ln.Close()
	return addr
}

func hfSequence(t *testing.T, statuses []int, headers []http.Header, okBody any) (*ipv4Server, *int32) {
	t.Helper()
	var idx int32
	return newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/models/google/flan-t5-large" {
			http.NotFound(w, r)
			return
		}
		i := int(atomic.AddInt32(&idx, 1)) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		if headers != nil && i < len(headers) {
			for k, vals := range headers[i] {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}
		}
		st := statuses[i]
		w.WriteHeader(st)
		if st >= 200 && st < 300 {
			_ = json.NewEncoder(w).Encode(okBody)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "rate limited"})
	})), &idx
}

func TestHFGenerateSendsTextGenerationPayload(t *testing.T) {
	var got hfRequest
	var auth string
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("X-Request-Id", "req_hf_1")
		_ = json.NewEncoder(w).Encode([]map[string]any{{"generated_text": "  42 rows  "}})
	}))
	defer srv.Close()

	c := NewHFClient("hf_test", srv.URL, 2*time.Second, 1, 0, 0)
	resp, err := c.Generate(context.Background(), UserPrompt("google/flan-t5-large", "how many rows?", 100))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content() != "  42 rows  " {
		t.Fatalf("content = %q", resp.Content())
	}
	if resp.RequestID != "req_hf_1" {
		t.Fatalf("request id = %q", resp.RequestID)
	}
	if auth != "Bearer hf_test" {
		t.Fatalf("authorization header = %q", auth)
	}
	if got.Inputs != "how many rows?" || got.Parameters.MaxNewTokens != 100 || got.Parameters.ReturnFullText || !got.Options.WaitForModel {
		t.Fatalf("payload = %+v", got)
	}
}

func TestHFGenerateSingleObjectResponse(t *testing.T) {
	srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"generated_text": "ok"})
	}))
	defer srv.Close()
	c := NewHFClient("k", srv.URL, 2*time.Second, 1, 0, 0)
	resp, err := c.Generate(context.Background(), UserPrompt("m", "p", 10))
	if err != nil || resp.Content() != "ok" {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
}

func TestHFGenerateRetriesOn429(t *testing.T) {
	ok := []map[string]any{{"generated_text": "ok"}}
	srv, calls := hfSequence(t, []int{429, 200}, []http.Header{{"Retry-After": {"0"}}, {}}, ok)
	defer srv.Close()

	c := NewHFClient("test", srv.URL, 2*time.Second, 3, 10*time.Millisecond, 100*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Generate(ctx, UserPrompt("google/flan-t5-large", "hi", 1))
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if resp.Content() != "ok" || atomic.LoadInt32(calls) != 2 {
		t.Fatalf("unexpected response %+v after %d calls", resp, atomic.LoadInt32(calls))
	}
}

func TestHFRetryAfterHonored(t *testing.T) {
	ok := []map[string]any{{"generated_text": "ok"}}
	srv, _ := hfSequence(t, []int{503, 200}, []http.Header{{"Retry-After": {"1"}}, {}}, ok)
	defer srv.Close()

	c := NewHFClient("test", srv.URL, 5*time.Second, 3, 0, 0)
	start := time.Now()
	if _, err := c.Generate(context.Background(), UserPrompt("google/flan-t5-large", "hi", 1)); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected at least ~1s delay due to Retry-After, got %v", elapsed)
	}
}

func TestHFErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		body   map[string]any
		check  func(error) bool
	}{
		{http.StatusUnauthorized, map[string]any{"error": "Invalid credentials in Authorization header"}, func(err error) bool { var e *AuthError; return errors.As(err, &e) }},
		{http.StatusNotFound, map[string]any{"error": "Model google/nope does not exist"}, func(err error) bool { var e *ModelNotFoundError; return errors.As(err, &e) }},
		{http.StatusBadRequest, map[string]any{"error": "Input validation error"}, func(err error) bool { var e *BadRequestError; return errors.As(err, &e) }},
		{http.StatusTooManyRequests, map[string]any{"error": "Rate limit reached"}, func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }},
		{http.StatusServiceUnavailable, map[string]any{"error": "Model is currently loading", "estimated_time": 20.0}, func(err error) bool { var e *ModelLoadingError; return errors.As(err, &e) && e.EstimatedTime == 20*time.Second }},
		{http.StatusInternalServerError, map[string]any{"error": "boom"}, func(err error) bool { var e *ServerError; return errors.As(err, &e) }},
	}
	for _, tc := range cases {
		srv := newIPv4Server(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Request-Id", "req_test_123")
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(tc.body)
		}))
		c := NewHFClient("test", srv.URL, 2*time.Second, 1, 0, 0)
		_, err := c.Generate(context.Background(), UserPrompt("google/nope", "hi", 1))
		srv.Close()
		if err == nil || !tc.check(err) {
			t.Fatalf("status %d: unexpected error %T: %v", tc.status, err, err)
		}
		if !strings.Contains(err.Error(), "req_test_123") {
			t.Fatalf("status %d: expected request id in error, got: %v", tc.status, err)
		}
	}
}

func TestHFMissingKeyAndUnreachable(t *testing.T) {
	c := NewHFClient("", "", time.Second, 1, 0, 0)
	if _, err := c.Generate(context.Background(), UserPrompt("m", "p", 1)); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	c = NewHFClient("k", closedAddr(t), time.Second, 1, 0, 0)
	_, err := c.Generate(context.Background(), UserPrompt("m", "p", 1))
	var ue *UnreachableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnreachableError, got %T: %v", err, err)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	if s, err := parseRetryAfterSeconds("7"); err != nil || s != 7 {
		t.Fatalf("got %d, %v", s, err)
	}
	if _, err := parseRetryAfterSeconds("soon"); err == nil {
		t.Fatalf("expected error")
	}
}
