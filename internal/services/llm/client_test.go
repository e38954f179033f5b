package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"coworker/internal/services"
)

func writeCompletion(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	payload := map[string]any{
		"model": "demo-model",
		"choices": []any{
			map[string]any{
				"message": map[string]any{"content": content},
			},
		},
		"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func noJitter(time.Duration) time.Duration { return 0 }

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCompletion(t, w, "```json\n{\"ok\":true}\n```")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientRejectsAuthFailureWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"unauthorized"}}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"}, WithSleeper(func(time.Duration) {}))
	err := client.HealthCheck(context.Background())
	if err == nil {
		t.Fatal("expected health check to fail")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if code, ok := StatusCode(err); !ok || code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d ok=%v", code, ok)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single request, got %d", calls.Load())
	}
}

func TestExtractDocumentSendsImagePart(t *testing.T) {
	var gotRequestID string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-ID")
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		writeCompletion(t, w, `{"doc_type":"Receipt"}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	ctx := services.WithRequestID(context.Background(), "req-123")
	completion, err := client.ExtractDocument(ctx, "extract", Document{Name: "r.png", Mime: "image/png", Data: []byte("png-bytes")})
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if completion.Content != `{"doc_type":"Receipt"}` {
		t.Fatalf("unexpected content %q", completion.Content)
	}
	if completion.Usage.PromptTokens != 120 || completion.Usage.CompletionTokens != 30 {
		t.Fatalf("unexpected usage %+v", completion.Usage)
	}
	if completion.Attempts != 1 || completion.Model != "demo-model" {
		t.Fatalf("unexpected completion meta %+v", completion)
	}
	if gotRequestID != "req-123" {
		t.Fatalf("expected request id header, got %q", gotRequestID)
	}
	raw, _ := json.Marshal(gotBody)
	if !strings.Contains(string(raw), `"type":"image_url"`) || !strings.Contains(string(raw), "data:image/png;base64,") {
		t.Fatalf("expected image data url part, got %s", raw)
	}
	if !strings.Contains(string(raw), `"response_format":{"type":"json_object"}`) {
		t.Fatalf("expected json response format, got %s", raw)
	}
}

func TestExtractDocumentSendsPDFAsFilePart(t *testing.T) {
	var raw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		writeCompletion(t, w, `{}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if _, err := client.ExtractDocument(context.Background(), "extract", Document{Name: "/in/bill.pdf", Mime: "application/pdf", Data: []byte("%PDF")}); err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	for _, want := range []string{`"type":"file"`, `"filename":"bill.pdf"`, "data:application/pdf;base64,"} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("expected %s in request %s", want, raw)
		}
	}
}

func TestExtractDocumentRejectsUnsupportedMime(t *testing.T) {
	client := NewClient(Config{APIKey: "test", BaseURL: "http://127.0.0.1:1", Model: "demo"})
	_, err := client.ExtractDocument(context.Background(), "extract", Document{Name: "a.txt", Mime: "text/plain", Data: []byte("x")})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractDocumentRequiresAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", Model: "demo"})
	_, err := client.ExtractDocument(context.Background(), "extract", Document{Name: "a.png", Mime: "image/png", Data: []byte("x")})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientRetriesOnHTTP429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		writeCompletion(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(10*time.Millisecond, time.Second),
		WithJitter(noJitter),
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	completion, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if completion.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", completion.Attempts)
	}
	if len(sleeps) != 1 || sleeps[0] != 10*time.Millisecond {
		t.Fatalf("unexpected sleeps %v", sleeps)
	}
}

func TestClientExhaustsRetriesWithGrowingDelays(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	base := 100 * time.Millisecond
	var sleeps []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryMaxAttempts(4),
		WithRetryBackoff(base, time.Minute),
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "failed after 4 attempts") {
		t.Fatalf("expected attempt count in error, got %v", err)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 requests, got %d", calls.Load())
	}
	if len(sleeps) != 3 {
		t.Fatalf("expected 3 sleeps, got %v", sleeps)
	}
	for i, d := range sleeps {
		floor := base << i
		if d < floor || d >= floor+base {
			t.Fatalf("sleep %d = %v, want in [%v, %v)", i, d, floor, floor+base)
		}
		if i > 0 && d <= sleeps[i-1] {
			t.Fatalf("delays not increasing: %v", sleeps)
		}
	}
}

func TestRetryAfterRaisesDelay(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeCompletion(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	var sleeps []time.Duration
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithRetryBackoff(10*time.Millisecond, 30*time.Second),
		WithJitter(noJitter),
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if len(sleeps) != 1 || sleeps[0] != 2*time.Second {
		t.Fatalf("expected Retry-After delay of 2s, got %v", sleeps)
	}
}

func TestClientRetriesOnEmptyContentThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeCompletion(t, w, "")
			return
		}
		writeCompletion(t, w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) {}),
	)
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestClientStopsOnCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(
		Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"},
		WithSleeper(func(time.Duration) { cancel() }),
	)
	_, err := client.CompleteJSON(ctx, "system", "user")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestBackoffDelayCapped(t *testing.T) {
	client := NewClient(Config{}, WithRetryBackoff(time.Second, 5*time.Second), WithJitter(func(base time.Duration) time.Duration { return base / 2 }))
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 1500 * time.Millisecond},
		{attempt: 2, want: 2500 * time.Millisecond},
		{attempt: 3, want: 4500 * time.Millisecond},
		{attempt: 4, want: 5 * time.Second},
		{attempt: 10, want: 5 * time.Second},
	}
	for _, tt := range tests {
		if got := client.backoffDelay(tt.attempt); got != tt.want {
			t.Fatalf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestWithRateLimit(t *testing.T) {
	if NewClient(Config{}, WithRateLimit(0)).limiter != nil {
		t.Fatal("expected no limiter for zero rate")
	}
	if NewClient(Config{}, WithRateLimit(60)).limiter == nil {
		t.Fatal("expected limiter")
	}
}

func TestDecodeLLMJSON(t *testing.T) {
	var target struct {
		DocType string `json:"doc_type"`
	}
	if err := DecodeLLMJSON("Here you go:\n```json\n{\"doc_type\":\"Invoice\"}\n```", &target); err != nil {
		t.Fatalf("DecodeLLMJSON: %v", err)
	}
	if target.DocType != "Invoice" {
		t.Fatalf("unexpected doc type %q", target.DocType)
	}
	if err := DecodeLLMJSON("not json at all", &target); err == nil {
		t.Fatal("expected error for prose payload")
	}
}
