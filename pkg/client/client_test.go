package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// roundTripFunc is a fake transport.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// countingPacer counts Wait calls.
type countingPacer struct {
	calls atomic.Int32
	err   error
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.calls.Add(1)
	return p.err
}

func newTestClient(t *testing.T, transport http.RoundTripper, pacer Pacer, clock *fakeClock) *Client {
	t.Helper()

	cfg := DefaultConfig("TestApp/1.0.0 (test@example.com)")
	cfg.Transport = transport
	cfg.Pacer = pacer
	cfg.Retry = testPolicy(clock)

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("TestApp/1.0.0"),
			expectError: false,
		},
		{
			name:        "empty user agent",
			config:      DefaultConfig(""),
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name: "negative retries",
			config: Config{
				UserAgent: "TestApp/1.0.0",
				Retry:     RetryPolicy{MaxRetries: -1},
			},
			expectError: true,
			errorMsg:    "max_retries must be >= 0 (got -1)",
		},
		{
			name: "multiplier below one",
			config: Config{
				UserAgent: "TestApp/1.0.0",
				Retry:     RetryPolicy{MaxRetries: 1, Multiplier: 0.5},
			},
			expectError: true,
			errorMsg:    "backoff multiplier must be >= 1 (got 0.5)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config, zerolog.Nop())

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("TestApp/1.0.0")

	if cfg.UserAgent != "TestApp/1.0.0" {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, "TestApp/1.0.0")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
}

func TestGet_HeadersAndQuery(t *testing.T) {
	var userAgent, accept, registration string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		registration = r.URL.Query().Get("cin")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": true}`))
	}))
	defer server.Close()

	c := newTestClient(t, nil, nil, &fakeClock{})

	var out struct {
		Status bool `json:"status"`
	}
	err := c.Get(context.Background(), "registration", server.URL+"/cin/info", url.Values{"cin": {"U12345"}}, &out)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if !out.Status {
		t.Error("Expected decoded status true")
	}
	if userAgent != "TestApp/1.0.0 (test@example.com)" {
		t.Errorf("User-Agent = %q", userAgent)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
	if registration != "U12345" {
		t.Errorf("cin query = %q, want U12345", registration)
	}
}

func TestPost_SendsJSONBodyOnEveryAttempt(t *testing.T) {
	var bodies []string
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"totalPages": 2}`))
	}))
	defer server.Close()

	clock := &fakeClock{}
	c := newTestClient(t, nil, nil, clock)

	var out struct {
		TotalPages int `json:"totalPages"`
	}
	err := c.Post(context.Background(), "listing", server.URL, map[string]int{"page": 0}, &out)
	if err != nil {
		t.Fatalf("Post() failed: %v", err)
	}

	if out.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", out.TotalPages)
	}
	if len(bodies) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(bodies))
	}
	for i, b := range bodies {
		if b != `{"page":0}` {
			t.Errorf("attempt %d body = %q, want %q", i, b, `{"page":0}`)
		}
	}
	if got := len(clock.Sleeps()); got != 1 {
		t.Errorf("Expected 1 backoff wait, got %d", got)
	}
}

func TestDo_RetriesServerErrorsUntilExhausted(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	})

	clock := &fakeClock{}
	c := newTestClient(t, transport, nil, clock)

	_, err := c.Do(context.Background(), Request{Endpoint: "profile", URL: "http://registry.test/profile/A"})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("Exhausted retries should be transient")
	}
	if calls.Load() != 4 {
		t.Errorf("Expected 4 attempts, got %d", calls.Load())
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	sleeps := clock.Sleeps()
	if len(sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", sleeps, want)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, sleeps[i], want[i])
		}
	}
}

func TestDo_RetriesNetworkErrors(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("connection reset by peer")
		}
		return jsonResponse(http.StatusOK, `{"ok": true}`), nil
	})

	c := newTestClient(t, transport, nil, &fakeClock{})

	body, err := c.Do(context.Background(), Request{Endpoint: "profile", URL: "http://registry.test/profile/A"})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	if string(body) != `{"ok": true}` {
		t.Errorf("body = %s", body)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls.Load())
	}
}

func TestDo_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})

	c := newTestClient(t, transport, nil, &fakeClock{})

	_, err := c.Do(context.Background(), Request{Endpoint: "profile", URL: "http://registry.test/profile/missing"})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
	if statusErr.ErrorClass != ErrorClassClient {
		t.Errorf("ErrorClass = %q, want client", statusErr.ErrorClass)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 attempt, got %d", calls.Load())
	}
}

func TestDo_CustomRetryablePredicate(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusServiceUnavailable, `{}`), nil
	})

	clock := &fakeClock{}
	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.Transport = transport
	cfg.Retry = testPolicy(clock)
	cfg.Retry.Retryable = func(int) bool { return false }

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	_, err = c.Do(context.Background(), Request{URL: "http://registry.test/x"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("Expected 1 attempt with nothing retryable, got %d", calls.Load())
	}
}

func TestDo_PacesEveryRequestOnce(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusInternalServerError, `{}`), nil
	})

	pacer := &countingPacer{}
	c := newTestClient(t, transport, pacer, &fakeClock{})

	for i := 0; i < 3; i++ {
		_, _ = c.Do(context.Background(), Request{URL: "http://registry.test/x"})
	}

	if got := pacer.calls.Load(); got != 3 {
		t.Errorf("pacer.Wait calls = %d, want 3 (once per logical request, not per attempt)", got)
	}
}

func TestDo_PacerCancellation(t *testing.T) {
	var calls atomic.Int32
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(http.StatusOK, `{}`), nil
	})

	pacer := &countingPacer{err: context.Canceled}
	c := newTestClient(t, transport, pacer, &fakeClock{})

	_, err := c.Do(context.Background(), Request{URL: "http://registry.test/x"})
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("No request should be sent when pacing fails, got %d", calls.Load())
	}
}

func TestDo_ContextCancelledDuringRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		cancel()
		return nil, req.Context().Err()
	})

	c := newTestClient(t, transport, nil, &fakeClock{})

	_, err := c.Do(ctx, Request{URL: "http://registry.test/x"})
	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if IsTransient(err) {
		t.Error("Cancellation must not be reported as transient")
	}
}

func TestDoJSON_DecodeError(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `<html>maintenance</html>`), nil
	})

	c := newTestClient(t, transport, nil, &fakeClock{})

	var out map[string]any
	err := c.DoJSON(context.Background(), Request{Endpoint: "profile", URL: "http://registry.test/x"}, &out)
	if !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestDoJSON_PreservesUnicode(t *testing.T) {
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"name": "कृषि Tech"}`), nil
	})

	c := newTestClient(t, transport, nil, &fakeClock{})

	var out struct {
		Name string `json:"name"`
	}
	if err := c.DoJSON(context.Background(), Request{URL: "http://registry.test/x"}, &out); err != nil {
		t.Fatalf("DoJSON() failed: %v", err)
	}
	if out.Name != "कृषि Tech" {
		t.Errorf("Name = %q", out.Name)
	}

	encoded, _ := json.Marshal(out)
	if !strings.Contains(string(encoded), "कृषि") {
		t.Errorf("re-encoded JSON escaped non-ASCII: %s", encoded)
	}
}

func TestBuildURL(t *testing.T) {
	got, err := buildURL("http://registry.test/info?lang=en", url.Values{"cin": {"U1"}})
	if err != nil {
		t.Fatalf("buildURL() failed: %v", err)
	}
	if got != "http://registry.test/info?cin=U1&lang=en" {
		t.Errorf("buildURL() = %q", got)
	}

	if _, err := buildURL("://bad", nil); err == nil {
		t.Error("Expected parse error for invalid URL")
	}
}
