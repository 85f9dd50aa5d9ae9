package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"content": "the answer"}}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(&Config{Model: "gpt-test", APIKey: "test-key", BaseURL: server.URL})
	got, err := client.Generate(context.Background(), "be brief", "what is the answer?")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if got != "the answer" {
		t.Errorf("Generate = %q, want %q", got, "the answer")
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
	if gotReq.Model != "gpt-test" {
		t.Errorf("model = %q, want %q", gotReq.Model, "gpt-test")
	}
}

func TestGenerateOmitsEmptySystemPrompt(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"content": "ok"}}]}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(&Config{Model: "gpt-test", BaseURL: server.URL})
	if _, err := client.Generate(context.Background(), "", "hello"); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited", "type": "rate_limit"}}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(&Config{Model: "gpt-test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), "", "hello")
	if err == nil {
		t.Fatal("expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error %q missing API message", err)
	}
}

func TestGenerateNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": []}`)
	}))
	defer server.Close()

	client := NewOpenAIClient(&Config{Model: "gpt-test", BaseURL: server.URL})
	if _, err := client.Generate(context.Background(), "", "hello"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("call failed: %w", context.DeadlineExceeded), true},
		{"net timeout", timeoutErr{}, true},
		{"timeout in message", errors.New("request timeout after 120s"), true},
		{"plain error", errors.New("connection refused"), false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTimeout(tt.err); got != tt.want {
				t.Errorf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
