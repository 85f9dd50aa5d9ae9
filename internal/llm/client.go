package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client generates text completions. Implemented by OpenAIClient in
// production and faked in tests.
type Client interface {
	// Generate sends a system+user prompt pair and returns the raw
	// completion text.
	Generate(ctx context.Context, system, user string) (string, error)
	// Model returns the model identifier being used.
	Model() string
}

// Config holds configuration for the completion client.
type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	client   *resty.Client
	model    string
	apiKey   string
	endpoint string
}

// NewOpenAIClient creates a new completion client.
// Parameters:
//   - cfg: client configuration including provider, model, and API key.
//
// Returns:
//   - *OpenAIClient: initialized client wrapper.
func NewOpenAIClient(cfg *Config) *OpenAIClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Set timeout to prevent hanging requests
	client.SetTimeout(120 * time.Second)

	// Default to OpenAI compatible endpoint if not specified
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	endpoint := strings.TrimSuffix(baseURL, "/") + "/chat/completions"

	return &OpenAIClient{
		client:   client,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
	}
}

// Model returns the model name being used.
// Parameters: none.
// Returns:
//   - string: model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// OpenAI-compatible Chat Completion API request/response structures
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Generate sends a system+user prompt pair to the chat completions endpoint.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - system: system prompt; may be empty.
//   - user: user prompt.
//
// Returns:
//   - string: raw completion text.
//   - error: non-nil if the API request fails.
func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.1,
	}

	var resp chatResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return "", fmt.Errorf("failed to call completion API: %w", err)
	}

	// Check HTTP status code
	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return "", fmt.Errorf("completion API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("completion API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		errorMsg := fmt.Sprintf("no choices in response (status: %d)", httpResp.StatusCode())
		if len(httpResp.Body()) > 0 {
			errorMsg += fmt.Sprintf(", response body: %s", string(httpResp.Body()))
		}
		return "", fmt.Errorf("no response from completion API: %s", errorMsg)
	}

	return resp.Choices[0].Message.Content, nil
}

// IsTimeout reports whether err represents a timeout or deadline failure,
// as opposed to a malformed response. Callers retry timeouts with backoff
// but treat parse failures separately.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded")
}
