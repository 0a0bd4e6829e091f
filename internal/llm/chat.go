package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	flowerrors "github.com/randalmurphal/tripflow/pkg/flowgraph/errors"
)

// ErrMissingAPIKey is wrapped by Generate when the client has no key.
var ErrMissingAPIKey = errors.New("api key not configured")

// ChatProvider names an OpenAI-compatible endpoint preset.
type ChatProvider struct {
	Name    string
	BaseURL string
	Model   string
}

// Known chat-completions providers.
var (
	DeepSeek = ChatProvider{Name: "deepseek", BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat"}
	Qwen     = ChatProvider{Name: "qwen", BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", Model: "qwen-max"}
)

// ChatClient talks to an OpenAI-compatible /chat/completions endpoint.
type ChatClient struct {
	provider    ChatProvider
	apiKey      string
	httpClient  *http.Client
	temperature float64
	system      string
	retry       flowerrors.RetryConfig
	logger      *slog.Logger
}

// ChatOption configures a ChatClient.
type ChatOption func(*ChatClient)

// WithChatBaseURL overrides the provider base URL.
func WithChatBaseURL(u string) ChatOption {
	return func(c *ChatClient) { c.provider.BaseURL = strings.TrimRight(u, "/") }
}

// WithChatModel overrides the provider model.
func WithChatModel(model string) ChatOption {
	return func(c *ChatClient) {
		if model != "" {
			c.provider.Model = model
		}
	}
}

// WithChatHTTPClient replaces the HTTP client.
func WithChatHTTPClient(hc *http.Client) ChatOption {
	return func(c *ChatClient) { c.httpClient = hc }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(c *ChatClient) { c.temperature = t }
}

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(s string) ChatOption {
	return func(c *ChatClient) { c.system = s }
}

// WithChatRetry sets the retry policy for transient failures.
func WithChatRetry(cfg flowerrors.RetryConfig) ChatOption {
	return func(c *ChatClient) { c.retry = cfg }
}

// WithChatLogger sets the logger.
func WithChatLogger(l *slog.Logger) ChatOption {
	return func(c *ChatClient) { c.logger = l }
}

// NewChatClient creates a client for provider.
func NewChatClient(provider ChatProvider, apiKey string, opts ...ChatOption) *ChatClient {
	c := &ChatClient{
		provider:    provider,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		temperature: 0.2,
		retry:       flowerrors.DefaultRetry,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
}

// Generate sends prompt as a single user message. Rate limits, 5xx and
// network failures are retried; the final failure is a *GenerationError.
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &GenerationError{Provider: c.provider.Name, Err: ErrMissingAPIKey}
	}

	messages := make([]Message, 0, 2)
	if c.system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: c.system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.provider.Model,
		Messages:    messages,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", &GenerationError{Provider: c.provider.Name, Err: err}
	}

	retry := c.retry.With(flowerrors.WithOnRetry(func(attempt int, err error) {
		c.logger.Warn("chat completion failed, retrying",
			slog.String("provider", c.provider.Name),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
	}))
	result := flowerrors.WithRetryContext(ctx, retry, func(ctx context.Context) (string, error) {
		return c.complete(ctx, body)
	})
	if result.Err != nil {
		return "", &GenerationError{Provider: c.provider.Name, Err: result.Err}
	}
	return result.Value, nil
}

func (c *ChatClient) complete(ctx context.Context, body []byte) (string, error) {
	endpoint := c.provider.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", flowerrors.Permanent(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if ctx.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
			return "", &flowerrors.TimeoutError{
				Operation: c.provider.Name + " chat completion",
				Duration:  c.httpClient.Timeout.String(),
			}
		}
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if err := flowerrors.CheckResponse(endpoint, resp); err != nil {
		return "", err
	}

	var out chatResponse
	if err := flowerrors.DecodeJSON(resp.Body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", flowerrors.Structural(errors.New("no content generated"), c.provider.Name)
	}

	c.logger.Debug("chat completion",
		slog.String("provider", c.provider.Name),
		slog.String("model", c.provider.Model),
		slog.Int("total_tokens", out.Usage.TotalTokens),
		slog.String("finish_reason", out.Choices[0].FinishReason))

	return out.Choices[0].Message.Content, nil
}
