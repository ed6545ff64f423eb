package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/chatbridge/chatbot-backend/internal/config"
	"github.com/chatbridge/chatbot-backend/internal/models"
	"go.uber.org/zap"
)

// Construction failures that callers need to tell apart.
var (
	// ErrUnavailable means the OpenAI provider is switched off in config.
	ErrUnavailable = errors.New("openai: client support is not enabled")
	// ErrMissingAPIKey means no credential was supplied.
	ErrMissingAPIKey = errors.New("openai: API key is not set")
	// ErrEmptyResponse means the call succeeded but produced no usable text.
	ErrEmptyResponse = errors.New("openai: empty response")
)

// Client calls the OpenAI chat-completions API. One instance performs
// exactly one attempt per call; there is no retry or backoff.
type Client struct {
	baseURL    string
	userAgent  string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// New constructs a client, failing closed when the provider is disabled,
// the credential is missing, or the base URL is unusable. The three
// causes stay distinct so the HTTP layer can report them separately.
func New(cfg config.OpenAIConfig, apiKey string, logger *zap.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrUnavailable
	}
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("openai: invalid base URL %q", cfg.BaseURL)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// CreateChatCompletion sends one synchronous chat-completion request and
// returns the first generated message's text.
func (c *Client) CreateChatCompletion(ctx context.Context, model string, messages []models.ChatCompletionMessage, temperature float64) (string, error) {
	reqBody, err := json.Marshal(models.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("Sending chat completion request",
		zap.String("model", model),
		zap.Int("messages", len(messages)),
		zap.Int("body_length", len(reqBody)))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("OpenAI API returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))

		// Surface the upstream error message when the envelope parses
		var errResp models.ChatCompletionResponse
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil && errResp.Error != nil && errResp.Error.Message != "" {
			return "", errors.New(errResp.Error.Message)
		}
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var completion models.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if completion.Error != nil && completion.Error.Message != "" {
		return "", errors.New(completion.Error.Message)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := extractContent(completion.Choices[0])
	if content == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("Chat completion succeeded",
		zap.String("model", completion.Model),
		zap.Int("content_length", len(content)))

	return content, nil
}

// extractContent pulls the generated text out of a choice. Structured
// message content wins; the legacy completions text field is the
// fallback for older API shapes.
func extractContent(choice models.ChatCompletionChoice) string {
	if choice.Message.Content != "" {
		return choice.Message.Content
	}
	return choice.Text
}
