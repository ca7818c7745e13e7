// Package ai wraps the generative text and image services. Transport
// and auth failures surface as apperr.ServiceError; detecting malformed
// model output is the caller's job.
package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/sybotstackdev/fyaar-be-sub000/internal/apperr"
)

// TextConfig holds configuration for the text-completion client.
type TextConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
}

// TextClient sends chat completions through the OpenAI SDK.
type TextClient struct {
	client openai.Client
	model  string
}

// NewTextClient builds a text client from config.
func NewTextClient(cfg TextConfig) *TextClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &TextClient{client: openai.NewClient(opts...), model: cfg.Model}
}

// Model returns the model identifier recorded as the audit source.
func (c *TextClient) Model() string {
	return c.model
}

// Complete sends a system+user prompt and returns the raw completion
// text verbatim.
func (c *TextClient) Complete(ctx context.Context, system, user, model string) (string, error) {
	if model == "" {
		model = c.model
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", &apperr.ServiceError{Op: "text.complete", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &apperr.ServiceError{Op: "text.complete", Err: errors.New("no choices in completion response")}
	}
	return resp.Choices[0].Message.Content, nil
}
