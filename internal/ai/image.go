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

// ImageConfig holds configuration for the image-generation client.
type ImageConfig struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
}

// ImageClient generates cover art through the OpenAI SDK. The service
// returns a temporary URL; the cover stage downloads and re-hosts it.
type ImageClient struct {
	client openai.Client
	model  string
}

// NewImageClient builds an image client from config.
func NewImageClient(cfg ImageConfig) *ImageClient {
	if cfg.Model == "" {
		cfg.Model = "dall-e-3"
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
	return &ImageClient{client: openai.NewClient(opts...), model: cfg.Model}
}

// Model returns the model identifier recorded as the audit source.
func (c *ImageClient) Model() string {
	return c.model
}

// Generate produces one image for the prompt and returns its temporary
// URL.
func (c *ImageClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(c.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	})
	if err != nil {
		return "", &apperr.ServiceError{Op: "image.generate", Err: err}
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", &apperr.ServiceError{Op: "image.generate", Err: errors.New("no image in response")}
	}
	return resp.Data[0].URL, nil
}
