// Package llm talks to an OpenAI-compatible chat completions API, Groq by
// default.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/LetsFonseca/CelestiAI/internal/retry"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1/"
	DefaultModel       = "llama-3.1-8b-instant"
	DefaultTemperature = 0.6
)

// ErrMissingCredential is returned by Generate when no API key is configured.
var ErrMissingCredential = errors.New("llm api key is not configured")

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client sends a single-message prompt and returns the reply text.
type Client struct {
	client      openai.Client
	configured  bool
	model       string
	temperature float64
}

// NewClient builds a client. A missing API key is not an error here; check
// Configured before asking.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &Client{
		client:      openai.NewClient(opts...),
		configured:  strings.TrimSpace(cfg.APIKey) != "",
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

func (c *Client) Configured() bool { return c.configured }

func (c *Client) Model() string { return c.model }

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.configured {
		return "", retry.Permanent(ErrMissingCredential)
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return fmt.Errorf("chat completion failed (status %d): %w", apiErr.StatusCode, err)
		}
		return retry.Permanent(fmt.Errorf("chat completion rejected (status %d): %w", apiErr.StatusCode, err))
	}
	return fmt.Errorf("chat completion failed: %w", err)
}
