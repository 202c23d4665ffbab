// Package genai provides GenAI-backed content operations using the OpenAI
// API: post drafting, post editing, image rendering, and publication-plan
// generation for nonprofit organizations.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/postforge/postforge/internal/models"
)

// ErrUnavailable marks failures that are worth retrying later: timeouts,
// rate limits, and upstream 5xx responses. The dispatcher keeps the user's
// flow state alive when it sees this error.
var ErrUnavailable = errors.New("generation service unavailable")

// Default generation parameters.
const (
	DefaultChatModel   = openai.ChatModelGPT4oMini
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1500
	DefaultTimeout     = 90 * time.Second
)

// chatService defines the minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// imageService defines the minimal interface for image generation.
type imageService interface {
	Generate(ctx context.Context, params openai.ImageGenerateParams, opts ...option.RequestOption) (*openai.ImagesResponse, error)
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey     string
	ChatModel  string
	ImageModel string
	Timeout    time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithChatModel overrides the chat completion model.
func WithChatModel(model string) Option {
	return func(o *Opts) { o.ChatModel = model }
}

// WithImageModel overrides the image generation model.
func WithImageModel(model string) Option {
	return func(o *Opts) { o.ImageModel = model }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// Client wraps the OpenAI chat and image services.
type Client struct {
	chat       chatService
	images     imageService
	chatModel  string
	imageModel string
	timeout    time.Duration
}

// NewClient initializes a GenAI client. The API key is required.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		ChatModel:  DefaultChatModel,
		ImageModel: openai.ImageModelDallE3,
		Timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewClient invoked", "APIKey_set", cfg.APIKey != "", "chatModel", cfg.ChatModel)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:       &cli.Chat.Completions,
		images:     &cli.Images,
		chatModel:  cfg.ChatModel,
		imageModel: cfg.ImageModel,
		timeout:    cfg.Timeout,
	}, nil
}

// complete runs a system+user chat completion with the client's defaults.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(DefaultTemperature),
		MaxTokens:   openai.Int(DefaultMaxTokens),
	})
	if err != nil {
		return "", classifyErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyErr maps transient upstream failures to ErrUnavailable so callers
// can distinguish "try again later" from hard errors.
func classifyErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	return err
}

// HealthCheck runs a minimal completion to verify the API is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.complete(ctx, "You are a health check.", "Reply with OK.")
	if err != nil {
		slog.Error("GenAI health check failed", "error", err)
		return fmt.Errorf("genai health check failed: %w", err)
	}
	return nil
}

// profileContext renders the organization profile into prompt context lines.
// Empty fields are omitted so the model is not fed blanks.
func profileContext(p models.OrgProfile) string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "Organization name: %s\n", p.Name)
	}
	if p.Activities != "" {
		fmt.Fprintf(&b, "What the organization does: %s\n", p.Activities)
	}
	if p.Audience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", p.Audience)
	}
	if p.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", p.Website)
	}
	if b.Len() == 0 {
		return "No organization profile provided.\n"
	}
	return b.String()
}
