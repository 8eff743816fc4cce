package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rewired-gh/ctascan/internal/oracle"
	"github.com/rewired-gh/ctascan/internal/score"
)

// Anthropic scores assets with the Anthropic messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates an Anthropic backend with SDK retries disabled.
func NewAnthropic(cfg Config) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Anthropic{client: &client, model: model, maxTokens: maxTokens}
}

// Name returns the backend name used in logs.
func (c *Anthropic) Name() string {
	return "anthropic/" + c.model
}

// ScoreImage sends the image as a base64 image block.
func (c *Anthropic) ScoreImage(ctx context.Context, img oracle.Image) (oracle.Response, error) {
	return c.complete(ctx, oracle.ImageSystemPrompt, anthropic.NewUserMessage(
		anthropic.NewImageBlockBase64(img.MIMEType, img.Base64()),
		anthropic.NewTextBlock(oracle.ImageUserPrompt),
	))
}

// ScoreText sends caption text.
func (c *Anthropic) ScoreText(ctx context.Context, text string) (oracle.Response, error) {
	return c.complete(ctx, oracle.TextSystemPrompt, anthropic.NewUserMessage(
		anthropic.NewTextBlock(oracle.TextUserPrompt(text)),
	))
}

func (c *Anthropic) complete(ctx context.Context, system string, msg anthropic.MessageParam) (oracle.Response, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages:    []anthropic.MessageParam{msg},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return oracle.Response{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return oracle.NewResponse(sb.String(), score.PatternBare)
}
