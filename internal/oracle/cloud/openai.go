package cloud

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rewired-gh/ctascan/internal/oracle"
	"github.com/rewired-gh/ctascan/internal/score"
)

// OpenAI scores assets with the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI backend. SDK retries are disabled so each
// asset costs at most one request per run.
func NewOpenAI(cfg Config) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient(cfg.Timeout)),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: &client, model: model}
}

// Name returns the backend name used in logs.
func (c *OpenAI) Name() string {
	return "openai/" + c.model
}

// ScoreImage sends the image as a base64 data URL.
func (c *OpenAI) ScoreImage(ctx context.Context, img oracle.Image) (oracle.Response, error) {
	return c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(oracle.ImageSystemPrompt),
		openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(oracle.ImageUserPrompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: img.DataURL(),
			}),
		}),
	})
}

// ScoreText sends caption text.
func (c *OpenAI) ScoreText(ctx context.Context, text string) (oracle.Response, error) {
	return c.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(oracle.TextSystemPrompt),
		openai.UserMessage(oracle.TextUserPrompt(text)),
	})
}

func (c *OpenAI) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (oracle.Response, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(0),
	})
	if err != nil {
		return oracle.Response{}, fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return oracle.Response{}, oracle.ErrEmptyResponse
	}
	return oracle.NewResponse(resp.Choices[0].Message.Content, score.PatternBare)
}
