// Package local scores assets with models served by a local Ollama instance.
package local

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/rewired-gh/ctascan/internal/oracle"
	"github.com/rewired-gh/ctascan/internal/score"
)

// Defaults for a stock Ollama install.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultImageModel = "llava:13b"
	DefaultTextModel  = "llama3.1"
)

// Config configures the local backend.
type Config struct {
	BaseURL    string
	ImageModel string
	TextModel  string
	Timeout    time.Duration
}

// Ollama calls /api/generate without streaming.
type Ollama struct {
	client     *api.Client
	imageModel string
	textModel  string
}

// New creates an Ollama backend.
func New(cfg Config) (*Ollama, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid ollama base URL %q: scheme and host are required", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	o := &Ollama{
		client:     api.NewClient(u, &http.Client{Timeout: timeout}),
		imageModel: cfg.ImageModel,
		textModel:  cfg.TextModel,
	}
	if o.imageModel == "" {
		o.imageModel = DefaultImageModel
	}
	if o.textModel == "" {
		o.textModel = DefaultTextModel
	}
	return o, nil
}

// Name returns the backend name used in logs.
func (o *Ollama) Name() string {
	return "ollama"
}

// ScoreImage sends the image with the image model.
func (o *Ollama) ScoreImage(ctx context.Context, img oracle.Image) (oracle.Response, error) {
	return o.generate(ctx, &api.GenerateRequest{
		Model:  o.imageModel,
		Prompt: oracle.LocalImagePrompt(),
		Images: []api.ImageData{img.Data},
	})
}

// ScoreText sends caption text with the text model.
func (o *Ollama) ScoreText(ctx context.Context, text string) (oracle.Response, error) {
	return o.generate(ctx, &api.GenerateRequest{
		Model:  o.textModel,
		Prompt: oracle.LocalTextPrompt(text),
	})
}

func (o *Ollama) generate(ctx context.Context, req *api.GenerateRequest) (oracle.Response, error) {
	stream := false
	req.Stream = &stream

	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return oracle.Response{}, fmt.Errorf("ollama %s: %w", req.Model, err)
	}
	return oracle.NewResponse(sb.String(), score.PatternLabeled)
}
