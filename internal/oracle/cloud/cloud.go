// Package cloud scores assets with hosted chat completion APIs.
package cloud

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rewired-gh/ctascan/internal/oracle"
)

// Supported providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// Config configures a cloud backend.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string // empty uses the provider default
	MaxTokens int64
	Timeout   time.Duration
}

// New returns the backend for cfg.Provider.
func New(cfg Config) (oracle.Oracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("unknown cloud provider %q", cfg.Provider)
	}
}

func httpClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
