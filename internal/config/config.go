package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rewired-gh/ctascan/internal/assetid"
	"github.com/rewired-gh/ctascan/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Scan     ScanConfig     `mapstructure:"scan"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Caption  CaptionConfig  `mapstructure:"caption"`
	Cloud    CloudConfig    `mapstructure:"cloud"`
	Local    LocalConfig    `mapstructure:"local"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Export   ExportConfig   `mapstructure:"export"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ScanConfig holds the archive tree settings
type ScanConfig struct {
	RootPath string `mapstructure:"root_path"`
	// RelevantSetPath is resolved against RootPath when relative. Empty
	// disables the filter.
	RelevantSetPath string `mapstructure:"relevant_set_path"`
	// SidecarPermissions is parsed as an octal file mode.
	SidecarPermissions string `mapstructure:"sidecar_permissions"`
}

// AnalysisConfig selects the analysis kind and worker count
type AnalysisConfig struct {
	Kind        string `mapstructure:"kind"`
	Backend     string `mapstructure:"backend"`
	Concurrency int    `mapstructure:"concurrency"`
	IDRule      string `mapstructure:"id_rule"`
}

// CaptionConfig holds the caption field lookup strategy
type CaptionConfig struct {
	Fields []string `mapstructure:"fields"`
	Nested bool     `mapstructure:"nested"`
}

// CloudConfig holds hosted model API configuration
type CloudConfig struct {
	Provider  string        `mapstructure:"provider"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LocalConfig holds Ollama configuration
type LocalConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	ImageModel string        `mapstructure:"image_model"`
	TextModel  string        `mapstructure:"text_model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ExportConfig holds SQLite export configuration
type ExportConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables. A .env file
// next to the working directory is loaded first when present. A missing
// config file is not an error; defaults and environment apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CTASCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Cloud.APIKey == "" {
		cfg.Cloud.APIKey = providerKey(cfg.Cloud.Provider)
	}

	return &cfg, nil
}

// providerKey returns the provider's conventional API key variable.
func providerKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Scan defaults
	v.SetDefault("scan.root_path", ".")
	v.SetDefault("scan.relevant_set_path", models.RelevantSetFilename)
	v.SetDefault("scan.sidecar_permissions", "0644")

	// Analysis defaults
	v.SetDefault("analysis.kind", string(models.TargetImage))
	v.SetDefault("analysis.backend", string(models.BackendLocal))
	v.SetDefault("analysis.concurrency", 1)
	v.SetDefault("analysis.id_rule", "auto")

	// Caption defaults
	v.SetDefault("caption.fields", []string{"text", "caption"})
	v.SetDefault("caption.nested", true)

	// Cloud defaults
	v.SetDefault("cloud.provider", "openai")
	v.SetDefault("cloud.api_key", "")
	v.SetDefault("cloud.model", "")
	v.SetDefault("cloud.base_url", "")
	v.SetDefault("cloud.max_tokens", 1024)
	v.SetDefault("cloud.timeout", "60s")

	// Local defaults
	v.SetDefault("local.base_url", "http://localhost:11434")
	v.SetDefault("local.image_model", "llava:13b")
	v.SetDefault("local.text_model", "llama3.1")
	v.SetDefault("local.timeout", "5m")

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Export defaults
	v.SetDefault("export.db_path", "cta_scores.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Scan config
	if c.Scan.RootPath == "" {
		return fmt.Errorf("scan.root_path is required")
	}
	if _, err := c.SidecarMode(); err != nil {
		return err
	}

	// Validate Analysis config
	if _, err := c.AnalysisKind(); err != nil {
		return err
	}
	if c.Analysis.Concurrency < 1 || c.Analysis.Concurrency > 64 {
		return fmt.Errorf("analysis.concurrency must be between 1 and 64")
	}
	if _, err := assetid.ParseRule(c.Analysis.IDRule); err != nil {
		return fmt.Errorf("analysis.id_rule: %w", err)
	}

	// Validate Caption config
	for _, f := range c.Caption.Fields {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("caption.fields must not contain empty names")
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.MaxRetries < 1 {
			return fmt.Errorf("telegram.max_retries must be at least 1")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ValidateBackend checks the settings of the configured oracle backend.
// Only commands that call an oracle need them.
func (c *Config) ValidateBackend() error {
	switch models.Backend(c.Analysis.Backend) {
	case models.BackendCloud:
		if c.Cloud.Provider != "openai" && c.Cloud.Provider != "anthropic" {
			return fmt.Errorf("cloud.provider must be one of: openai, anthropic")
		}
		if c.Cloud.APIKey == "" {
			return fmt.Errorf("cloud.api_key is required when analysis.backend is cloud")
		}
		if c.Cloud.MaxTokens < 1 {
			return fmt.Errorf("cloud.max_tokens must be at least 1")
		}
		if c.Cloud.Timeout < time.Second {
			return fmt.Errorf("cloud.timeout must be at least 1 second")
		}
	case models.BackendLocal:
		if c.Local.BaseURL == "" {
			return fmt.Errorf("local.base_url is required when analysis.backend is local")
		}
		if c.Local.ImageModel == "" || c.Local.TextModel == "" {
			return fmt.Errorf("local.image_model and local.text_model are required")
		}
		if c.Local.Timeout < time.Second {
			return fmt.Errorf("local.timeout must be at least 1 second")
		}
	}
	return nil
}

// AnalysisKind resolves analysis.kind and analysis.backend to a kind.
func (c *Config) AnalysisKind() (models.AnalysisKind, error) {
	target := models.Target(c.Analysis.Kind)
	switch target {
	case models.TargetImage, models.TargetText, models.TargetCaption:
	default:
		return "", fmt.Errorf("analysis.kind must be one of: image, text, caption")
	}
	backend := models.Backend(c.Analysis.Backend)
	if backend != models.BackendCloud && backend != models.BackendLocal {
		return "", fmt.Errorf("analysis.backend must be one of: cloud, local")
	}
	if target == models.TargetCaption && backend != models.BackendLocal {
		return "", fmt.Errorf("analysis.kind caption requires analysis.backend local")
	}
	return models.ResolveKind(target, backend)
}

// RelevantSetPath returns the relevant set path resolved against the root,
// or "" when filtering is disabled.
func (c *Config) RelevantSetPath() string {
	p := c.Scan.RelevantSetPath
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Scan.RootPath, p)
}

// SidecarMode parses scan.sidecar_permissions.
func (c *Config) SidecarMode() (os.FileMode, error) {
	var mode uint32
	if _, err := fmt.Sscanf(c.Scan.SidecarPermissions, "%o", &mode); err != nil {
		return 0, fmt.Errorf("scan.sidecar_permissions must be an octal mode: %w", err)
	}
	if mode == 0 || mode > 0o777 {
		return 0, fmt.Errorf("scan.sidecar_permissions must be between 0001 and 0777")
	}
	return os.FileMode(mode), nil
}
