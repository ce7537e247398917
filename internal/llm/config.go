package llm

import (
	"fmt"
	"os"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which backend serves both curriculum streaming and
	// answer grading.
	Provider string `yaml:"provider"`

	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Retry      RetryConfig      `yaml:"retry"`
}

type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"` // optional, for compatible APIs
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderOpenAI,
		Anthropic: AnthropicConfig{Model: "claude-haiku"},
		OpenAI:    OpenAIConfig{Model: "gpt-4o-2024-08-06"},
		Gemini:    GeminiConfig{Model: "gemini-flash"},
		OpenRouter: OpenRouterConfig{
			Model: "openai/gpt-4o-2024-08-06",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
	}
}

// ApplyEnv overlays LESSONSTREAM_* environment variables onto c.
func (c *Config) ApplyEnv() {
	setFromEnv(&c.Provider, "LESSONSTREAM_LLM_PROVIDER")

	setFromEnv(&c.Anthropic.APIKey, "LESSONSTREAM_ANTHROPIC_API_KEY")
	setFromEnv(&c.Anthropic.Model, "LESSONSTREAM_ANTHROPIC_MODEL")

	setFromEnv(&c.OpenAI.APIKey, "LESSONSTREAM_OPENAI_API_KEY")
	setFromEnv(&c.OpenAI.Model, "LESSONSTREAM_OPENAI_MODEL")
	setFromEnv(&c.OpenAI.BaseURL, "LESSONSTREAM_OPENAI_BASE_URL")

	setFromEnv(&c.Gemini.APIKey, "LESSONSTREAM_GEMINI_API_KEY")
	setFromEnv(&c.Gemini.Model, "LESSONSTREAM_GEMINI_MODEL")

	setFromEnv(&c.OpenRouter.APIKey, "LESSONSTREAM_OPENROUTER_API_KEY")
	setFromEnv(&c.OpenRouter.Model, "LESSONSTREAM_OPENROUTER_MODEL")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// HasKey reports whether the selected provider has credentials.
func (c Config) HasKey() bool {
	switch c.Provider {
	case ProviderAnthropic:
		return c.Anthropic.APIKey != ""
	case ProviderOpenAI:
		return c.OpenAI.APIKey != ""
	case ProviderGemini:
		return c.Gemini.APIKey != ""
	case ProviderOpenRouter:
		return c.OpenRouter.APIKey != ""
	case ProviderMock:
		return true
	}
	return false
}

// Discover fills in a provider from the conventional vendor API key
// variables (Gemini, OpenAI, Anthropic, OpenRouter, in that order) when the
// configured provider has no key. It reports whether a usable provider
// was found.
func (c *Config) Discover() bool {
	if c.HasKey() {
		return true
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		c.Provider, c.Gemini.APIKey = ProviderGemini, k
		return true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		c.Provider, c.OpenAI.APIKey = ProviderOpenAI, k
		return true
	}
	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		c.Provider, c.Anthropic.APIKey = ProviderAnthropic, k
		return true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		c.Provider, c.OpenRouter.APIKey = ProviderOpenRouter, k
		return true
	}
	return false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderGemini, ProviderOpenRouter:
		if !c.HasKey() {
			return fmt.Errorf("an API key is required for the %s provider (LESSONSTREAM_%s_API_KEY)",
				c.Provider, envName(c.Provider))
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

func envName(provider string) string {
	switch provider {
	case ProviderOpenRouter:
		return "OPENROUTER"
	case ProviderOpenAI:
		return "OPENAI"
	case ProviderGemini:
		return "GEMINI"
	default:
		return "ANTHROPIC"
	}
}
