package llm

import (
	"context"
	"fmt"

	"github.com/abhisek/lessonstream/internal/logger"
	"github.com/abhisek/lessonstream/internal/store"
)

// NewProvider creates a StreamProvider from configuration, wrapped with
// retry and logging middleware. repo may be nil to skip event recording.
func NewProvider(ctx context.Context, cfg Config, repo store.EventRepo, log *logger.Logger) (StreamProvider, error) {
	var base StreamProvider
	var err error

	switch cfg.Provider {
	case ProviderAnthropic:
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case ProviderOpenAI:
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case ProviderOpenRouter:
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case ProviderGemini:
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// caller → retry → logging → base
	logged := WithLogging(base, cfg.Provider, repo, log)
	return WithRetry(logged, cfg.Retry), nil
}
