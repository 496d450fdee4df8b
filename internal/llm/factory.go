package llm

import (
	"context"
	"fmt"
	"strings"

	"reqgather/internal/config"
)

const (
	ProviderOpenAI = "openai"
	ProviderYandex = "yandex"
	ProviderGemini = "gemini"
)

// Factory creates LLM clients with consistent logic
type Factory struct {
	OpenaiAPIKey       string
	OpenaiBaseURL      string
	OpenRouterReferrer string
	OpenRouterTitle    string
	YandexOAuthToken   string
	YandexFolderID     string
	GeminiAPIKey       string
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
		GeminiAPIKey:       cfg.GeminiAPIKey,
	}
}

func (f *Factory) CreateClient(ctx context.Context, provider, model string) (Client, error) {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return NewOpenAI(f.OpenaiAPIKey, f.OpenaiBaseURL, model, f.OpenRouterReferrer, f.OpenRouterTitle), nil
	case ProviderYandex:
		return NewYandex(f.YandexOAuthToken, f.YandexFolderID)
	case ProviderGemini:
		return NewGemini(ctx, f.GeminiAPIKey, model)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
}

// CreatePair builds the primary client and, when fallbackModel is set, a
// secondary client on the same provider.
func (f *Factory) CreatePair(ctx context.Context, provider, model, fallbackModel string) (Client, Client, error) {
	primary, err := f.CreateClient(ctx, provider, model)
	if err != nil {
		return nil, nil, err
	}
	if fallbackModel == "" || fallbackModel == model {
		return primary, nil, nil
	}
	secondary, err := f.CreateClient(ctx, provider, fallbackModel)
	if err != nil {
		return nil, nil, fmt.Errorf("fallback client: %w", err)
	}
	return primary, secondary, nil
}
