package llm

import "fmt"

// OpenAI-compatible providers and their base URLs
var openAICompatibleProviders = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"together":   "https://api.together.xyz/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"fireworks":  "https://api.fireworks.ai/inference/v1",
	"perplexity": "https://api.perplexity.ai",
}

func New(cfg Config) (Completer, error) {
	switch cfg.Provider {
	case "claude":
		return newClaude(cfg.Timeout), nil
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return newOpenAICompatible(baseURL, cfg.Timeout), nil
	default:
		if baseURL, ok := openAICompatibleProviders[cfg.Provider]; ok {
			if cfg.BaseURL != "" {
				baseURL = cfg.BaseURL
			}
			return newOpenAICompatible(baseURL, cfg.Timeout), nil
		}
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// NewTranscriber returns the speech-to-text client for a provider. Only
// OpenAI-compatible providers expose a transcription endpoint.
func NewTranscriber(cfg Config) (Transcriber, error) {
	switch cfg.Provider {
	case "claude":
		return nil, fmt.Errorf("provider %s has no transcription endpoint", cfg.Provider)
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return newOpenAICompatible(baseURL, cfg.Timeout), nil
	default:
		if baseURL, ok := openAICompatibleProviders[cfg.Provider]; ok {
			if cfg.BaseURL != "" {
				baseURL = cfg.BaseURL
			}
			return newOpenAICompatible(baseURL, cfg.Timeout), nil
		}
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// IsKnownProvider checks if a provider is recognized
func IsKnownProvider(provider string) bool {
	switch provider {
	case "claude", "openai":
		return true
	default:
		_, ok := openAICompatibleProviders[provider]
		return ok
	}
}
