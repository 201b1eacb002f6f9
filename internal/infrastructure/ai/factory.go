// Package ai adapts OpenAI-compatible chat completion endpoints to the
// uniform provider contract. Every supported vendor speaks the same wire
// dialect, so one codec serves them all; vendors differ only in endpoint,
// model, and credential defaults.
package ai

import (
	"fmt"
	"net/http"

	"github.com/opsforge/opspilot/internal/domain"
	"github.com/opsforge/opspilot/internal/ports"
)

// Factory builds providers from configuration entries.
type Factory struct {
	httpClient *http.Client
}

// NewFactory creates a provider factory. A nil client selects the default
// one with the standard outer timeout.
func NewFactory(client *http.Client) *Factory {
	if client == nil {
		client = &http.Client{Timeout: domain.DefaultHTTPClientTimeout}
	}
	return &Factory{httpClient: client}
}

// vendorDefaults fills endpoint, model, and credential gaps per kind.
// Ollama is a local endpoint and needs no credential.
var vendorDefaults = map[string]domain.ProviderConfig{
	domain.ProviderKindDeepSeek: {
		Endpoint:   "https://api.deepseek.com/v1/chat/completions",
		Model:      "deepseek-chat",
		AuthEnvVar: "DEEPSEEK_API_KEY",
	},
	domain.ProviderKindOpenAI: {
		Endpoint:   "https://api.openai.com/v1/chat/completions",
		Model:      "gpt-4o-mini",
		AuthEnvVar: "OPENAI_API_KEY",
	},
	domain.ProviderKindQwen: {
		Endpoint:   "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions",
		Model:      "qwen-turbo",
		AuthEnvVar: "DASHSCOPE_API_KEY",
	},
	domain.ProviderKindOllama: {
		Endpoint: "http://localhost:11434/v1/chat/completions",
		Model:    "qwen2.5:7b",
	},
}

// ForConfig implements ports.ProviderFactory. Unknown kinds are an error
// so a mistyped configuration fails at startup, not mid-turn.
func (f *Factory) ForConfig(cfg domain.ProviderConfig) (ports.Provider, error) {
	resolved, err := ResolveDefaults(cfg)
	if err != nil {
		return nil, err
	}
	return newChatProvider(resolved, f.httpClient), nil
}

// ResolveDefaults implements ports.ProviderFactory.
func (f *Factory) ResolveDefaults(cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	return ResolveDefaults(cfg)
}

// ResolveDefaults merges vendor defaults into a provider entry. The doctor
// reuses it to learn which endpoint and credential a provider would use.
func ResolveDefaults(cfg domain.ProviderConfig) (domain.ProviderConfig, error) {
	defaults, ok := vendorDefaults[cfg.Kind]
	if !ok {
		return domain.ProviderConfig{}, fmt.Errorf("provider %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaults.Endpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.AuthEnvVar == "" {
		cfg.AuthEnvVar = defaults.AuthEnvVar
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = domain.DefaultCompletionMaxTokens
	}
	return cfg, nil
}

// RequiresCredential reports whether the resolved entry needs an API key.
func RequiresCredential(cfg domain.ProviderConfig) bool {
	return cfg.AuthEnvVar != ""
}

var _ ports.ProviderFactory = (*Factory)(nil)
