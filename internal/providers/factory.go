package providers

import (
	"github.com/reins-ai/reins/internal/config"
	"github.com/reins-ai/reins/internal/schema"
)

// New creates the CompletionProvider for the configured endpoint.
func New(cfg config.ProviderConfig) schema.CompletionProvider {
	return NewOpenAIProvider(cfg.APIKey, cfg.APIBase, cfg.Model, cfg.ExtraHeaders)
}
