package engine

import (
	"fmt"

	"github.com/linggen/linggen-agent/internal/config"
	"github.com/linggen/linggen-agent/internal/providers"
)

// ProviderResolver maps a config-declared model id to the concrete
// providers.LLMProvider that serves it and the provider-native model name
// to request. It deliberately does not carry any routing rules,
// health-cooldown, or failover-classifier logic: credential and provider
// selection for a model id is a fixed, deterministic lookup, not a policy
// decision.
type ProviderResolver struct {
	models    map[string]config.ModelConfig
	providers map[string]providers.LLMProvider // provider name -> backend
}

// NewProviderResolver builds a resolver from the config's model table and
// the set of backends constructed for this process (keyed by the
// provider names referenced there, e.g. "anthropic", "openai").
func NewProviderResolver(models map[string]config.ModelConfig, backends map[string]providers.LLMProvider) *ProviderResolver {
	return &ProviderResolver{models: models, providers: backends}
}

// Resolve returns the backend and provider-native model name for agent
// model id modelID.
func (r *ProviderResolver) Resolve(modelID string) (providers.LLMProvider, string, error) {
	binding, ok := r.models[modelID]
	if !ok {
		return nil, "", fmt.Errorf("engine: model %q is not declared in configuration", modelID)
	}
	backend, ok := r.providers[binding.Provider]
	if !ok {
		return nil, "", fmt.Errorf("engine: no provider backend registered for %q (model %q)", binding.Provider, modelID)
	}
	nativeName := binding.Name
	if nativeName == "" {
		nativeName = modelID
	}
	return backend, nativeName, nil
}
