package llm

import (
	"fmt"
	"os"
)

// New resolves model (a "<provider>/<model-id>" string, e.g.
// "opencode/glm-4.7-free" or a bare model id for the default provider) into
// a Provider, reading API keys and base URLs from environment variables the
// way the teacher's config.AIConfig fields are populated upstream of
// internal/ai.New. To add a provider: implement Provider in its own file
// and register it in the switch below.
func New(model string) (Provider, error) {
	providerName, modelID := modelSpec(model)
	switch providerName {
	case "opencode":
		return NewOpenCode(os.Getenv("OPENCODE_API_KEY"), modelID, os.Getenv("OPENCODE_BASE_URL")), nil
	case "openai":
		return NewOpenAI(os.Getenv("OPENAI_API_KEY"), modelID, os.Getenv("OPENAI_BASE_URL"))
	case "anthropic":
		return NewAnthropic(os.Getenv("ANTHROPIC_API_KEY"), modelID), nil
	case "ollama":
		return NewOllama(os.Getenv("OLLAMA_BASE_URL"), modelID)
	case "zai":
		return NewZAI(os.Getenv("ZAI_API_KEY"), modelID, os.Getenv("ZAI_BASE_URL")), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q in model %q (supported: opencode, openai, anthropic, ollama, zai)", providerName, model)
	}
}

// NewChainFromModels resolves each model spec into a Provider and combines
// them into a fallback Chain, the primary first. Unresolvable entries are
// skipped with their error surfaced only if every entry fails to resolve.
func NewChainFromModels(models ...string) (*Chain, error) {
	var providers []Provider
	var errs []error
	for _, m := range models {
		p, err := New(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		providers = append(providers, p)
	}
	if len(providers) == 0 {
		if len(errs) > 0 {
			return nil, errs[0]
		}
		return nil, fmt.Errorf("llm: no models configured")
	}
	return NewChain(providers...), nil
}
