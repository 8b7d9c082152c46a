// Package llm narrows the teacher's internal/ai multi-method AIProvider
// interface (TriageFindings/GenerateFix/GeneratePRDescription) down to the
// single opaque completion call the Steward Analyze stage needs, per spec
// §4.6. Grounded on internal/ai/interface.go's provider abstraction and
// internal/ai/chain.go's circuit-breaker failover (see DESIGN.md's
// internal/llm entry).
package llm

import "context"

// Provider abstracts a single call to a language model.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
	// Complete sends prompt and returns the model's raw text response.
	Complete(ctx context.Context, prompt string) (string, error)
}

// modelSpec splits a "<provider>/<model-id>" string, per the default model
// "opencode/glm-4.7-free" named in spec §6. A string with no "/" is treated
// as a bare model id for the default provider.
func modelSpec(model string) (provider, id string) {
	for i := 0; i < len(model); i++ {
		if model[i] == '/' {
			return model[:i], model[i+1:]
		}
	}
	return defaultProvider, model
}

const defaultProvider = "opencode"
