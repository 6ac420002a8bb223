// Package llm provides the minimal chat-completion abstraction the
// extraction worker uses to augment heuristic candidates. Unlike a full
// agent runtime, memory extraction only ever needs one-shot, non-streaming
// completions, so the interface is deliberately narrow.
package llm

import "context"

// Provider is implemented by each supported backend (Ollama, OpenAI, and
// any other OpenAI-compatible endpoint).
type Provider interface {
	// Complete sends a single system/user exchange and returns the
	// assistant's reply text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// Build constructs the Provider named by providerName, wiring in whichever
// endpoint and model fields are relevant to that backend. Ollama and any
// other unrecognized provider name are treated as an OpenAI-compatible
// local endpoint.
func Build(providerName, baseURL, model, apiKey string) Provider {
	switch providerName {
	case "openai":
		return newOpenAIProvider(firstNonEmpty(baseURL, "https://api.openai.com/v1"), apiKey, model)
	default:
		return newOpenAIProvider(firstNonEmpty(baseURL, "http://localhost:11434/v1"), apiKey, model)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
