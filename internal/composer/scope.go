package composer

import "github.com/ashvinar/memory-layer/internal/store"

// scopeFor maps a memory's originating source app onto the coarse scope
// tag the request's scopes[] filter selects against.
func scopeFor(app store.SourceApp) string {
	switch app {
	case store.SourceClaude, store.SourceChatGPT:
		return "assistant"
	case store.SourceVSCode:
		return "file"
	case store.SourceMail, store.SourceNotes:
		return "page"
	case store.SourceTerminal:
		return "terminal"
	default:
		return "memory"
	}
}

func inScopes(app store.SourceApp, scopes []string) bool {
	tag := scopeFor(app)
	for _, s := range scopes {
		if s == tag {
			return true
		}
	}
	return false
}
