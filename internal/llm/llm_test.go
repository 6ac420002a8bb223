package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/llm"
)

func TestProviderCompleteReturnsChoiceContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "llama3.2:3b",
			"choices": []map[string]any{
				{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": "decision: use sqlite"}},
			},
		})
	}))
	defer srv.Close()

	provider := llm.Build("ollama", srv.URL, "llama3.2:3b", "")
	out, err := provider.Complete(context.Background(), "classify the turn", "we decided to use sqlite")
	require.NoError(t, err)
	require.Equal(t, "decision: use sqlite", out)
}

func TestProviderCompletePropagatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "model not loaded"}})
	}))
	defer srv.Close()

	provider := llm.Build("openai", srv.URL, "gpt-4o-mini", "sk-test")
	_, err := provider.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	require.Contains(t, err.Error(), "model not loaded")
}
