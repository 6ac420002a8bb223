package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashvinar/memory-layer/internal/config"
)

// RemoteEmbedder calls an OpenAI-compatible /embeddings endpoint, used for
// both the Ollama and OpenAI providers since both speak that wire format.
// It falls back to HashEmbedder on any request failure, per the module's
// degrade-don't-fail posture for optional LLM augmentation.
type RemoteEmbedder struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	fallback   Embedder
}

// NewRemoteEmbedder builds a RemoteEmbedder from the service configuration,
// selecting the Ollama or OpenAI endpoint per cfg.LLMProvider.
func NewRemoteEmbedder(cfg config.Config) *RemoteEmbedder {
	r := &RemoteEmbedder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		fallback:   NewHashEmbedder(),
	}
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		r.baseURL = firstNonEmpty(cfg.OpenAIBaseURL, "https://api.openai.com/v1")
		r.model = cfg.OpenAIModel
		r.apiKey = cfg.OpenAIAPIKey
	default:
		r.baseURL = firstNonEmpty(cfg.OllamaURL, "http://localhost:11434/v1")
		r.model = cfg.OllamaModel
	}
	return r
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements Embedder, falling back to the hash embedder on any
// transport or decoding error so indexing never stalls on a flaky model
// endpoint.
func (r *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := r.embedRemote(ctx, texts)
	if err != nil {
		return r.fallback.Embed(ctx, texts)
	}
	return vecs, nil
}

func (r *RemoteEmbedder) embedRemote(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: r.model, Input: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding endpoint %s: %s: %s", r.baseURL, resp.Status, string(b))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(er.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(er.Data), len(texts))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = resizeTo(er.Data[i].Embedding, Dim)
	}
	return out, nil
}

// resizeTo truncates or zero-pads v to exactly n dimensions, since
// sqlite-vec requires a fixed column width but real embedding models emit
// whatever dimensionality they were trained at.
func resizeTo(v []float32, n int) []float32 {
	if len(v) == n {
		return v
	}
	out := make([]float32, n)
	copy(out, v)
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
