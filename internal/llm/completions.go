package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"
)

// Message is one turn of a chat-completion request.
type Message struct {
	Role    string
	Content string
}

// openAIProvider speaks the OpenAI chat-completions API via the official
// SDK. Ollama is wired through the same type since its /v1 endpoint is
// OpenAI-compatible; only the base URL and API key differ.
type openAIProvider struct {
	client openai.Client
	model  string
}

func newOpenAIProvider(baseURL, apiKey, model string) *openAIProvider {
	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &openAIProvider{client: openai.NewClient(opts...), model: model}
}

func (p *openAIProvider) Complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: param.NewOpt(0.2),
		MaxTokens:   param.NewOpt(int64(512)),
	})
	if err != nil {
		return "", fmt.Errorf("llm: completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
