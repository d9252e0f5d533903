package llm

import (
	"context"

	"github.com/courseforge/courseforge/internal/catalog"
	"github.com/courseforge/courseforge/internal/cost"
	"github.com/courseforge/courseforge/pkg/anthropic"
	"github.com/courseforge/courseforge/pkg/openai"
)

// NewClients builds the provider client map for the executor. Keys may come
// from server configuration or from a user's own stored keys; empty keys
// leave that provider out of the map, and the executor fails over models of
// absent providers like any other error.
func NewClients(openaiKey, anthropicKey string) map[string]Client {
	clients := make(map[string]Client, 2)
	if openaiKey != "" {
		clients[catalog.ProviderOpenAI] = NewOpenAIClient(openai.NewClient(openaiKey))
	}
	if anthropicKey != "" {
		clients[catalog.ProviderAnthropic] = NewAnthropicClient(anthropic.NewClient(anthropicKey))
	}
	return clients
}

// anthropicClient adapts pkg/anthropic to the provider-neutral Client.
type anthropicClient struct {
	api anthropic.Client
}

// NewAnthropicClient wraps an Anthropic API client.
func NewAnthropicClient(api anthropic.Client) Client {
	return &anthropicClient{api: api}
}

func (c *anthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := c.api.CreateMessage(ctx, toAnthropicRequest(req))
	if err != nil {
		return nil, err
	}
	return &Completion{Content: resp.Text(), Usage: anthropicUsage(resp.Usage)}, nil
}

func (c *anthropicClient) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error) {
	resp, err := c.api.StreamMessage(ctx, toAnthropicRequest(req), onChunk)
	if err != nil {
		return nil, err
	}
	return &Completion{Content: resp.Text(), Usage: anthropicUsage(resp.Usage)}, nil
}

func toAnthropicRequest(req Request) anthropic.MessageRequest {
	out := anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
	}
	if req.System != "" {
		out.System = anthropic.BuildCachedSystemBlocks(req.System)
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		out.Temperature = &temp
	}
	return out
}

func anthropicUsage(u anthropic.TokenUsage) cost.Usage {
	// Cache writes and reads are still input tokens for accounting.
	return cost.Usage{
		InputTokens:  u.InputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens,
		OutputTokens: u.OutputTokens,
	}
}

// openaiClient adapts pkg/openai to the provider-neutral Client.
type openaiClient struct {
	api openai.Client
}

// NewOpenAIClient wraps an OpenAI API client.
func NewOpenAIClient(api openai.Client) Client {
	return &openaiClient{api: api}
}

func (c *openaiClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	resp, err := c.api.ChatCompletion(ctx, toOpenAIRequest(req))
	if err != nil {
		return nil, err
	}
	return &Completion{Content: resp.Text(), Usage: openaiUsage(resp.Usage)}, nil
}

func (c *openaiClient) Stream(ctx context.Context, req Request, onChunk func(string) error) (*Completion, error) {
	resp, err := c.api.StreamChatCompletion(ctx, toOpenAIRequest(req), onChunk)
	if err != nil {
		return nil, err
	}
	return &Completion{Content: resp.Text(), Usage: openaiUsage(resp.Usage)}, nil
}

func toOpenAIRequest(req Request) openai.ChatCompletionRequest {
	var messages []openai.Message
	if req.System != "" {
		messages = append(messages, openai.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, openai.Message{Role: "user", Content: req.Prompt})

	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		out.MaxTokens = &maxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		out.Temperature = &temp
	}
	return out
}

func openaiUsage(u openai.Usage) cost.Usage {
	return cost.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
	}
}
