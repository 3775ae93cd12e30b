package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// openAIProvider serves OpenAI and OpenAI-compatible gateways such as OpenRouter.
type openAIProvider struct {
	name      string
	client    *openai.Client
	model     string
	maxTokens int
}

func newOpenAIProvider(name, apiKey, model string, maxTokens int, baseURL string, httpClient *http.Client) (Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%s api key is required", name)
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("%s model is required", name)
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &openAIProvider{
		name:      name,
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Chat sends a provider-agnostic chat request and normalizes the completion.
func (p *openAIProvider) Chat(ctx context.Context, req ChatRequest) ChatResponse {
	body := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  toOpenAIMessages(req.SystemPrompt, req.Messages),
		MaxTokens: resolveMaxTokens(req.MaxTokens, p.maxTokens),
	}
	for _, def := range req.Tools {
		body.Tools = append(body.Tools, OpenAITool(def))
	}
	if req.ResponseSchema != nil && len(req.Tools) == 0 {
		format := req.ResponseSchema.OpenAIFormat()
		body.ResponseFormat = &format
	}

	completion, err := p.client.CreateChatCompletion(ctx, body)
	if err != nil {
		return Failed(fmt.Errorf("%s request failed: %w", p.name, err), p.name, p.model)
	}
	return FromOpenAICompletion(completion, p.name)
}

// OpenAITool renders a tool definition as an OpenAI function tool. Definitions
// that carry StrictParameters are sent in strict mode.
func OpenAITool(def ToolDefinition) openai.Tool {
	fn := &openai.FunctionDefinition{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  def.Parameters,
	}
	if def.StrictParameters != nil {
		fn.Parameters = def.StrictParameters
		fn.Strict = true
	}
	return openai.Tool{Type: openai.ToolTypeFunction, Function: fn}
}

func toOpenAIMessages(system string, messages []ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if msg.Role == RoleTool {
			m.ToolCallID = msg.ToolCallID
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.ArgumentsJSON(),
				},
			})
		}
		out = append(out, m)
	}
	return out
}
