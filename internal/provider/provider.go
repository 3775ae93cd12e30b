// Package provider talks to LLM backends. Every backend response, whatever its
// wire shape, is normalized into ChatResponse and ToolCall here and nowhere else.
package provider

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai"
)

// Provider sends chat requests to an LLM backend. Transport failures are
// reported through ChatResponse.Failed, never as a separate error.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) ChatResponse
}

// Role is the author role for a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool is a tool-result message addressed to the model.
	RoleTool Role = "tool"
)

// ChatMessage is a single message in model conversation history.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolDefinition describes a callable tool exposed to the model.
// StrictParameters, when set, is the strict-mode rewrite of Parameters used by
// OpenAI-compatible backends.
type ToolDefinition struct {
	Name             string
	Description      string
	Parameters       map[string]any
	StrictParameters map[string]any
}

// ResponseSchema asks the backend for JSON content matching Schema when it
// answers without tool calls. Backends without structured output ignore it.
type ResponseSchema struct {
	Name        string
	Description string
	Schema      json.Marshaler
}

// OpenAIFormat renders the schema as a strict json_schema response format.
func (s ResponseSchema) OpenAIFormat() openai.ChatCompletionResponseFormat {
	return openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        s.Name,
			Description: s.Description,
			Schema:      s.Schema,
			Strict:      true,
		},
	}
}

// ChatRequest is the provider-agnostic request payload.
type ChatRequest struct {
	SystemPrompt   string
	Messages       []ChatMessage
	Tools          []ToolDefinition
	MaxTokens      int
	ResponseSchema *ResponseSchema
}

func resolveMaxTokens(requestMaxTokens, configuredMaxTokens int) int {
	if requestMaxTokens > 0 {
		return requestMaxTokens
	}
	if configuredMaxTokens > 0 {
		return configuredMaxTokens
	}
	return defaultMaxTokens
}

const defaultMaxTokens = 1024
