package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
)

const (
	NameAnthropic  = "anthropic"
	NameOpenAI     = "openai"
	NameOpenRouter = "openrouter"
)

// ChatResponse is the provider-agnostic response. A failed response has empty
// Content and a non-empty Error.
type ChatResponse struct {
	Success      bool       `json:"success"`
	Content      string     `json:"content"`
	Provider     string     `json:"provider"`
	Model        string     `json:"model"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	StopReason   string     `json:"stop_reason,omitempty"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// Succeeded builds a successful response. Usage and stop reason are set by the caller.
func Succeeded(provider, model, content string, calls []ToolCall) ChatResponse {
	return ChatResponse{
		Success:   true,
		Content:   content,
		Provider:  provider,
		Model:     model,
		ToolCalls: calls,
	}
}

// Failed builds an unsuccessful response carrying the error text.
func Failed(err error, provider, model string) ChatResponse {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return ChatResponse{
		Success:  false,
		Provider: provider,
		Model:    model,
		Error:    msg,
	}
}

func (r ChatResponse) TotalTokens() int { return r.InputTokens + r.OutputTokens }

func (r ChatResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// FirstToolCall returns the first tool call or nil.
func (r ChatResponse) FirstToolCall() *ToolCall {
	if len(r.ToolCalls) == 0 {
		return nil
	}
	call := r.ToolCalls[0]
	return &call
}

// ToolCall returns the first call to the named tool or nil.
func (r ChatResponse) ToolCall(name string) *ToolCall {
	for _, c := range r.ToolCalls {
		if c.Name == name {
			call := c
			return &call
		}
	}
	return nil
}

// StoppedForToolUse reports whether the model stopped to wait for tool results.
func (r ChatResponse) StoppedForToolUse() bool {
	return r.StopReason == "tool_use" || r.StopReason == "tool_calls"
}

// FromAnthropicMessage normalizes an Anthropic Messages API response.
func FromAnthropicMessage(msg *anthropic.Message) ChatResponse {
	if msg == nil {
		return Failed(errors.New("empty anthropic message"), NameAnthropic, "")
	}

	var text []string
	var calls []ToolCall
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			if v.Text != "" {
				text = append(text, v.Text)
			}
		case anthropic.ToolUseBlock:
			calls = append(calls, FromAnthropic(v))
		}
	}

	resp := Succeeded(NameAnthropic, string(msg.Model), strings.Join(text, "\n"), calls)
	resp.InputTokens = int(msg.Usage.InputTokens)
	resp.OutputTokens = int(msg.Usage.OutputTokens)
	resp.StopReason = string(msg.StopReason)
	return resp
}

// FromOpenAICompletion normalizes an OpenAI-compatible chat completion. The
// provider name distinguishes OpenAI from compatible gateways such as OpenRouter.
func FromOpenAICompletion(completion openai.ChatCompletionResponse, provider string) ChatResponse {
	if provider == "" {
		provider = NameOpenAI
	}
	if len(completion.Choices) == 0 {
		return Failed(fmt.Errorf("%s response has no choices", provider), provider, completion.Model)
	}

	choice := completion.Choices[0]
	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, FromOpenAI(tc))
	}
	if len(calls) == 0 {
		calls = nil
	}

	resp := Succeeded(provider, completion.Model, choice.Message.Content, calls)
	resp.InputTokens = completion.Usage.PromptTokens
	resp.OutputTokens = completion.Usage.CompletionTokens
	resp.StopReason = string(choice.FinishReason)
	return resp
}

type errorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e errorEnvelope) err() error {
	if e.Error == nil {
		return nil
	}
	if e.Error.Type != "" {
		return fmt.Errorf("%s: %s", e.Error.Type, e.Error.Message)
	}
	return errors.New(e.Error.Message)
}

// DecodeAnthropic normalizes a raw Anthropic response body.
func DecodeAnthropic(body []byte) ChatResponse {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Failed(fmt.Errorf("decode anthropic response: %w", err), NameAnthropic, "")
	}
	if err := env.err(); err != nil {
		return Failed(err, NameAnthropic, "")
	}
	var msg anthropic.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Failed(fmt.Errorf("decode anthropic response: %w", err), NameAnthropic, "")
	}
	return FromAnthropicMessage(&msg)
}

// DecodeOpenAI normalizes a raw OpenAI-compatible response body.
func DecodeOpenAI(body []byte, provider string) ChatResponse {
	if provider == "" {
		provider = NameOpenAI
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Failed(fmt.Errorf("decode %s response: %w", provider, err), provider, "")
	}
	if err := env.err(); err != nil {
		return Failed(err, provider, "")
	}
	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return Failed(fmt.Errorf("decode %s response: %w", provider, err), provider, "")
	}
	return FromOpenAICompletion(completion, provider)
}
