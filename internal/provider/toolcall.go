package provider

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
)

const toolTypeFunction = "function"

// ToolCall is a model request to run a named tool. Arguments is never nil.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Type      string         `json:"type"`
}

// FromAnthropic converts an Anthropic tool_use block. A block without an id
// gets a synthetic one so the result can still be matched in history.
func FromAnthropic(block anthropic.ToolUseBlock) ToolCall {
	id := strings.TrimSpace(block.ID)
	if id == "" {
		id = "tool_" + uuid.NewString()
	}
	return ToolCall{
		ID:        id,
		Name:      block.Name,
		Arguments: decodeArguments(block.Input),
		Type:      toolTypeFunction,
	}
}

// FromOpenAI converts an OpenAI tool call. Arguments arrive as a JSON string;
// empty or invalid JSON yields an empty map.
func FromOpenAI(call openai.ToolCall) ToolCall {
	typ := string(call.Type)
	if typ == "" {
		typ = toolTypeFunction
	}
	return ToolCall{
		ID:        call.ID,
		Name:      call.Function.Name,
		Arguments: decodeArguments([]byte(call.Function.Arguments)),
		Type:      typ,
	}
}

// ArgumentsJSON re-encodes the arguments for replay in conversation history.
func (c ToolCall) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeArguments(raw []byte) map[string]any {
	args := map[string]any{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return args
	}
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
