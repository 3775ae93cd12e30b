// Package tooldefs builds the tool schemas offered to the model: the Anthropic
// and OpenAI wire shapes of the same two tools, plus the structured-output
// schema used when the model answers without tool calls.
package tooldefs

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"

	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/provider"
)

const (
	ParseIntentTool    = "parse_intent"
	ExecuteCommandTool = "execute_command"
	intentResultName   = "intent_result"
)

// IntentTypes are the values accepted by parse_intent.intent.
var IntentTypes = []command.Action{
	command.ActionDeploy,
	command.ActionRestart,
	command.ActionStop,
	command.ActionStart,
	command.ActionLogs,
	command.ActionStatus,
	command.ActionHelp,
	command.ActionNone,
}

// ResourceTypes are the resource kinds the model may name.
var ResourceTypes = []command.ResourceType{
	command.ResourceApplication,
	command.ResourceService,
	command.ResourceDatabase,
	command.ResourceServer,
}

// CommandActions is every action accepted inside a commands array.
var CommandActions = command.Actions

// Schema is a JSON schema document. It satisfies json.Marshaler so it can be
// used directly as an OpenAI response-format schema.
type Schema map[string]any

func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any(s))
}

type toolSpec struct {
	name        string
	description string
	schema      func() Schema
}

var toolSpecs = []toolSpec{
	{
		name: ParseIntentTool,
		description: "Classify the operator's request into one intent with parameters. " +
			"Use intent none for small talk. Use the commands array when the request names several operations.",
		schema: parseIntentSchema,
	},
	{
		name: ExecuteCommandTool,
		description: "Run one or more infrastructure commands in order. " +
			"Each command names an action and the resource it applies to.",
		schema: executeCommandSchema,
	},
}

func lookupSpec(name string) (toolSpec, bool) {
	for _, s := range toolSpecs {
		if s.name == name {
			return s, true
		}
	}
	return toolSpec{}, false
}

// Definitions returns both tools in the provider-neutral shape.
func Definitions() []provider.ToolDefinition {
	out := make([]provider.ToolDefinition, 0, len(toolSpecs))
	for _, s := range toolSpecs {
		out = append(out, definition(s))
	}
	return out
}

// ParseIntentOnly returns the read-only subset: parse_intent without execute_command.
func ParseIntentOnly() []provider.ToolDefinition {
	return Definitions()[:1]
}

// ForAnthropic returns the tool list in the Anthropic Messages API shape.
func ForAnthropic() []anthropic.ToolParam {
	out := make([]anthropic.ToolParam, 0, len(toolSpecs))
	for _, s := range toolSpecs {
		out = append(out, provider.AnthropicTool(definition(s)))
	}
	return out
}

func ParseIntentOnlyAnthropic() []anthropic.ToolParam {
	s, _ := lookupSpec(ParseIntentTool)
	return []anthropic.ToolParam{provider.AnthropicTool(definition(s))}
}

// ForOpenAI returns the tool list as strict OpenAI function tools.
func ForOpenAI() []openai.Tool {
	out := make([]openai.Tool, 0, len(toolSpecs))
	for _, s := range toolSpecs {
		out = append(out, provider.OpenAITool(definition(s)))
	}
	return out
}

func ParseIntentOnlyOpenAI() []openai.Tool {
	s, _ := lookupSpec(ParseIntentTool)
	return []openai.Tool{provider.OpenAITool(definition(s))}
}

// IntentResultSchema is the structured-output request for answers that come
// back as content instead of tool calls.
func IntentResultSchema() *provider.ResponseSchema {
	return &provider.ResponseSchema{
		Name:        intentResultName,
		Description: "Structured interpretation of an operator request.",
		Schema:      Strict(intentResultSchema()),
	}
}

// IntentParsingSchema is the strict json_schema response format for IntentResultSchema.
func IntentParsingSchema() openai.ChatCompletionResponseFormat {
	return IntentResultSchema().OpenAIFormat()
}

func definition(s toolSpec) provider.ToolDefinition {
	schema := s.schema()
	return provider.ToolDefinition{
		Name:             s.name,
		Description:      s.description,
		Parameters:       schema,
		StrictParameters: Strict(schema),
	}
}

func parseIntentSchema() Schema {
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type":        "string",
				"enum":        enumOf(IntentTypes),
				"description": "The single operation the operator asked for.",
			},
			"params":        paramsSchema(),
			"confidence":    confidenceSchema(),
			"response_text": responseTextSchema(),
			"commands":      commandsSchema(),
		},
		"required": []string{"intent"},
	}
}

func executeCommandSchema() Schema {
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"commands":      commandsSchema(),
			"confidence":    confidenceSchema(),
			"response_text": responseTextSchema(),
		},
		"required": []string{"commands"},
	}
}

func intentResultSchema() Schema {
	return Schema{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type": "string",
				"enum": enumOf(IntentTypes),
			},
			"params":        paramsSchema(),
			"confidence":    confidenceSchema(),
			"response_text": responseTextSchema(),
		},
		"required": []string{"intent", "confidence"},
	}
}

func paramsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"resource_type":    resourceTypeSchema(),
			"resource_name":    stringSchema("Name of the resource as the operator wrote it."),
			"resource_id":      stringSchema("Identifier of the resource when known."),
			"project_name":     stringSchema("Project that owns the resource."),
			"environment_name": stringSchema("Environment inside the project, such as production."),
			"deployment_uuid":  stringSchema("Deployment to inspect."),
		},
	}
}

func commandsSchema() map[string]any {
	return map[string]any{
		"type":        "array",
		"description": "Commands in the order they must run.",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type": "string",
					"enum": enumOf(CommandActions),
				},
				"resource_type":    resourceTypeSchema(),
				"resource_name":    stringSchema("Single target resource."),
				"resource_names":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"project_name":     stringSchema("Project that owns the resource."),
				"environment_name": stringSchema("Environment inside the project."),
				"target_scope": map[string]any{
					"type": "string",
					"enum": []string{string(command.ScopeSingle), string(command.ScopeMultiple), string(command.ScopeAll)},
				},
				"deployment_uuid": stringSchema("Deployment to analyze."),
				"time_period":     stringSchema("Window such as 24h, 7d, 2w or 1m."),
			},
			"required": []string{"action"},
		},
	}
}

func resourceTypeSchema() map[string]any {
	values := append(enumOf(ResourceTypes), string(command.ResourceNone))
	return map[string]any{"type": "string", "enum": values}
}

func confidenceSchema() map[string]any {
	return map[string]any{
		"type":        "number",
		"minimum":     0,
		"maximum":     1,
		"description": "How sure you are about the interpretation, from 0 to 1.",
	}
}

func responseTextSchema() map[string]any {
	return stringSchema("Short reply shown to the operator.")
}

func stringSchema(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func enumOf[T ~string](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

func requiredOf(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
