package tooldefs

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestForAnthropicHasTwoTools(t *testing.T) {
	tools := ForAnthropic()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	if tools[0].Name != ParseIntentTool || tools[1].Name != ExecuteCommandTool {
		t.Fatalf("unexpected tool names %q %q", tools[0].Name, tools[1].Name)
	}

	parse := tools[0]
	if len(parse.InputSchema.Required) != 1 || parse.InputSchema.Required[0] != "intent" {
		t.Fatalf("parse_intent must require only intent, got %#v", parse.InputSchema.Required)
	}
	props, ok := parse.InputSchema.Properties.(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", parse.InputSchema.Properties)
	}
	intent := props["intent"].(map[string]any)
	enum := intent["enum"].([]string)
	if len(enum) != len(IntentTypes) {
		t.Fatalf("intent enum mismatch: %#v", enum)
	}
	confidence := props["confidence"].(map[string]any)
	if confidence["type"] != "number" {
		t.Fatalf("confidence must be a number, got %#v", confidence["type"])
	}
}

func TestForAnthropicSerializesObjectSchema(t *testing.T) {
	raw, err := json.Marshal(ForAnthropic()[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		InputSchema struct {
			Type     string   `json:"type"`
			Required []string `json:"required"`
		} `json:"input_schema"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.InputSchema.Type != "object" {
		t.Fatalf("expected object input schema, got %s", raw)
	}
}

func TestForOpenAIIsStrict(t *testing.T) {
	tools := ForOpenAI()
	if len(tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(tools))
	}
	for _, tool := range tools {
		if tool.Type != openai.ToolTypeFunction || tool.Function == nil {
			t.Fatalf("expected function tool, got %#v", tool)
		}
		if !tool.Function.Strict {
			t.Fatalf("%s: expected strict", tool.Function.Name)
		}
		schema, ok := tool.Function.Parameters.(map[string]any)
		if !ok {
			t.Fatalf("%s: unexpected parameters type %T", tool.Function.Name, tool.Function.Parameters)
		}
		assertStrictObject(t, tool.Function.Name, schema)
	}
}

func assertStrictObject(t *testing.T, path string, node map[string]any) {
	t.Helper()
	if items, ok := node["items"].(map[string]any); ok {
		assertStrictObject(t, path+"[]", items)
	}
	props, ok := node["properties"].(map[string]any)
	if !ok {
		return
	}
	if node["additionalProperties"] != false {
		t.Fatalf("%s: expected additionalProperties false", path)
	}
	required, _ := node["required"].([]string)
	if len(required) != len(props) {
		t.Fatalf("%s: required %v does not list every property", path, required)
	}
	for _, name := range required {
		child, ok := props[name].(map[string]any)
		if !ok {
			t.Fatalf("%s: required %q missing from properties", path, name)
		}
		assertStrictObject(t, path+"."+name, child)
	}
}

func TestStrictMakesOptionalNullable(t *testing.T) {
	strict := Strict(parseIntentSchema())
	props := strict["properties"].(map[string]any)

	intent := props["intent"].(map[string]any)
	if intent["type"] != "string" {
		t.Fatalf("required intent must stay non-null, got %#v", intent["type"])
	}

	response := props["response_text"].(map[string]any)
	types, ok := response["type"].([]any)
	if !ok || len(types) != 2 || types[1] != "null" {
		t.Fatalf("optional response_text must be nullable, got %#v", response["type"])
	}

	params := props["params"].(map[string]any)
	resourceType := params["properties"].(map[string]any)["resource_type"].(map[string]any)
	enum := resourceType["enum"].([]any)
	if enum[len(enum)-1] != nil {
		t.Fatalf("nullable enum must include null, got %#v", enum)
	}
	if _, ok := props["confidence"].(map[string]any)["minimum"]; ok {
		t.Fatalf("strict schema must drop minimum")
	}
}

func TestStrictDoesNotMutateInput(t *testing.T) {
	schema := executeCommandSchema()
	_ = Strict(schema)
	if _, ok := schema["additionalProperties"]; ok {
		t.Fatalf("Strict mutated its input")
	}
	required := schema["required"].([]string)
	if len(required) != 1 {
		t.Fatalf("Strict mutated required: %v", required)
	}
}

func TestIntentParsingSchema(t *testing.T) {
	format := IntentParsingSchema()
	if format.Type != openai.ChatCompletionResponseFormatTypeJSONSchema {
		t.Fatalf("unexpected format type %q", format.Type)
	}
	if format.JSONSchema == nil || format.JSONSchema.Name != "intent_result" || !format.JSONSchema.Strict {
		t.Fatalf("unexpected json schema %#v", format.JSONSchema)
	}
	raw, err := format.JSONSchema.Schema.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	var decoded struct {
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	for _, key := range []string{"intent", "confidence", "response_text"} {
		if _, ok := decoded.Properties[key]; !ok {
			t.Fatalf("schema missing %s: %s", key, raw)
		}
	}
}

func TestDefinitionsCarryStrictRewrite(t *testing.T) {
	for _, def := range Definitions() {
		if def.Parameters == nil || def.StrictParameters == nil {
			t.Fatalf("%s: expected both schema variants", def.Name)
		}
		if _, ok := def.Parameters["additionalProperties"]; ok {
			t.Fatalf("%s: plain schema must stay non-strict", def.Name)
		}
		if def.StrictParameters["additionalProperties"] != false {
			t.Fatalf("%s: strict schema must forbid additional properties", def.Name)
		}
	}
}

func TestParseIntentOnly(t *testing.T) {
	if got := ParseIntentOnlyAnthropic(); len(got) != 1 || got[0].Name != ParseIntentTool {
		t.Fatalf("unexpected anthropic subset %#v", got)
	}
	if got := ParseIntentOnlyOpenAI(); len(got) != 1 || got[0].Function.Name != ParseIntentTool {
		t.Fatalf("unexpected openai subset %#v", got)
	}
	if got := ParseIntentOnly(); len(got) != 1 || got[0].Name != ParseIntentTool {
		t.Fatalf("unexpected neutral subset %#v", got)
	}
	if got := Definitions(); len(got) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(got))
	}
}

func TestValidateArguments(t *testing.T) {
	cases := []struct {
		name    string
		tool    string
		args    map[string]any
		wantErr bool
	}{
		{name: "valid intent", tool: ParseIntentTool, args: map[string]any{"intent": "restart", "confidence": 0.9}},
		{name: "nulls dropped", tool: ParseIntentTool, args: map[string]any{"intent": "logs", "response_text": nil, "params": map[string]any{"resource_name": "api", "project_name": nil}}},
		{name: "missing intent", tool: ParseIntentTool, args: map[string]any{"confidence": 0.3}, wantErr: true},
		{name: "bad enum", tool: ParseIntentTool, args: map[string]any{"intent": "reformat"}, wantErr: true},
		{name: "commands", tool: ExecuteCommandTool, args: map[string]any{"commands": []any{map[string]any{"action": "stop", "resource_name": "api"}}}},
		{name: "command without action", tool: ExecuteCommandTool, args: map[string]any{"commands": []any{map[string]any{"resource_name": "api"}}}, wantErr: true},
		{name: "nil args", tool: ExecuteCommandTool, args: nil, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateArguments(tc.tool, tc.args)
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateArgumentsUnknownTool(t *testing.T) {
	err := ValidateArguments("drop_tables", map[string]any{})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}
