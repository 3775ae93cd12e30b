package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSchema map[string]any

func (s stubSchema) MarshalJSON() ([]byte, error) { return json.Marshal(map[string]any(s)) }

func TestOpenAIProviderChat_RequestAndResponse(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"chatcmpl-1",
			"model":"deepseek/deepseek-chat",
			"choices":[{
				"index":0,
				"finish_reason":"tool_calls",
				"message":{
					"role":"assistant",
					"content":"",
					"tool_calls":[{
						"id":"call_1",
						"type":"function",
						"function":{"name":"parse_intent","arguments":"{\"intent\":\"logs\",\"params\":{\"resource_name\":\"api\"}}"}
					}]
				}
			}],
			"usage":{"prompt_tokens":12,"completion_tokens":5,"total_tokens":17}
		}`))
	}))
	defer srv.Close()

	p, err := newOpenAIProvider(NameOpenRouter, "test-key", "deepseek/deepseek-chat", 0, srv.URL+"/v1/", srv.Client())
	require.NoError(t, err)

	resp := p.Chat(context.Background(), ChatRequest{
		SystemPrompt: "be concise",
		MaxTokens:    128,
		Messages:     []ChatMessage{{Role: RoleUser, Content: "logs for api"}},
		Tools: []ToolDefinition{{
			Name:             "parse_intent",
			Description:      "Classify",
			Parameters:       map[string]any{"type": "object", "properties": map[string]any{}},
			StrictParameters: map[string]any{"type": "object", "properties": map[string]any{}, "required": []string{}, "additionalProperties": false},
		}},
		ResponseSchema: &ResponseSchema{Name: "ignored", Schema: stubSchema{"type": "object"}},
	})

	assert.Equal(t, "Bearer test-key", gotAuth)
	messages, _ := gotReq["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])

	tools, _ := gotReq["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, true, fn["strict"])
	_, hasFormat := gotReq["response_format"]
	assert.False(t, hasFormat, "response_format must not be combined with tools")

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, NameOpenRouter, resp.Provider)
	assert.Equal(t, "deepseek/deepseek-chat", resp.Model)
	assert.True(t, resp.StoppedForToolUse())
	assert.Equal(t, 17, resp.TotalTokens())

	call := resp.FirstToolCall()
	require.NotNil(t, call)
	assert.Equal(t, "call_1", call.ID)
	assert.Equal(t, "logs", call.Arguments["intent"])
}

func TestOpenAIProviderChat_SendsResponseFormatWithoutTools(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"intent\":\"none\"}"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer srv.Close()

	p, err := newOpenAIProvider(NameOpenAI, "k", "gpt-4o-mini", 64, srv.URL, srv.Client())
	require.NoError(t, err)

	resp := p.Chat(context.Background(), ChatRequest{
		Messages:       []ChatMessage{{Role: RoleUser, Content: "hello"}},
		ResponseSchema: &ResponseSchema{Name: "intent_result", Schema: stubSchema{"type": "object"}},
	})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, `{"intent":"none"}`, resp.Content)
	assert.False(t, resp.HasToolCalls())

	format, ok := gotReq["response_format"].(map[string]any)
	require.True(t, ok, "expected response_format in request")
	assert.Equal(t, "json_schema", format["type"])
}

func TestOpenAIProviderChat_HTTPErrorIsFailedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"auth"}}`))
	}))
	defer srv.Close()

	p, err := newOpenAIProvider(NameOpenAI, "bad", "gpt-4o-mini", 64, srv.URL, srv.Client())
	require.NoError(t, err)

	resp := p.Chat(context.Background(), ChatRequest{Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}}})
	assert.False(t, resp.Success)
	assert.Empty(t, resp.Content)
	assert.Contains(t, resp.Error, "invalid key")
}

func TestToOpenAIMessages_ReplaysToolCalls(t *testing.T) {
	msgs := toOpenAIMessages("", []ChatMessage{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "parse_intent", Arguments: map[string]any{"intent": "status"}}}},
		{Role: RoleTool, ToolCallID: "c1", Content: "healthy"},
	})
	require.Len(t, msgs, 2)
	require.Len(t, msgs[0].ToolCalls, 1)
	assert.JSONEq(t, `{"intent":"status"}`, msgs[0].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", msgs[1].ToolCallID)
}
