package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const toolCallReply = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-3.5-turbo",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"message": {
			"role": "assistant",
			"content": null,
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "call_electronics_dept", "arguments": "{\"customerQuery\":\"my laptop is broken\"}"}
			}]
		}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

const textReply = `{
	"id": "chatcmpl-2",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-3.5-turbo",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "Here is the summary."}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func newTestServer(t *testing.T, reply string, bodies *[]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		*bodies = append(*bodies, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNew_MissingToken(t *testing.T) {
	t.Setenv(tokenEnvVarName, "")
	_, err := New()
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestGenerateContent_WithTools(t *testing.T) {
	var bodies []string
	server := newTestServer(t, toolCallReply, &bodies)

	llm, err := New(WithToken("test-token"), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOpenAI, llm.GetProviderType())
	assert.Equal(t, "gpt-3.5-turbo", llm.GetName())

	params := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"customerQuery"},
	}
	tools := []llms.Tool{{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "call_electronics_dept",
			Description: "Call this function for queries related to electronics and appliances",
			Parameters:  params,
		},
	}}

	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "classify"),
		llms.MessageFromTextParts(llms.RoleHuman, "my laptop is broken"),
	}, llms.WithTools(tools), llms.WithToolChoice("auto"))
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	require.Len(t, resp.Choices[0].ToolCalls, 1)

	tc := resp.Choices[0].ToolCalls[0]
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "function", tc.Type)
	assert.Equal(t, "call_electronics_dept", tc.Name())
	assert.Equal(t, `{"customerQuery":"my laptop is broken"}`, tc.Arguments())
	assert.Equal(t, "tool_calls", resp.Choices[0].StopReason)

	require.Len(t, bodies, 1)
	body := bodies[0]
	assert.Equal(t, "gpt-3.5-turbo", gjson.Get(body, "model").String())
	assert.Equal(t, "auto", gjson.Get(body, "tool_choice").String())
	assert.Equal(t, "system", gjson.Get(body, "messages.0.role").String())
	assert.Equal(t, "classify", gjson.Get(body, "messages.0.content").String())
	assert.Equal(t, "user", gjson.Get(body, "messages.1.role").String())
	assert.Equal(t, "function", gjson.Get(body, "tools.0.type").String())
	assert.Equal(t, "call_electronics_dept", gjson.Get(body, "tools.0.function.name").String())
	assert.Equal(t, "customerQuery", gjson.Get(body, "tools.0.function.parameters.required.0").String())
}

func TestGenerateContent_ContinuationHistory(t *testing.T) {
	var bodies []string
	server := newTestServer(t, textReply, &bodies)

	llm, err := New(WithToken("test-token"), WithBaseURL(server.URL+"/"), WithHTTPClient(server.Client()), WithModel("gpt-4o-mini"))
	require.NoError(t, err)

	call := llms.ToolCall{
		ID:           "call_9",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "read_content", Arguments: `{"url":"https://example.com"}`},
	}
	resp, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "summarize"),
		llms.MessageFromTextParts(llms.RoleHuman, "summarize https://example.com"),
		llms.MessageFromToolCalls(llms.RoleAI, call),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "call_9", Name: "read_content", Content: "page text"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "Here is the summary.", resp.Choices[0].Content)
	assert.Empty(t, resp.Choices[0].ToolCalls)

	require.Len(t, bodies, 1)
	body := bodies[0]
	assert.Equal(t, "gpt-4o-mini", gjson.Get(body, "model").String())
	assert.False(t, gjson.Get(body, "tools").Exists())
	assert.False(t, gjson.Get(body, "tool_choice").Exists())

	roles := []string{}
	for _, m := range gjson.Get(body, "messages").Array() {
		roles = append(roles, m.Get("role").String())
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool"}, roles)
	assert.Equal(t, "call_9", gjson.Get(body, "messages.2.tool_calls.0.id").String())
	assert.Equal(t, "read_content", gjson.Get(body, "messages.2.tool_calls.0.function.name").String())
	assert.Equal(t, "call_9", gjson.Get(body, "messages.3.tool_call_id").String())
	assert.Equal(t, "page text", gjson.Get(body, "messages.3.content").String())
}

func TestGenerateContent_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid api key", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	llm, err := New(WithToken("test-token"), WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	require.NoError(t, err)

	_, err = llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "hi"),
	})
	require.Error(t, err)
	assert.Equal(t, "API returned unexpected status code: 401: invalid api key", err.Error())
}

func TestGenerateContent_UnsupportedRole(t *testing.T) {
	llm, err := New(WithToken("test-token"))
	require.NoError(t, err)

	_, err = llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.Role("generic"), "hi"),
	})
	require.ErrorIs(t, err, llms.ErrUnexpectedRole)
}

func TestToolChoice(t *testing.T) {
	assert.Equal(t, "none", toolChoice("none").OfAuto.Value)
	assert.Equal(t, "auto", toolChoice(llms.FunctionCallBehaviorAuto).OfAuto.Value)
	assert.Equal(t, "auto", toolChoice(nil).OfAuto.Value)
}
