package tools_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/schema"
	"github.com/effective-security/toolrouter/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Message string `json:"message" validate:"required" jsonschema:"title=Message,description=The message to echo"`
	Times   int    `json:"times,omitempty" jsonschema:"description=Number of repeats"`
}

type echoTool struct {
	params any
}

func (t *echoTool) Name() string        { return "echo" }
func (t *echoTool) Description() string { return "Echoes the message" }
func (t *echoTool) Parameters() any     { return t.params }
func (t *echoTool) Call(_ context.Context, input string) (string, error) {
	var req echoRequest
	if err := tools.DecodeArguments(input, &req); err != nil {
		return "", err
	}
	return req.Message, nil
}

func TestDecodeArguments(t *testing.T) {
	var req echoRequest
	require.NoError(t, tools.DecodeArguments(`{"message":"hello","times":2}`, &req))
	assert.Equal(t, "hello", req.Message)
	assert.Equal(t, 2, req.Times)

	req = echoRequest{}
	require.NoError(t, tools.DecodeArguments("```json\n{\"message\":\"fenced\"}\n```", &req))
	assert.Equal(t, "fenced", req.Message)

	err := tools.DecodeArguments(`plain string`, &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrFailedUnmarshalInput))
	assert.True(t, errors.Is(err, tools.ErrInvalidToolArguments))
	assert.EqualError(t, err, "failed to unmarshal input: check the schema and try again")

	req = echoRequest{}
	err = tools.DecodeArguments(`{}`, &req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tools.ErrInvalidToolArguments))
	assert.EqualError(t, err, "message is required: invalid tool arguments")

	req = echoRequest{}
	err = tools.DecodeArguments(`{"message":""}`, &req)
	assert.True(t, errors.Is(err, tools.ErrInvalidToolArguments))
}

func TestDefinition(t *testing.T) {
	sc, err := schema.For[echoRequest]()
	require.NoError(t, err)

	for _, params := range []any{sc, sc.Parameters, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
		},
		"required": []string{"message"},
	}} {
		def, err := tools.Definition(&echoTool{params: params})
		require.NoError(t, err)
		assert.Equal(t, "function", def.Type)
		require.NotNil(t, def.Function)
		assert.Equal(t, "echo", def.Function.Name)
		assert.Equal(t, "Echoes the message", def.Function.Description)
		require.NotNil(t, def.Function.Parameters)
		assert.Equal(t, []string{"message"}, def.Function.Parameters.Required)
		_, ok := def.Function.Parameters.Properties.Get("message")
		assert.True(t, ok)
	}

	def, err := tools.Definition(&echoTool{})
	require.NoError(t, err)
	assert.Nil(t, def.Function.Parameters)

	_, err = tools.Definition(&echoTool{params: func() {}})
	assert.Error(t, err)
}

func TestGetDescriptions(t *testing.T) {
	exp := "\n```json\n" + `{
	"Tools": [
		{
			"Name": "echo",
			"Description": "Echoes the message"
		}
	]
}` + "\n```\n"
	assert.Equal(t, exp, tools.GetDescriptions(&echoTool{}))

	out, err := (&echoTool{}).Call(context.Background(), `{"message":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}
