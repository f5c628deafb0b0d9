package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/llms/openai/internal/openaiclient"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

var (
	// ErrEmptyResponse is returned when the model returns no choices.
	ErrEmptyResponse = errors.New("no response")
	// ErrMissingToken is returned when no API token is configured.
	ErrMissingToken = errors.New("missing the OpenAI API key, set it in the OPENAI_API_KEY environment variable")
)

type LLM struct {
	client *openaiclient.Client
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	c, err := newClient(opts...)
	if err != nil {
		return nil, err
	}
	return &LLM{
		client: c,
	}, nil
}

func newClient(opts ...Option) (*openaiclient.Client, error) {
	options := &options{
		token:        os.Getenv(tokenEnvVarName),
		model:        os.Getenv(modelEnvVarName),
		baseURL:      getEnvs(baseURLEnvVarName, baseAPIBaseEnvVarName),
		organization: os.Getenv(organizationEnvVarName),
		provider:     ProviderOpenAI,
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.token == "" {
		return nil, ErrMissingToken
	}
	if openaiclient.IsAzure(options.provider) && options.apiVersion == "" {
		options.apiVersion = DefaultAPIVersion
	}

	return openaiclient.New(options.provider, options.model, options.token, options.baseURL,
		options.organization, options.apiVersion, options.httpClient)
}

func getEnvs(keys ...string) string {
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok && val != "" {
			return val
		}
	}
	return ""
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderType(o.client.Provider)
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	if o.client.Model == "" {
		return openaiclient.DefaultChatModel
	}
	return o.client.Model
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) { //nolint: lll, cyclop, funlen
	opts := llms.NewCallOptions(options...)

	chatMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		msg, err := messageFromMessage(mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msg)
	}

	req := &openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.MaxTokens > 0 {
		req.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		req.Temperature = openai.Float(opts.Temperature)
	}
	if opts.Seed != 0 {
		req.Seed = openai.Int(int64(opts.Seed))
	}
	if len(opts.Metadata) > 0 {
		req.Metadata = shared.Metadata{}
		for k, v := range opts.Metadata {
			req.Metadata[k] = fmt.Sprint(v)
		}
	}

	for _, tool := range opts.Tools {
		t, err := toolFromTool(tool)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert llms tool to openai tool")
		}
		req.Tools = append(req.Tools, t)
	}
	// tool_choice is only sent with tools
	if len(req.Tools) > 0 {
		req.ToolChoice = toolChoice(opts.ToolChoice)
	}

	result, err := o.client.CreateChat(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: fmt.Sprint(c.FinishReason),
			GenerationInfo: map[string]any{
				"CompletionTokens": result.Usage.CompletionTokens,
				"PromptTokens":     result.Usage.PromptTokens,
				"TotalTokens":      result.Usage.TotalTokens,
			},
		}
		for _, tool := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tool.ID,
				Type: string(tool.Type),
				FunctionCall: &llms.FunctionCall{
					Name:      tool.Function.Name,
					Arguments: tool.Function.Arguments,
				},
			})
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

func messageFromMessage(mc llms.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch mc.Role {
	case llms.RoleSystem:
		return openai.SystemMessage(textOf(mc)), nil
	case llms.RoleHuman:
		return openai.UserMessage(textOf(mc)), nil
	case llms.RoleAI:
		calls := mc.ToolCalls()
		if len(calls) == 0 {
			return openai.AssistantMessage(textOf(mc)), nil
		}
		am := &openai.ChatCompletionAssistantMessageParam{
			ToolCalls: make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls)),
		}
		if text := textOf(mc); text != "" {
			am.Content.OfString = openai.String(text)
		}
		for _, tc := range calls {
			am.ToolCalls = append(am.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      tc.Name(),
						Arguments: tc.Arguments(),
					},
				},
			})
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: am}, nil
	case llms.RoleTool:
		if len(mc.Parts) != 1 {
			return openai.ChatCompletionMessageParamUnion{}, errors.Errorf("expected exactly one part for role %v, got %v", mc.Role, len(mc.Parts))
		}
		p, ok := mc.Parts[0].(llms.ToolCallResponse)
		if !ok {
			return openai.ChatCompletionMessageParamUnion{}, errors.Errorf("expected part of type ToolCallResponse for role %v, got %T", mc.Role, mc.Parts[0])
		}
		return openai.ToolMessage(p.Content, p.ToolCallID), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, errors.WithMessagef(llms.ErrUnexpectedRole, "role %v not supported", mc.Role)
	}
}

// textOf joins the text parts of the message.
func textOf(mc llms.Message) string {
	var text string
	for _, p := range mc.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	return text
}

// toolFromTool converts an llms.Tool to an openai tool.
func toolFromTool(t llms.Tool) (openai.ChatCompletionToolUnionParam, error) {
	if t.Type != "function" || t.Function == nil {
		return openai.ChatCompletionToolUnionParam{}, errors.Errorf("tool type %v not supported", t.Type)
	}
	fn := shared.FunctionDefinitionParam{
		Name:        t.Function.Name,
		Description: openai.String(t.Function.Description),
	}
	if t.Function.Strict {
		fn.Strict = openai.Bool(true)
	}
	if t.Function.Parameters != nil {
		js, err := json.Marshal(t.Function.Parameters)
		if err != nil {
			return openai.ChatCompletionToolUnionParam{}, errors.Wrap(err, "marshal parameters")
		}
		params := shared.FunctionParameters{}
		if err := json.Unmarshal(js, &params); err != nil {
			return openai.ChatCompletionToolUnionParam{}, errors.Wrap(err, "unmarshal parameters")
		}
		fn.Parameters = params
	}
	return openai.ChatCompletionFunctionTool(fn), nil
}

func toolChoice(choice any) openai.ChatCompletionToolChoiceOptionUnionParam {
	switch c := choice.(type) {
	case string:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(c)}
	case llms.FunctionCallBehavior:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(string(c))}
	default:
		return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(openaiclient.DefaultFunctionCallBehavior)}
	}
}
