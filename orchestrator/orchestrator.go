// Package orchestrator asks a language model to choose the tools for a query,
// executes the selected tool invocations and produces the final answer.
//
// The ticket routing flow is terminal: the rendered tool results are the answer.
// The web summary flow continues: the tool result is fed back to the model
// for the second completion.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/llmutils"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "orchestrator")

// NoAnswerText is returned when the model selected no tool and replied with empty text
const NoAnswerText = "Sorry, I couldn't process your request."

// OutcomeKind is the kind of the request outcome
type OutcomeKind string

const (
	// OutcomeTools is the rendered results of the tools
	OutcomeTools OutcomeKind = "tools"
	// OutcomeAssistantText is the text of the model that selected no tool
	OutcomeAssistantText OutcomeKind = "assistant_text"
	// OutcomeContinuation is the text of the second completion
	OutcomeContinuation OutcomeKind = "continuation"
)

// Outcome is the result of a request
type Outcome struct {
	Kind    OutcomeKind  `json:"kind" yaml:"kind"`
	Text    string       `json:"text" yaml:"text"`
	Results []ToolResult `json:"results,omitempty" yaml:"results,omitempty"`
	// History is the conversation of the request, read only
	History []llms.Message `json:"-" yaml:"-"`
}

// Orchestrator runs the requests, it is safe for concurrent use.
type Orchestrator struct {
	llm llms.Model
	cfg *Config
}

// New returns Orchestrator
func New(llm llms.Model, opts ...Option) *Orchestrator {
	return &Orchestrator{
		llm: llm,
		cfg: NewConfig(opts...),
	}
}

// Run answers the query with the tools of the registry.
func (o *Orchestrator) Run(ctx context.Context, reg *registry.Registry, query string) (*Outcome, error) {
	class := reg.Class()
	if strings.TrimSpace(query) == "" {
		return nil, errors.WithStack(ErrMissingQuery)
	}

	if GetRequestContext(ctx) == nil {
		ctx = WithRequestContext(ctx, NewRequestContext("", class))
	}

	cb := o.cfg.CallbackHandler
	cb.OnRequestStart(ctx, class, query)

	started := time.Now()
	flow := string(class)

	outcome, err := o.start(ctx, reg, query)
	metricskey.PerfRequest.MeasureSince(started, flow)
	if err != nil {
		metricskey.StatsRequests.IncrCounter(1, flow, "error")
		logger.ContextKV(ctx, xlog.ERROR,
			"status", "request_failed",
			"request_id", GetRequestID(ctx),
			"flow", flow,
			"query", slices.StringUpto(query, 64),
			"err", err.Error(),
		)
		cb.OnRequestError(ctx, class, query, err)
		return nil, err
	}

	metricskey.StatsRequests.IncrCounter(1, flow, string(outcome.Kind))
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "request_completed",
		"request_id", GetRequestID(ctx),
		"flow", flow,
		"outcome", string(outcome.Kind),
		"results", len(outcome.Results),
		"elapsed", time.Since(started).String(),
	)
	cb.OnRequestEnd(ctx, class, query, outcome)
	return outcome, nil
}

func (o *Orchestrator) start(ctx context.Context, reg *registry.Registry, query string) (*Outcome, error) {
	prompt, err := registry.Prompt(reg.Class()).FormatPrompt(map[string]any{
		registry.QueryVariable: query,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to build the prompt")
	}
	return o.run(ctx, reg, prompt.Messages())
}

func (o *Orchestrator) run(ctx context.Context, reg *registry.Registry, history []llms.Message) (*Outcome, error) {
	cls, err := o.Classify(ctx, history, reg)
	if err != nil {
		return nil, err
	}

	if reg.Class() == registry.ClassWebSummary {
		return o.Continue(ctx, history, cls, reg)
	}

	history = append(clip(history), cls.Message)
	if len(cls.ToolCalls) == 0 {
		return assistantText(cls, history), nil
	}

	results := o.Dispatch(ctx, reg, cls.ToolCalls)
	return &Outcome{
		Kind:    OutcomeTools,
		Text:    RenderResults(results),
		Results: results,
		History: history,
	}, nil
}

// generate issues one completion.
func (o *Orchestrator) generate(ctx context.Context, flow string, messages []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	modelName := o.llm.GetName()
	cb := o.cfg.CallbackHandler
	cb.OnLLMCallStart(ctx, o.llm, messages)

	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), flow, modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(llmutils.CountMessagesContentSize(messages)), flow, modelName)

	started := time.Now()
	resp, err := o.llm.GenerateContent(ctx, messages, opts...)
	metricskey.PerfLLMCall.MeasureSince(started, flow)
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = errors.New("the language model returned empty response")
	}
	if err != nil {
		metricskey.StatsLLMCallsFailed.IncrCounter(1, flow)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "llm_call_failed",
			"request_id", GetRequestID(ctx),
			"flow", flow,
			"model", modelName,
			"err", err.Error(),
		)
		return nil, err
	}
	metricskey.StatsLLMCallsSucceeded.IncrCounter(1, flow)

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), flow, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), flow, modelName)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), flow, modelName)

	cb.OnLLMCallEnd(ctx, o.llm, resp)
	return resp, nil
}

func assistantText(cls *Classification, history []llms.Message) *Outcome {
	text := cls.Text
	if strings.TrimSpace(text) == "" {
		text = NoAnswerText
	}
	return &Outcome{
		Kind:    OutcomeAssistantText,
		Text:    text,
		History: history,
	}
}

// clip returns the slice with capacity limited to its length,
// so append never writes to the caller's array.
func clip(messages []llms.Message) []llms.Message {
	return messages[:len(messages):len(messages)]
}
