package orchestrator

import (
	"context"

	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/tools/webcontent"
	"github.com/effective-security/xlog"
)

// State of the continuation flow
type State string

const (
	// StateAwaitingToolResult is the state after the first completion
	StateAwaitingToolResult State = "awaiting_tool_result"
	// StateAwaitingFinalAnswer is the state after the tool result is appended
	StateAwaitingFinalAnswer State = "awaiting_final_answer"
)

// Continue executes the `read_content` invocation of the classification,
// appends the assistant tool call and the tool result to the history,
// and returns the text of the second completion.
// The second completion has no tools attached and is not retried.
func (o *Orchestrator) Continue(ctx context.Context, history []llms.Message, cls *Classification, reg *registry.Registry) (*Outcome, error) {
	flow := string(reg.Class())
	history = clip(history)

	call, ok := o.selectContinuationCall(ctx, cls.ToolCalls, reg)
	if !ok {
		return assistantText(cls, append(history, cls.Message)), nil
	}

	state := StateAwaitingToolResult
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "continuation",
		"request_id", GetRequestID(ctx),
		"state", string(state),
		"tool_call_id", call.ID,
	)

	results := o.Dispatch(ctx, reg, []llms.ToolCall{call})
	res := results[0]

	history = append(history,
		llms.MessageFromToolCalls(llms.RoleAI, call),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: call.ID,
			Name:       call.Name(),
			Content:    res.Render(),
		}),
	)

	state = StateAwaitingFinalAnswer
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "continuation",
		"request_id", GetRequestID(ctx),
		"state", string(state),
		"tool_status", string(res.Status),
	)

	resp, err := o.generate(ctx, flow, history, o.cfg.GetCallOptions()...)
	if err != nil {
		return nil, llmCallFailure(err, "failed to complete the answer")
	}

	return &Outcome{
		Kind:    OutcomeContinuation,
		Text:    resp.Choices[0].Content,
		Results: results,
		History: history,
	}, nil
}

// selectContinuationCall returns the first `read_content` invocation,
// the other invocations are dropped.
func (o *Orchestrator) selectContinuationCall(ctx context.Context, calls []llms.ToolCall, reg *registry.Registry) (llms.ToolCall, bool) {
	var selected llms.ToolCall
	found := false
	for _, tc := range calls {
		name := tc.Name()
		if !found && name == webcontent.ToolName {
			if _, ok := reg.Lookup(name); ok {
				selected = tc
				found = true
				continue
			}
		}
		if _, ok := reg.Lookup(name); !ok {
			metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
			o.cfg.CallbackHandler.OnToolNotFound(ctx, reg.Class(), name)
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "dropped_tool_call",
			"request_id", GetRequestID(ctx),
			"tool", name,
			"tool_call_id", tc.ID,
		)
	}
	return selected, found
}
