package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

// ToolStatus is the status of a tool invocation
type ToolStatus string

const (
	// ToolStatusOK is set when the tool returned a result
	ToolStatusOK ToolStatus = "ok"
	// ToolStatusFailed is set when the tool returned an error
	ToolStatusFailed ToolStatus = "failed"
	// ToolStatusInvalid is set when the arguments are invalid, the tool was not executed
	ToolStatusInvalid ToolStatus = "invalid"
	// ToolStatusDropped is set when the tool is not in the registry
	ToolStatusDropped ToolStatus = "dropped"
)

// ToolResult is the result of one tool invocation
type ToolResult struct {
	// Index of the invocation in the model reply
	Index     int        `json:"index" yaml:"index"`
	CallID    string     `json:"call_id" yaml:"call_id"`
	Tool      string     `json:"tool" yaml:"tool"`
	Arguments string     `json:"arguments" yaml:"arguments"`
	Status    ToolStatus `json:"status" yaml:"status"`
	Output    string     `json:"output,omitempty" yaml:"output,omitempty"`
	Err       error      `json:"-" yaml:"-"`
}

// Render returns the user visible text of the result
func (r ToolResult) Render() string {
	switch r.Status {
	case ToolStatusOK:
		return r.Output
	case ToolStatusFailed:
		reason := "unknown error"
		if r.Err != nil {
			reason = r.Err.Error()
		}
		return fmt.Sprintf("Error processing request: %s, we are working on it please be patient", reason)
	case ToolStatusInvalid:
		return fmt.Sprintf("The request to %s was skipped: the arguments are invalid.", r.Tool)
	case ToolStatusDropped:
		return fmt.Sprintf("The request to %s was skipped: the tool is not available.", r.Tool)
	}
	return ""
}

// RenderResults merges the results in the invocation order.
// A single result is rendered alone, several results are rendered
// one per line prefixed with the tool name.
func RenderResults(results []ToolResult) string {
	if len(results) == 1 {
		return results[0].Render()
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.Tool+": "+r.Render())
	}
	return strings.Join(lines, "\n")
}

// Dispatch executes the invocations concurrently.
// The result of each invocation is stored at its index,
// a failed invocation does not affect the others.
func (o *Orchestrator) Dispatch(ctx context.Context, reg *registry.Registry, calls []llms.ToolCall) []ToolResult {
	cb := o.cfg.CallbackHandler
	results := make([]ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, tc := range calls {
		name := tc.Name()
		results[i] = ToolResult{
			Index:     i,
			CallID:    tc.ID,
			Tool:      name,
			Arguments: tc.Arguments(),
		}

		tool, ok := reg.Lookup(name)
		if !ok {
			metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "tool_not_found",
				"request_id", GetRequestID(ctx),
				"tool", name,
				"available_tools", strings.Join(reg.Names(), ","),
			)
			results[i].Status = ToolStatusDropped
			results[i].Err = errors.WithMessagef(ErrToolNotFound, "%q", name)
			cb.OnToolNotFound(ctx, reg.Class(), name)
			continue
		}

		if err := ValidateArguments(tool, tc.Arguments()); err != nil {
			o.invalid(ctx, &results[i], err)
			continue
		}

		wg.Add(1)
		go func(res *ToolResult, tool tools.ITool) {
			defer wg.Done()
			o.execute(ctx, res, tool)
		}(&results[i], tool)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) execute(ctx context.Context, res *ToolResult, tool tools.ITool) {
	cb := o.cfg.CallbackHandler
	cb.OnToolStart(ctx, tool, res.Arguments)

	started := time.Now()
	out, err := tool.Call(ctx, res.Arguments)
	metricskey.PerfToolCall.MeasureSince(started, res.Tool)

	if err != nil {
		if errors.Is(err, ErrInvalidToolArguments) {
			o.invalid(ctx, res, err)
			cb.OnToolError(ctx, tool, res.Arguments, err)
			return
		}
		metricskey.StatsToolCallsFailed.IncrCounter(1, res.Tool)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "tool_failed",
			"request_id", GetRequestID(ctx),
			"tool", res.Tool,
			"err", err.Error(),
		)
		res.Status = ToolStatusFailed
		res.Err = err
		cb.OnToolError(ctx, tool, res.Arguments, err)
		return
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, res.Tool)
	res.Status = ToolStatusOK
	res.Output = out
	cb.OnToolEnd(ctx, tool, res.Arguments, out)
}

func (o *Orchestrator) invalid(ctx context.Context, res *ToolResult, err error) {
	metricskey.StatsToolCallsInvalid.IncrCounter(1, res.Tool)
	logger.ContextKV(ctx, xlog.WARNING,
		"status", "invalid_tool_arguments",
		"request_id", GetRequestID(ctx),
		"tool", res.Tool,
		"arguments", slices.StringUpto(res.Arguments, 128),
		"err", err.Error(),
	)
	res.Status = ToolStatusInvalid
	res.Err = err
}

// ValidateArguments checks that the arguments are a JSON object,
// and the required fields of the tool parameters are present and not empty.
func ValidateArguments(tool tools.ITool, args string) error {
	parsed := gjson.Parse(args)
	if !gjson.Valid(args) || !parsed.IsObject() {
		return errors.WithMessage(ErrInvalidToolArguments, "arguments must be a JSON object")
	}

	params, err := tools.ParametersSchema(tool)
	if err != nil {
		return errors.WithMessage(ErrInvalidToolArguments, err.Error())
	}
	if params == nil {
		return nil
	}

	fields := parsed.Map()
	for _, name := range params.Required {
		v, ok := fields[name]
		if !ok || v.Type == gjson.Null || (v.Type == gjson.String && strings.TrimSpace(v.Str) == "") {
			return errors.WithMessagef(ErrInvalidToolArguments, "%s is required", name)
		}
	}
	return nil
}
