package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/toolrouter/orchestrator"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ orchestrator.Callback = (*Noop)(nil)
	_ tools.Callback        = (*Noop)(nil)
	_ orchestrator.Callback = (*Printer)(nil)
	_ tools.Callback        = (*Printer)(nil)
	_ orchestrator.Callback = (*PackageLogger)(nil)
	_ tools.Callback        = (*PackageLogger)(nil)
	_ orchestrator.Callback = (*Fanout)(nil)
	_ tools.Callback        = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []orchestrator.Callback
}

func NewFanout(callbacks ...orchestrator.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback orchestrator.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnRequestStart(ctx context.Context, class registry.Class, query string) {
	for _, callback := range l.callbacks {
		callback.OnRequestStart(ctx, class, query)
	}
}

func (l *Fanout) OnRequestEnd(ctx context.Context, class registry.Class, query string, outcome *orchestrator.Outcome) {
	for _, callback := range l.callbacks {
		callback.OnRequestEnd(ctx, class, query, outcome)
	}
}

func (l *Fanout) OnRequestError(ctx context.Context, class registry.Class, query string, err error) {
	for _, callback := range l.callbacks {
		callback.OnRequestError(ctx, class, query, err)
	}
}

func (l *Fanout) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallStart(ctx, llm, messages)
	}
}

func (l *Fanout) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnLLMCallEnd(ctx, llm, resp)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, class registry.Class, tool string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, class, tool)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnRequestStart(ctx context.Context, class registry.Class, query string) {}
func (l *Noop) OnRequestEnd(ctx context.Context, class registry.Class, query string, outcome *orchestrator.Outcome) {
}
func (l *Noop) OnRequestError(ctx context.Context, class registry.Class, query string, err error) {
}
func (l *Noop) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {}
func (l *Noop) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
}
func (l *Noop) OnToolNotFound(ctx context.Context, class registry.Class, tool string) {}
func (l *Noop) OnToolStart(ctx context.Context, tool tools.ITool, input string)       {}
func (l *Noop) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
}
func (l *Noop) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnRequestStart(ctx context.Context, class registry.Class, query string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Request Start: %s\n", class)
	fmt.Fprintf(l.Out, "Query: %s\n", query)
}

func (l *Printer) OnRequestEnd(ctx context.Context, class registry.Class, query string, outcome *orchestrator.Outcome) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Request End: %s (%s)\n", class, outcome.Kind)
	if l.Mode == ModeVerbose {
		fmt.Fprintln(l.Out, outcome.Text)
	}
}

func (l *Printer) OnRequestError(ctx context.Context, class registry.Class, query string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Request Error: %s: %s\n", class, err.Error())
}

func (l *Printer) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call: %s model, %d messages\n", llm.GetName(), len(messages))
}

func (l *Printer) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "LLM Call End: %s model, %d choices\n", llm.GetName(), len(resp.Choices))
}

func (l *Printer) OnToolNotFound(ctx context.Context, class registry.Class, tool string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", tool)
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\n", tool.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s\n", tool.Name())
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool.Name(), err.Error())
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnRequestStart(ctx context.Context, class registry.Class, query string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "request_start",
		"request_id", orchestrator.GetRequestID(ctx),
		"flow", class,
		"query", slices.StringUpto(query, 64),
	)
}

func (l *PackageLogger) OnRequestEnd(ctx context.Context, class registry.Class, query string, outcome *orchestrator.Outcome) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "request_end",
		"request_id", orchestrator.GetRequestID(ctx),
		"flow", class,
		"outcome", outcome.Kind,
		"results", len(outcome.Results),
	)
}

func (l *PackageLogger) OnRequestError(ctx context.Context, class registry.Class, query string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "request_error",
		"request_id", orchestrator.GetRequestID(ctx),
		"flow", class,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"request_id", orchestrator.GetRequestID(ctx),
		"model", llm.GetName(),
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"request_id", orchestrator.GetRequestID(ctx),
		"model", llm.GetName(),
		"choices", len(resp.Choices),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, class registry.Class, tool string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"request_id", orchestrator.GetRequestID(ctx),
		"flow", class,
		"tool", tool,
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"request_id", orchestrator.GetRequestID(ctx),
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"request_id", orchestrator.GetRequestID(ctx),
		"tool", tool.Name(),
		"output", slices.StringUpto(output, 128),
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"request_id", orchestrator.GetRequestID(ctx),
		"tool", tool.Name(),
		"err", err.Error(),
	)
}
