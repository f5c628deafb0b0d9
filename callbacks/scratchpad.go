package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/toolrouter/orchestrator"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/llmutils"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/tools"
)

// ensure Scratchpad implements orchestrator.Callback
var _ orchestrator.Callback = (*Scratchpad)(nil)

var TimeNowFn = time.Now

type RunStats struct {
	RequestID string `json:"request_id" yaml:"request_id"`

	Duration           time.Duration `json:"duration" yaml:"duration"`
	TotalMessages      uint32        `json:"total_messages" yaml:"total_messages"`
	LLMBytesOut        uint64        `json:"llm_bytes_out" yaml:"llm_bytes_out"`
	LLMInputTokens     uint64        `json:"llm_input_tokens" yaml:"llm_input_tokens"`
	LLMOutputTokens    uint64        `json:"llm_output_tokens" yaml:"llm_output_tokens"`
	LLMTotalTokens     uint64        `json:"llm_total_tokens" yaml:"llm_total_tokens"`
	LLMCalls           uint32        `json:"llm_calls" yaml:"llm_calls"`
	RequestsSucceeded  uint32        `json:"requests_succeeded" yaml:"requests_succeeded"`
	RequestsFailed     uint32        `json:"requests_failed" yaml:"requests_failed"`
	ToolCalls          uint32        `json:"tool_calls" yaml:"tool_calls"`
	ToolCallsSucceeded uint32        `json:"tool_calls_succeeded" yaml:"tool_calls_succeeded"`
	ToolCallsFailed    uint32        `json:"tool_calls_failed" yaml:"tool_calls_failed"`
	ToolNotFound       uint32        `json:"tool_not_found" yaml:"tool_not_found"`
}

// Scratchpad is a callback handler that collects the events
// and the stats of the requests.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

// StartRun starts collecting the events of the request in ctx.
func (l *Scratchpad) StartRun(ctx context.Context) {
	reqCtx := orchestrator.GetRequestContext(ctx)
	if reqCtx == nil {
		return
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	r := &run{
		stats: RunStats{
			RequestID: reqCtx.RequestID(),
		},
		requestID: reqCtx.RequestID(),
		started:   time.Now(),
	}
	l.runs[reqCtx.RequestID()] = r
	r.print("*** Run Started ***")
}

// EndRun returns the stats and the log of the request in ctx.
func (l *Scratchpad) EndRun(ctx context.Context) (*RunStats, []byte) {
	run := l.getRun(ctx)
	if run == nil {
		return nil, nil
	}

	stats := run.stats
	stats.Duration = time.Since(run.started)

	run.print(fmt.Sprintf("Requests: %d, Failed: %d",
		stats.RequestsSucceeded+stats.RequestsFailed,
		stats.RequestsFailed,
	))
	run.print(fmt.Sprintf("Tool calls: %d, Failed: %d, Not Found: %d",
		stats.ToolCalls,
		stats.ToolCallsFailed,
		stats.ToolNotFound,
	))
	run.print(fmt.Sprintf("LLM calls: %d, Messages: %d, Bytes Out: %d, Input Tokens: %d, Output Tokens: %d, Total Tokens: %d",
		stats.LLMCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMInputTokens,
		stats.LLMOutputTokens,
		stats.LLMTotalTokens,
	))

	run.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	l.lock.Lock()
	delete(l.runs, run.requestID)
	l.lock.Unlock()

	return &stats, run.w.Bytes()
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	requestID := orchestrator.GetRequestID(ctx)
	if requestID == "" {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[requestID]
}

func (l *Scratchpad) OnRequestStart(ctx context.Context, class registry.Class, query string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	run.print(string(class), "*** Request Start ***")
	run.print(string(class), "Query:", query)
}

func (l *Scratchpad) OnRequestEnd(ctx context.Context, class registry.Class, query string, outcome *orchestrator.Outcome) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.RequestsSucceeded, 1)
	if l.mode == ModeVerbose {
		run.print(string(class), "Outcome:", string(outcome.Kind))
		run.print(outcome.Text)
		run.print(string(class), printMessages(outcome.History))
	}
	run.print(string(class), "*** Request End ***")
}

func (l *Scratchpad) OnRequestError(ctx context.Context, class registry.Class, query string, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.RequestsFailed, 1)
	run.print(string(class), "*** Error ***", err.Error())
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		toolParts := 0
		toolResponseParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.ToolCall:
				toolParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			case llms.ToolCallResponse:
				toolResponseParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}

		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", textParts, toolParts, toolResponseParts)
	}
	return buf.String()
}

func (l *Scratchpad) OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesOut, llmutils.CountMessagesContentSize(messages))
	atomic.AddUint32(&run.stats.LLMCalls, 1)
	count := uint32(len(messages))
	atomic.AddUint32(&run.stats.TotalMessages, count)

	run.print("*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
	if l.mode == ModeVerbose {
		run.print(printMessages(messages))
	}
}

func (l *Scratchpad) OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	atomic.AddUint64(&run.stats.LLMInputTokens, uint64(tokensIn))
	atomic.AddUint64(&run.stats.LLMOutputTokens, uint64(tokensOut))
	atomic.AddUint64(&run.stats.LLMTotalTokens, uint64(tokensTotal))

	run.print("*** LLM Call End ***", fmt.Sprintf("%s model, %d input tokens, %d output tokens, %d total tokens", llm.GetName(), tokensIn, tokensOut, tokensTotal))
}

func (l *Scratchpad) OnToolNotFound(ctx context.Context, class registry.Class, tool string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolNotFound, 1)
	run.print(string(class), "*** Tool Not Found ***", tool)
}

func (l *Scratchpad) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolCalls, 1)
	run.print(tool.Name(), "*** Tool Start ***")
	run.print(tool.Name(), "Input:", input)
}

func (l *Scratchpad) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolCallsSucceeded, 1)
	if l.mode == ModeVerbose {
		run.print(tool.Name(), "Output:", output)
	}
	run.print(tool.Name(), "*** Tool End ***")
}

func (l *Scratchpad) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolCallsFailed, 1)
	run.print(tool.Name(), "*** Tool Error ***", err.Error())
}

type run struct {
	requestID string
	w         bytes.Buffer
	started   time.Time
	lock      sync.Mutex
	stats     RunStats
}

// print writes the entries to the run's output.
// The entries are written in the following format:
// [timestamp requestID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := TimeNowFn()
	ts := now.Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.requestID)
	_, _ = r.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = r.w.WriteString(" ")
		}
		_, _ = r.w.WriteString(entry)
	}
	_, _ = r.w.WriteString("\n")
}
