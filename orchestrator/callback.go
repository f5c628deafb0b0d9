package orchestrator

import (
	"context"

	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/toolrouter/tools"
)

// Callback receives the events of a request.
// The tool events may be called concurrently.
type Callback interface {
	tools.Callback
	OnRequestStart(ctx context.Context, class registry.Class, query string)
	OnRequestEnd(ctx context.Context, class registry.Class, query string, outcome *Outcome)
	OnRequestError(ctx context.Context, class registry.Class, query string, err error)
	OnLLMCallStart(ctx context.Context, llm llms.Model, messages []llms.Message)
	OnLLMCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, class registry.Class, tool string)
}

type noopCallback struct{}

func (noopCallback) OnRequestStart(context.Context, registry.Class, string)          {}
func (noopCallback) OnRequestEnd(context.Context, registry.Class, string, *Outcome)  {}
func (noopCallback) OnRequestError(context.Context, registry.Class, string, error)   {}
func (noopCallback) OnLLMCallStart(context.Context, llms.Model, []llms.Message)      {}
func (noopCallback) OnLLMCallEnd(context.Context, llms.Model, *llms.ContentResponse) {}
func (noopCallback) OnToolNotFound(context.Context, registry.Class, string)          {}
func (noopCallback) OnToolStart(context.Context, tools.ITool, string)                {}
func (noopCallback) OnToolEnd(context.Context, tools.ITool, string, string)          {}
func (noopCallback) OnToolError(context.Context, tools.ITool, string, error)         {}
