// Package registry provides immutable ordered sets of tools
// presented to the LLM for a request class.
package registry

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/prompts"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/toolrouter/tools/department"
	"github.com/effective-security/toolrouter/tools/webcontent"
)

// Class of the request
type Class string

const (
	// ClassTicketRouting routes a customer query to a department
	ClassTicketRouting Class = "ticket_routing"
	// ClassWebSummary summarizes the content of a web page
	ClassWebSummary Class = "web_summary"
)

const ticketRoutingPrompt = "You are a customer support assistant for TechBay, an online store that sells sports gear (including sports clothes), electronics and appliances, and travel bags and suitcases. Classify the customer query into one of these three categories and call the appropriate function."

const webSummaryPrompt = "You are a helpful assistant. When the user refers to a web page, call the read_content function with its URL, then answer the user using the content of the page."

// SystemPrompt returns the system prompt for the class
func SystemPrompt(class Class) string {
	switch class {
	case ClassTicketRouting:
		return ticketRoutingPrompt
	case ClassWebSummary:
		return webSummaryPrompt
	}
	return ""
}

// QueryVariable is the input variable of the user message in Prompt
const QueryVariable = "query"

var summaryQuery = prompts.NewPromptTemplate(
	"{{ .message | trim }}{{ with .url | trim }}\n\nURL: {{ . }}{{ end }}",
	[]string{"message", "url"},
)

// Prompt returns the chat prompt of the class: the system prompt
// and the user message with the query.
func Prompt(class Class) prompts.ChatPromptTemplate {
	return prompts.NewChatPromptTemplate([]prompts.MessageFormatter{
		prompts.MessagePromptTemplate{
			Role:     llms.RoleSystem,
			Template: prompts.NewPromptTemplate(SystemPrompt(class), nil),
		},
		prompts.NewHumanMessagePromptTemplate("{{ ."+QueryVariable+" }}", []string{QueryVariable}),
	})
}

// SummaryQuery returns the user message of the web summary request,
// the URL is appended so the model can pass it to `read_content`.
func SummaryQuery(message, url string) (string, error) {
	return summaryQuery.Format(map[string]any{
		"message": message,
		"url":     url,
	})
}

// Registry is an ordered set of tools, it is safe for concurrent use.
type Registry struct {
	class  Class
	tools  []tools.ITool
	byName map[string]tools.ITool
	defs   []llms.Tool
}

// New returns a Registry of the tools in the given order.
func New(class Class, list ...tools.ITool) (*Registry, error) {
	r := &Registry{
		class:  class,
		byName: make(map[string]tools.ITool, len(list)),
	}
	for _, t := range list {
		name := t.Name()
		if name == "" {
			return nil, errors.New("tool name is empty")
		}
		if _, ok := r.byName[name]; ok {
			return nil, errors.Newf("duplicate tool: %s", name)
		}
		def, err := tools.Definition(t)
		if err != nil {
			return nil, err
		}
		r.byName[name] = t
		r.tools = append(r.tools, t)
		r.defs = append(r.defs, def)
	}
	return r, nil
}

// Class returns the class of the registry
func (r *Registry) Class() Class {
	return r.class
}

// Tools returns the tools in the registry order
func (r *Registry) Tools() []tools.ITool {
	return append([]tools.ITool(nil), r.tools...)
}

// Definitions returns the function definitions to attach to the LLM call
func (r *Registry) Definitions() []llms.Tool {
	return append([]llms.Tool(nil), r.defs...)
}

// Lookup returns the tool by the exact name
func (r *Registry) Lookup(name string) (tools.ITool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Names returns the names of the tools in the registry order
func (r *Registry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// TicketRouting returns the registry of the department tools
func TicketRouting(client department.Invoker) (*Registry, error) {
	var list []tools.ITool
	for _, spec := range []department.Spec{department.Sports, department.Electronics, department.Travel} {
		t, err := department.New(spec, client)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return New(ClassTicketRouting, list...)
}

// WebSummary returns the registry with the `read_content` tool
func WebSummary(fetcher *webcontent.Tool) (*Registry, error) {
	return New(ClassWebSummary, fetcher)
}
