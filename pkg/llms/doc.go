// Package llms provides the provider-neutral message model used to talk to
// chat-completion models with function calling.
//
// The `llms.go` file contains the Model interface and provider types.
//
// The `generatecontent.go` file contains messages, content parts, tool calls
// and tool responses.
//
// The `options.go` file provides options to configure a single call.
package llms
