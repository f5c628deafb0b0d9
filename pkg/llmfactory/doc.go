// Package llmfactory creates the chat-completion models used by the request
// flows from configuration, supporting the OpenAI and Azure OpenAI APIs.
package llmfactory
