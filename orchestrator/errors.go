package orchestrator

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/normalizer"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/tools"
)

var (
	// ErrMissingQuery is returned when the query is empty
	ErrMissingQuery = errors.New("no query provided")
	// ErrLLMCallFailure is returned when the language model call failed
	ErrLLMCallFailure = errors.New("the language model call failed")
	// ErrFunctionCallingNotSupported is returned when the model can not call tools
	ErrFunctionCallingNotSupported = errors.New("the language model does not support function calling")
	// ErrToolNotFound is recorded for an invocation of unknown tool
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidToolArguments is recorded for an invocation with malformed
	// arguments, or missing required fields
	ErrInvalidToolArguments = tools.ErrInvalidToolArguments
	// ErrMissingCredential is returned when a provider has no token configured
	ErrMissingCredential = provider.ErrMissingCredential
	// ErrUnknownProvider is returned when a tool refers to unknown provider
	ErrUnknownProvider = provider.ErrUnknownProvider
	// ErrUnexpectedReplyShape is set on a normalized result of unexpected shape
	ErrUnexpectedReplyShape = normalizer.ErrUnexpectedReplyShape
)

// llmCallError keeps the cause of a failed language model call,
// and matches ErrLLMCallFailure.
type llmCallError struct {
	msg   string
	cause error
}

func (e *llmCallError) Error() string { return e.msg + ": " + e.cause.Error() }
func (e *llmCallError) Unwrap() error { return e.cause }

func (e *llmCallError) Is(target error) bool {
	return target == ErrLLMCallFailure
}

func llmCallFailure(err error, msg string) error {
	return errors.Mark(&llmCallError{msg: msg, cause: err}, ErrLLMCallFailure)
}
