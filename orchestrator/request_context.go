package orchestrator

import (
	"context"
	"strconv"

	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// RequestContext is the context of a single request,
// it carries the request ID and the class of the flow.
type RequestContext interface {
	RequestID() string
	Class() registry.Class
}

type requestContext struct {
	requestID string
	class     registry.Class
}

func (c *requestContext) RequestID() string {
	return c.requestID
}

func (c *requestContext) Class() registry.Class {
	return c.class
}

// NewRequestContext returns RequestContext,
// a new ID is generated if requestID is empty.
func NewRequestContext(requestID string, class registry.Class) RequestContext {
	return &requestContext{
		requestID: values.StringsCoalesce(requestID, NewRequestID()),
		class:     class,
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithRequestContext returns a new context with RequestContext value
func WithRequestContext(ctx context.Context, reqCtx RequestContext) context.Context {
	return context.WithValue(ctx, keyContext, reqCtx)
}

// GetRequestContext retrieves the RequestContext from the context
func GetRequestContext(ctx context.Context) RequestContext {
	if v, ok := ctx.Value(keyContext).(RequestContext); ok {
		return v
	}
	return nil
}

// GetRequestID retrieves the request ID from the provided context.
// If the context does not contain a RequestContext, it returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(keyContext).(RequestContext); ok {
		return v.RequestID()
	}
	return ""
}

// NewRequestID generates a new request ID using the flake ID generator.
func NewRequestID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
