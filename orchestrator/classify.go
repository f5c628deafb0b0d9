package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/toolrouter/registry"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// ClassifyMaxRetries is the number of retries of the classification call
const ClassifyMaxRetries = 1

// Classification is the result of the first completion
type Classification struct {
	// Text is the content of the assistant message
	Text string
	// ToolCalls are the invocations selected by the model, in the order of the reply
	ToolCalls []llms.ToolCall
	// Message is the assistant message to append to the history
	Message llms.Message
	// Response is the raw response of the model
	Response *llms.ContentResponse
}

// Classify issues the completion with the registry tools attached,
// the call is retried once without backoff.
func (o *Orchestrator) Classify(ctx context.Context, messages []llms.Message, reg *registry.Registry) (*Classification, error) {
	flow := string(reg.Class())

	var extra []llms.CallOption
	if defs := reg.Definitions(); len(defs) > 0 {
		if !o.llm.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, errors.WithStack(ErrFunctionCallingNotSupported)
		}
		extra = append(extra,
			llms.WithTools(defs),
			llms.WithToolChoice(string(llms.FunctionCallBehaviorAuto)),
		)
	}
	opts := o.cfg.GetCallOptions(extra...)

	attempt := 0
	var resp *llms.ContentResponse
	err := retry.Do(ctx, classifyBackoff(), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metricskey.StatsLLMCallsRetried.IncrCounter(1, flow)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "retry_classification",
				"request_id", GetRequestID(ctx),
				"attempt", attempt,
			)
		}

		var err error
		resp, err = o.generate(ctx, flow, messages, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, llmCallFailure(err, "failed to classify the query")
	}

	return newClassification(resp), nil
}

// classifyBackoff allows one retry with no delay
func classifyBackoff() retry.Backoff {
	return retry.WithMaxRetries(ClassifyMaxRetries, retry.BackoffFunc(func() (time.Duration, bool) {
		return 0, false
	}))
}

func newClassification(resp *llms.ContentResponse) *Classification {
	cls := &Classification{
		Response: resp,
	}

	var texts []string
	for _, choice := range resp.Choices {
		if choice.Content != "" {
			texts = append(texts, choice.Content)
		}
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			if tc.ID == "" {
				tc.ID = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			}
			tc.Type = values.StringsCoalesce(tc.Type, "function")
			cls.ToolCalls = append(cls.ToolCalls, tc)
		}
	}
	cls.Text = strings.Join(texts, "\n\n")

	if len(cls.ToolCalls) > 0 {
		cls.Message = llms.MessageFromToolCalls(llms.RoleAI, cls.ToolCalls...)
	} else {
		cls.Message = llms.MessageFromTextParts(llms.RoleAI, cls.Text)
	}
	return cls
}
