package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsLLMMessagesSent is base for counter metric for total messages sent to LLM
	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total messages sent to LLM",
		RequiredTags: []string{"flow", "model"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"flow", "model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"flow", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"flow", "model"},
	}

	StatsLLMTotalTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_total_tokens",
		Help:         "stats_llm_total_tokens provides total tokens sent and received from LLM",
		RequiredTags: []string{"flow", "model"},
	}

	StatsLLMCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_calls_succeeded",
		Help:         "stats_llm_calls_succeeded provides total LLM calls succeeded",
		RequiredTags: []string{"flow"},
	}

	StatsLLMCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_calls_failed",
		Help:         "stats_llm_calls_failed provides total LLM calls failed",
		RequiredTags: []string{"flow"},
	}

	StatsLLMCallsRetried = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_calls_retried",
		Help:         "stats_llm_calls_retried provides total classification calls retried",
		RequiredTags: []string{"flow"},
	}

	StatsRequests = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_requests",
		Help:         "stats_requests provides total orchestrated requests by outcome",
		RequiredTags: []string{"flow", "outcome"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsInvalid = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_invalid",
		Help:         "stats_tool_calls_invalid provides total tool calls skipped for invalid arguments",
		RequiredTags: []string{"tool"},
	}

	StatsProviderCalls = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_provider_calls",
		Help:         "stats_provider_calls provides total capability provider calls by outcome",
		RequiredTags: []string{"provider", "outcome"},
	}

	StatsReplyShapeErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_reply_shape_errors",
		Help:         "stats_reply_shape_errors provides total provider replies that could not be structured",
		RequiredTags: []string{"kind"},
	}
)

// Perf
var (
	PerfRequest = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_request",
		Help:         "perf_request provides duration of orchestrated request",
		RequiredTags: []string{"flow"},
	}

	PerfLLMCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_llm_call",
		Help:         "perf_llm_call provides duration of LLM call",
		RequiredTags: []string{"flow"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfProviderCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_provider_call",
		Help:         "perf_provider_call provides duration of capability provider call",
		RequiredTags: []string{"provider"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfLLMCall,
	&PerfProviderCall,
	&PerfRequest,
	&PerfToolCall,
	&StatsLLMBytesSent,
	&StatsLLMCallsFailed,
	&StatsLLMCallsRetried,
	&StatsLLMCallsSucceeded,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsLLMTotalTokens,
	&StatsProviderCalls,
	&StatsReplyShapeErrors,
	&StatsRequests,
	&StatsToolCallsFailed,
	&StatsToolCallsInvalid,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
