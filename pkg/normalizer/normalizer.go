// Package normalizer turns loosely structured provider replies into
// ticket records or fallback text.
//
// A reply is passed through an ordered chain of typed attempts:
// a string is decoded as JSON, an object is searched for the ticket fields,
// anything else is a shape error. Each attempt either settles the Result
// or hands a value to the next one.
package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llmutils"
	"github.com/effective-security/toolrouter/pkg/metricskey"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "normalizer")

// ErrUnexpectedReplyShape is returned when the reply is neither text
// nor an object with the ticket fields.
var ErrUnexpectedReplyShape = errors.New("unexpected reply shape")

const (
	// FieldTicketNo is the ticket number field of a provider reply
	FieldTicketNo = "Ticket No."
	// FieldClassification is the classification field of a provider reply
	FieldClassification = "Classification"

	shapeErrorPrefix = "The provider answer could not be structured: "
	maxPayloadInText = 256
)

// Kind of the normalized result
type Kind string

const (
	KindTicket     Kind = "ticket"
	KindFallback   Kind = "fallback"
	KindShapeError Kind = "shape_error"
)

// TicketRecord is a structured provider answer
type TicketRecord struct {
	TicketNo       string `json:"Ticket No." yaml:"ticket_no"`
	Classification string `json:"Classification" yaml:"classification"`
}

func (t TicketRecord) String() string {
	return fmt.Sprintf("Ticket No.: %s, Classification: %s", t.TicketNo, t.Classification)
}

// Result is the tagged outcome of Normalize
type Result struct {
	Kind   Kind          `json:"kind" yaml:"kind"`
	Ticket *TicketRecord `json:"ticket,omitempty" yaml:"ticket,omitempty"`
	// Text is the rendered result
	Text string `json:"text" yaml:"text"`
	Err  error  `json:"-" yaml:"-"`
}

func (r Result) String() string {
	return r.Text
}

// attempt is one typed parse step of the chain.
// It returns a settled Result, or the value for the next attempt.
type attempt func(v any) (any, *Result)

var chain = []attempt{
	decodeString,
	extractTicket,
	shapeError,
}

// Normalize returns the normalized provider reply.
// It never fails, a reply that can not be structured returns KindShapeError
// with a degraded text.
func Normalize(reply any) Result {
	v := reply
	for _, try := range chain {
		next, res := try(v)
		if res != nil {
			return *res
		}
		v = next
	}
	// shapeError always settles
	return Result{Kind: KindShapeError, Text: shapeErrorPrefix, Err: ErrUnexpectedReplyShape}
}

// NormalizeBytes decodes the raw JSON reply and normalizes it.
// A body that is not JSON is treated as text.
func NormalizeBytes(raw []byte) Result {
	v, ok := decodeJSON(raw)
	if !ok {
		return Normalize(string(raw))
	}
	return Normalize(v)
}

func decodeString(v any) (any, *Result) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case json.RawMessage:
		s = string(t)
	default:
		return v, nil
	}

	if parsed, ok := decodeJSON([]byte(s)); ok {
		if inner, ok := parsed.(string); ok {
			// double encoded
			return decodeString(inner)
		}
		return parsed, nil
	}
	return nil, &Result{Kind: KindFallback, Text: s}
}

func extractTicket(v any) (any, *Result) {
	var obj map[string]any
	switch t := v.(type) {
	case map[string]any:
		obj = t
	case map[string]string:
		obj = make(map[string]any, len(t))
		for k, val := range t {
			obj[k] = val
		}
	case TicketRecord:
		return nil, ticketResult(t)
	case *TicketRecord:
		if t != nil {
			return nil, ticketResult(*t)
		}
		return v, nil
	default:
		return v, nil
	}

	no, hasNo := obj[FieldTicketNo]
	class, hasClass := obj[FieldClassification]
	if !hasNo || !hasClass {
		return v, nil
	}
	return nil, ticketResult(TicketRecord{
		TicketNo:       toString(no),
		Classification: toString(class),
	})
}

func shapeError(v any) (any, *Result) {
	kind := shapeOf(v)
	payload := slices.StringUpto(llmutils.ToJSON(v), maxPayloadInText)

	metricskey.StatsReplyShapeErrors.IncrCounter(1, kind)
	logger.KV(xlog.WARNING,
		"status", "unexpected_reply_shape",
		"kind", kind,
		"payload", payload,
	)

	return nil, &Result{
		Kind: KindShapeError,
		Text: shapeErrorPrefix + payload,
		Err:  errors.WithMessagef(ErrUnexpectedReplyShape, "reply is %s", kind),
	}
}

func ticketResult(t TicketRecord) *Result {
	return &Result{
		Kind:   KindTicket,
		Ticket: &t,
		Text:   t.String(),
	}
}

func decodeJSON(raw []byte) (any, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, false
	}
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// toString converts a field value to string without coercion,
// JSON numbers keep their literal form.
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any, []any:
		return llmutils.ToJSON(t)
	default:
		return fmt.Sprint(t)
	}
}

func shapeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any, map[string]string:
		return "object"
	case []any:
		return "array"
	case json.Number, float64, int, int64:
		return "number"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}
