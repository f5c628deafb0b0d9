// Package department provides tools that route a customer query
// to the generation pipe of a store department.
package department

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/normalizer"
	"github.com/effective-security/toolrouter/pkg/provider"
	"github.com/effective-security/toolrouter/pkg/schema"
	"github.com/effective-security/toolrouter/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolrouter", "department")

// Request represents the tool input.
type Request struct {
	CustomerQuery string `json:"customerQuery" yaml:"customerQuery" validate:"required" jsonschema:"title=Customer Query,description=The customer query"`
}

// Response represents the tool output.
type Response struct {
	normalizer.Result
}

// Invoker sends the payload to a capability provider.
type Invoker interface {
	Invoke(ctx context.Context, providerID, payload string) (*provider.RawReply, error)
}

// Spec describes a department tool.
type Spec struct {
	// Name of the function exposed to the LLM
	Name string
	// Description of the function
	Description string
	// QueryDescription describes the customerQuery argument
	QueryDescription string
	// ProviderID of the department pipe
	ProviderID string
}

var (
	// Sports gear and clothes
	Sports = Spec{
		Name:             "call_sports_dept",
		Description:      "Call this function for queries related to sports gear and clothes",
		QueryDescription: "The customer query related to sports gear",
		ProviderID:       "sports",
	}
	// Electronics and appliances
	Electronics = Spec{
		Name:             "call_electronics_dept",
		Description:      "Call this function for queries related to electronics and appliances",
		QueryDescription: "The customer query related to electronics and appliances",
		ProviderID:       "electronics",
	}
	// Travel bags and suitcases
	Travel = Spec{
		Name:             "call_travel_dept",
		Description:      "Call this function for queries related to travel bags and suitcases",
		QueryDescription: "The customer query related to travel bags and suitcases",
		ProviderID:       "travel",
	}
)

// Tool routes a customer query to a department pipe
type Tool struct {
	spec   Spec
	params *jsonschema.Schema
	client Invoker
}

var _ tools.Tool[Request, Response] = (*Tool)(nil)

// New returns a department tool
func New(spec Spec, client Invoker) (*Tool, error) {
	if spec.Name == "" || spec.ProviderID == "" {
		return nil, errors.New("department tool requires name and provider")
	}

	sc, err := schema.For[Request]()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create schema")
	}
	// a copy, the cached schema is shared by all departments
	params, err := schema.FromAny(sc.Parameters)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to copy schema")
	}
	if spec.QueryDescription != "" {
		if p, ok := params.Properties.Get("customerQuery"); ok {
			p.Description = spec.QueryDescription
		}
	}

	return &Tool{
		spec:   spec,
		params: params,
		client: client,
	}, nil
}

func (t *Tool) Name() string {
	return t.spec.Name
}

func (t *Tool) Description() string {
	return t.spec.Description
}

func (t *Tool) Parameters() any {
	return t.params
}

// ProviderID returns the ID of the department pipe
func (t *Tool) ProviderID() string {
	return t.spec.ProviderID
}

// Run sends the query to the department pipe and normalizes the reply.
func (t *Tool) Run(ctx context.Context, req *Request) (*Response, error) {
	if req.CustomerQuery == "" {
		return nil, errors.WithMessage(tools.ErrInvalidToolArguments, "customerQuery is required")
	}

	started := time.Now()
	reply, err := t.client.Invoke(ctx, t.spec.ProviderID, req.CustomerQuery)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s failed", t.spec.Name)
	}

	res := normalizer.Normalize(reply.Payload)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "normalized",
		"tool", t.spec.Name,
		"kind", string(res.Kind),
		"query", slices.StringUpto(req.CustomerQuery, 64),
		"elapsed", time.Since(started).String(),
	)
	return &Response{Result: res}, nil
}

// Call executes the tool with JSON arguments and returns the rendered result.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req Request
	if err := tools.DecodeArguments(input, &req); err != nil {
		return "", err
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}
