package tools

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/effective-security/toolrouter/pkg/llmutils"
	"github.com/effective-security/toolrouter/pkg/schema"
	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

//go:generate mockgen -source=tools.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

var (
	// ErrFailedUnmarshalInput is returned when the tool arguments are not a valid JSON object
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
	// ErrInvalidToolArguments is returned when the required arguments are missing or empty
	ErrInvalidToolArguments = errors.New("invalid tool arguments")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON names of the fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ITool is a tool for the llm to interact with capability providers.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() any

	// Call executes the tool with the given input and returns the result.
	// If the tool fails to parse the input, it should return ErrFailedUnmarshalInput error.
	Call(context.Context, string) (string, error)
}

type Callback interface {
	OnToolStart(context.Context, ITool, string)
	OnToolEnd(context.Context, ITool, string, string)
	OnToolError(context.Context, ITool, string, error)
}

type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

// DecodeArguments unmarshals the JSON arguments into req,
// and validates the required fields.
func DecodeArguments[I any](input string, req *I) error {
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), req); err != nil {
		return errors.Mark(errors.WithStack(ErrFailedUnmarshalInput), ErrInvalidToolArguments)
	}
	if err := validate.Struct(req); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) && len(verr) > 0 {
			return errors.WithMessagef(ErrInvalidToolArguments, "%s is %s", verr[0].Field(), verr[0].Tag())
		}
		return errors.WithMessage(ErrInvalidToolArguments, err.Error())
	}
	return nil
}

// ParametersSchema returns the parameters of the tool as JSON schema.
func ParametersSchema(t ITool) (*jsonschema.Schema, error) {
	switch p := t.Parameters().(type) {
	case nil:
		return nil, nil
	case *jsonschema.Schema:
		return p, nil
	case *schema.Schema:
		return p.Parameters, nil
	default:
		return schema.FromAny(p)
	}
}

// Definition returns the function definition of the tool.
func Definition(t ITool) (llms.Tool, error) {
	params, err := ParametersSchema(t)
	if err != nil {
		return llms.Tool{}, errors.WithMessagef(err, "invalid parameters of tool %s", t.Name())
	}
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  params,
		},
	}, nil
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns the names and descriptions of the tools as JSON block.
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
