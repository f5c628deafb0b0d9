package prompts

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
)

// ErrMissingVariable is returned when a required input variable is not provided
var ErrMissingVariable = errors.New("missing input variable")

// PromptTemplate is a Go text/template with sprig functions.
// Missing keys are reported as errors.
type PromptTemplate struct {
	Template       string
	InputVariables []string
}

// NewPromptTemplate returns the prompt template.
func NewPromptTemplate(template string, inputVariables []string) PromptTemplate {
	return PromptTemplate{
		Template:       template,
		InputVariables: inputVariables,
	}
}

// Format renders the template with the values.
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	for _, name := range p.InputVariables {
		if _, ok := values[name]; !ok {
			return "", errors.WithMessagef(ErrMissingVariable, "%q", name)
		}
	}

	tmpl, err := template.New("prompt").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(p.Template)
	if err != nil {
		return "", errors.WithMessage(err, "failed to parse prompt template")
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, values); err != nil {
		return "", errors.WithMessage(err, "failed to render prompt template")
	}
	return sb.String(), nil
}
