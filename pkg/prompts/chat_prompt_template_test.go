package prompts

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolrouter/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatPromptTemplate(t *testing.T) {
	t.Parallel()

	template := NewChatPromptTemplate([]MessageFormatter{
		NewSystemMessagePromptTemplate(
			"You are a helpful customer support assistant for {{.store}}.",
			[]string{"store"},
		),
		NewHumanMessagePromptTemplate(
			`{{.query}}`,
			[]string{"query"},
		),
	})
	value, err := template.FormatPrompt(map[string]any{
		"store": "TechBay",
		"query": "My laptop {{.store}} broke",
	})
	require.NoError(t, err)
	expectedMessages := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful customer support assistant for TechBay."),
		llms.MessageFromTextParts(llms.RoleHuman, "My laptop {{.store}} broke"),
	}
	require.Equal(t, expectedMessages, value.Messages())
	assert.Equal(t, "SYSTEM: You are a helpful customer support assistant for TechBay.\nHUMAN: My laptop {{.store}} broke\n", value.String())

	_, err = template.FormatPrompt(map[string]any{
		"store": "TechBay",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingVariable))
	assert.EqualError(t, err, `"query": missing input variable`)
}

func TestPromptTemplate(t *testing.T) {
	t.Parallel()

	p := NewPromptTemplate("{{.message | trim}}\n\nURL: {{.url}}", []string{"message", "url"})
	s, err := p.Format(map[string]any{
		"message": "  summarize this page ",
		"url":     "https://example.com/bags",
	})
	require.NoError(t, err)
	assert.Equal(t, "summarize this page\n\nURL: https://example.com/bags", s)

	_, err = NewPromptTemplate("{{.missing}}", nil).Format(map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to render prompt template")

	_, err = NewPromptTemplate("{{.bad", nil).Format(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse prompt template")
}
